package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/coaching"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/group"
	"github.com/trezcool/ratiba/core/report"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/user"
)

type (
	// DB is a process-local database used by tests and the `-inmem` dev mode.
	DB struct {
		user    *userTable
		course  *courseTable
		session *sessionTable
		slot    *slotTable
		group   *groupTable
		report  *reportTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		mutex sync.RWMutex
		table map[string]*course.Course
	}

	sessionTable struct {
		mutex sync.RWMutex
		table map[string]*schedule.Session
	}

	slotTable struct {
		mutex sync.RWMutex
		table map[string]*coaching.Slot
	}

	groupTable struct {
		mutex sync.RWMutex
		table map[string]*group.Group
	}

	reportTable struct {
		mutex sync.RWMutex
		table map[string]*report.Report
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		course:  &courseTable{table: make(map[string]*course.Course)},
		session: &sessionTable{table: make(map[string]*schedule.Session)},
		slot:    &slotTable{table: make(map[string]*coaching.Slot)},
		group:   &groupTable{table: make(map[string]*group.Group)},
		report:  &reportTable{table: make(map[string]*report.Report)},
	}
}

// Flush empties every table.
func (db *DB) Flush() {
	db.user.mutex.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.mutex.Unlock()

	db.course.mutex.Lock()
	db.course.table = make(map[string]*course.Course)
	db.course.mutex.Unlock()

	db.session.mutex.Lock()
	db.session.table = make(map[string]*schedule.Session)
	db.session.mutex.Unlock()

	db.slot.mutex.Lock()
	db.slot.table = make(map[string]*coaching.Slot)
	db.slot.mutex.Unlock()

	db.group.mutex.Lock()
	db.group.table = make(map[string]*group.Group)
	db.group.mutex.Unlock()

	db.report.mutex.Lock()
	db.report.table = make(map[string]*report.Report)
	db.report.mutex.Unlock()
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	res := make([]string, len(ss))
	copy(res, ss)
	return res
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// inRange reports whether t is within [from, to), zero bounds being open.
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// orderBy sorts items by orderings, using field to read the value of a named field.
// Values must be strings, ints, bools or times. Ties keep the id order.
func orderBy[T any](items []T, orderings []core.DBOrdering, field func(T, string) interface{}, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range orderings {
			c := compare(field(items[i], ord.Field), field(items[j], ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		return strings.Compare(strings.ToLower(av), strings.ToLower(b.(string)))
	case int:
		bv := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case bool:
		bv := b.(bool)
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
	case time.Time:
		return av.Compare(b.(time.Time))
	}
	return 0
}

// cascadeCourse drops the rows referencing a deleted course, as the postgres foreign keys do.
func (db *DB) cascadeCourse(id string) {
	db.session.mutex.Lock()
	for sid, s := range db.session.table {
		if s.CourseID == id {
			delete(db.session.table, sid)
		}
	}
	db.session.mutex.Unlock()

	db.slot.mutex.Lock()
	for sid, s := range db.slot.table {
		if s.CourseID == id {
			delete(db.slot.table, sid)
		}
	}
	db.slot.mutex.Unlock()

	db.group.mutex.Lock()
	for gid, g := range db.group.table {
		if g.CourseID == id {
			delete(db.group.table, gid)
		}
	}
	db.group.mutex.Unlock()
}

// cascadeUser drops the memberships and bookings of a deleted user and detaches their reports.
func (db *DB) cascadeUser(id string) {
	db.slot.mutex.Lock()
	for _, s := range db.slot.table {
		s.ParticipantIDs = removeString(s.ParticipantIDs, id)
	}
	db.slot.mutex.Unlock()

	db.group.mutex.Lock()
	for _, g := range db.group.table {
		g.MemberIDs = removeString(g.MemberIDs, id)
	}
	db.group.mutex.Unlock()

	db.report.mutex.Lock()
	for _, r := range db.report.table {
		if r.UserID == id {
			r.UserID = ""
		}
	}
	db.report.mutex.Unlock()
}

func removeString(ss []string, s string) []string {
	res := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			res = append(res, v)
		}
	}
	return res
}
