package inmemdb

import (
	"context"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/schedule"
)

type sessionRepository struct {
	db *sessionTable
}

func NewSessionRepository(db *DB) schedule.Repository {
	return &sessionRepository{db: db.session}
}

func cloneSession(s schedule.Session) schedule.Session {
	s.Objectives = copyStrings(s.Objectives)
	return s
}

func (repo *sessionRepository) CreateSession(_ context.Context, s schedule.Session) (schedule.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s = cloneSession(s)
	repo.db.table[s.ID] = &s
	return cloneSession(s), nil
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter schedule.QueryFilter, ordering ...core.DBOrdering) ([]schedule.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]schedule.Session, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		if filter.CourseIDs != nil && !core.StringsContain(filter.CourseIDs, s.CourseID) {
			continue
		}
		if len(filter.Types) > 0 && !core.StringsContain(filter.Types, s.Type) {
			continue
		}
		if !inRange(s.Start, filter.From, filter.To) {
			continue
		}
		sessions = append(sessions, cloneSession(*s))
	}

	orderBy(sessions, ordering, func(s schedule.Session, field string) interface{} {
		switch field {
		case "end":
			return s.End
		case "title":
			return s.Title
		case "type":
			return s.Type
		case "created_at":
			return s.CreatedAt
		default:
			return s.Start
		}
	}, func(s schedule.Session) string { return s.ID })
	return sessions, nil
}

func (repo *sessionRepository) GetSessionByID(_ context.Context, id string) (schedule.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return cloneSession(*s), nil
	}
	return schedule.Session{}, schedule.ErrNotFound
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s schedule.Session) (schedule.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[s.ID]; !ok {
		return schedule.Session{}, schedule.ErrNotFound
	}
	s = cloneSession(s)
	repo.db.table[s.ID] = &s
	return cloneSession(s), nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
