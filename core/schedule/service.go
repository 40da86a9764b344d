package schedule

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// OrderingFields are the fields sessions may be ordered by.
var OrderingFields = []string{"start", "end", "title", "type", "created_at"}

var defaultOrdering = []core.DBOrdering{{Field: "start", Ascending: true}}

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		// QuerySessions returns sessions matching every set QueryFilter field.
		// QueryFilter.Program is resolved by the service and never reaches the repository.
		QuerySessions(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
		DeleteSession(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, ns NewSession) (Session, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Session, error)
		GetByID(ctx context.Context, id string) (Session, error)
		Update(ctx context.Context, orig Session, us UpdateSession) (Session, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo      Repository
		courseSvc course.Service
	}
)

func NewService(repo Repository, courseSvc course.Service) Service {
	return &service{repo: repo, courseSvc: courseSvc}
}

func (svc *service) Create(ctx context.Context, ns NewSession) (Session, error) {
	now := core.NowFunc()
	objectives := ns.Objectives
	if objectives == nil {
		objectives = []string{}
	}
	s, err := svc.repo.CreateSession(ctx, Session{
		ID:           uuid.NewString(),
		CourseID:     ns.CourseID,
		Type:         ns.Type,
		Title:        ns.Title,
		Start:        ns.start,
		End:          ns.end,
		Location:     ns.Location,
		LocationType: ns.LocationType,
		Attendance:   ns.Attendance,
		Objectives:   objectives,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Session{}, err
	}
	return svc.withCourse(ctx, s)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Session, error) {
	if filter.Program != "" {
		courses, err := svc.courseSvc.Query(ctx, &course.QueryFilter{Programs: []string{filter.Program}})
		if err != nil {
			return nil, errors.Wrap(err, "querying program courses")
		}
		ids := make([]string, 0, len(courses))
		for _, c := range courses {
			if filter.CourseIDs == nil || core.StringsContain(filter.CourseIDs, c.ID) {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) == 0 {
			return []Session{}, nil
		}
		filter.CourseIDs = ids
		filter.Program = ""
	}

	if ordering = core.FilterOrderings(ordering, OrderingFields...); len(ordering) == 0 {
		ordering = defaultOrdering
	}
	sessions, err := svc.repo.QuerySessions(ctx, filter, ordering...)
	if err != nil {
		return nil, err
	}
	return svc.withCourses(ctx, sessions)
}

func (svc *service) GetByID(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, ErrNotFound
	}
	s, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return svc.withCourse(ctx, s)
}

func (svc *service) Update(ctx context.Context, orig Session, us UpdateSession) (Session, error) {
	s := orig
	if us.CourseID != "" {
		s.CourseID = us.CourseID
	}
	if us.Type != "" {
		s.Type = us.Type
	}
	if us.Title != "" {
		s.Title = us.Title
	}
	if us.Location != nil {
		s.Location = *us.Location
	}
	if us.LocationType != "" {
		s.LocationType = us.LocationType
	}
	if us.Attendance != "" {
		s.Attendance = us.Attendance
	}
	if us.Objectives != nil {
		s.Objectives = us.Objectives
	}
	if !us.start.IsZero() {
		s.Start, s.End = us.start, us.end
	}
	s.UpdatedAt = core.NowFunc()

	s, err := svc.repo.UpdateSession(ctx, s)
	if err != nil {
		return Session{}, err
	}
	return svc.withCourse(ctx, s)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return svc.repo.DeleteSession(ctx, id)
}

func (svc *service) withCourse(ctx context.Context, s Session) (Session, error) {
	res, err := svc.withCourses(ctx, []Session{s})
	if err != nil {
		return Session{}, err
	}
	return res[0], nil
}

// withCourses embeds course summaries and computes durations.
func (svc *service) withCourses(ctx context.Context, sessions []Session) ([]Session, error) {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if !core.StringsContain(ids, s.CourseID) {
			ids = append(ids, s.CourseID)
		}
	}
	courses, err := svc.courseSvc.GetManyByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching session courses")
	}
	for i := range sessions {
		sessions[i].Course = courses[sessions[i].CourseID].Summary()
		sessions[i].DurationMinutes = DurationMinutes(sessions[i].Start, sessions[i].End)
		if sessions[i].Objectives == nil {
			sessions[i].Objectives = []string{}
		}
	}
	return sessions, nil
}
