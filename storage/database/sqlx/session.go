package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/schedule"
)

var (
	sessionColumns = []string{
		"id", "course_id", "type", "title", "start_at", "end_at", "location", "location_type",
		"attendance", "objectives", "created_at", "updated_at",
	}
	sessionOrderColumns = map[string]string{
		"start":      "start_at",
		"end":        "end_at",
		"title":      "title",
		"type":       "type",
		"created_at": "created_at",
	}
)

type sessionRow struct {
	ID           string         `db:"id"`
	CourseID     string         `db:"course_id"`
	Type         string         `db:"type"`
	Title        string         `db:"title"`
	StartAt      time.Time      `db:"start_at"`
	EndAt        time.Time      `db:"end_at"`
	Location     string         `db:"location"`
	LocationType string         `db:"location_type"`
	Attendance   string         `db:"attendance"`
	Objectives   pq.StringArray `db:"objectives"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r sessionRow) toSession() schedule.Session {
	return schedule.Session{
		ID:           r.ID,
		CourseID:     r.CourseID,
		Type:         r.Type,
		Title:        r.Title,
		Start:        r.StartAt.UTC(),
		End:          r.EndAt.UTC(),
		Location:     r.Location,
		LocationType: r.LocationType,
		Attendance:   r.Attendance,
		Objectives:   []string(r.Objectives),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) schedule.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, s schedule.Session) (schedule.Session, error) {
	b := psql.Insert("sessions").Columns(sessionColumns...).Values(
		s.ID, s.CourseID, s.Type, s.Title, s.Start.UTC(), s.End.UTC(), s.Location, s.LocationType,
		s.Attendance, pq.StringArray(s.Objectives), s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return schedule.Session{}, errors.Wrap(err, "inserting session")
	}
	return s, nil
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter schedule.QueryFilter, ordering ...core.DBOrdering) ([]schedule.Session, error) {
	b := psql.Select(sessionColumns...).From("sessions")
	if filter.CourseIDs != nil {
		b = b.Where(sq.Eq{"course_id": filter.CourseIDs})
	}
	if len(filter.Types) > 0 {
		b = b.Where(sq.Eq{"type": filter.Types})
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{"start_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.Lt{"start_at": filter.To.UTC()})
	}
	b = b.OrderBy(orderBy(ordering, sessionOrderColumns)...)

	var rows []sessionRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]schedule.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (schedule.Session, error) {
	var r sessionRow
	if err := getRow(ctx, repo.db, &r, psql.Select(sessionColumns...).From("sessions").Where(sq.Eq{"id": id})); err != nil {
		return schedule.Session{}, trapNoRowsErr(err, schedule.ErrNotFound, "finding session")
	}
	return r.toSession(), nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, s schedule.Session) (schedule.Session, error) {
	b := psql.Update("sessions").
		Set("course_id", s.CourseID).
		Set("type", s.Type).
		Set("title", s.Title).
		Set("start_at", s.Start.UTC()).
		Set("end_at", s.End.UTC()).
		Set("location", s.Location).
		Set("location_type", s.LocationType).
		Set("attendance", s.Attendance).
		Set("objectives", pq.StringArray(s.Objectives)).
		Set("updated_at", s.UpdatedAt.UTC()).
		Where(sq.Eq{"id": s.ID})

	n, err := exec(ctx, repo.db, b)
	if err != nil {
		return schedule.Session{}, errors.Wrap(err, "updating session")
	}
	if n == 0 {
		return schedule.Session{}, schedule.ErrNotFound
	}
	return s, nil
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("sessions").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}
