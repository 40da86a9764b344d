package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
)

var (
	courseColumns      = []string{"id", "code", "title", "programs", "created_at", "updated_at"}
	courseOrderColumns = map[string]string{"code": "code", "title": "title", "created_at": "created_at"}
)

type courseRow struct {
	ID        string         `db:"id"`
	Code      string         `db:"code"`
	Title     string         `db:"title"`
	Programs  pq.StringArray `db:"programs"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	programs := []string(r.Programs)
	if programs == nil {
		programs = []string{}
	}
	return course.Course{
		ID:        r.ID,
		Code:      r.Code,
		Title:     r.Title,
		Programs:  programs,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toCourses(rows []courseRow) []course.Course {
	res := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toCourse())
	}
	return res
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excluded ...course.Course) error {
	b := psql.Select("COUNT(*)").From("courses").Where(sq.Eq{"code": code})
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, c := range excluded {
			ids = append(ids, c.ID)
		}
		b = b.Where(sq.NotEq{"id": ids})
	}

	var count int
	if err := getRow(ctx, repo.db, &count, b); err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	if count > 0 {
		return course.ErrCodeExists
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	b := psql.Insert("courses").Columns(courseColumns...).
		Values(c.ID, c.Code, c.Title, pq.StringArray(c.Programs), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if _, err := exec(ctx, repo.db, b); err != nil {
		if isUniqueViolation(err) {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	b := psql.Select(courseColumns...).From("courses")
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			b = b.Where(sq.Or{sq.ILike{"code": val}, sq.ILike{"title": val}})
		}
		if len(filter.Programs) > 0 {
			b = b.Where(sq.Expr("programs && ?", pq.StringArray(filter.Programs)))
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "code", Ascending: true}}
	}
	b = b.OrderBy(orderBy(ordering, courseOrderColumns)...)

	var rows []courseRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return toCourses(rows), nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var r courseRow
	if err := getRow(ctx, repo.db, &r, psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": id})); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return r.toCourse(), nil
}

func (repo *courseRepository) GetCoursesByID(ctx context.Context, ids ...string) ([]course.Course, error) {
	if len(ids) == 0 {
		return []course.Course{}, nil
	}
	var rows []courseRow
	if err := selectRows(ctx, repo.db, &rows, psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": ids})); err != nil {
		return nil, errors.Wrap(err, "querying courses by id")
	}
	return toCourses(rows), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	b := psql.Update("courses").
		Set("code", c.Code).
		Set("title", c.Title).
		Set("programs", pq.StringArray(c.Programs)).
		Set("updated_at", c.UpdatedAt.UTC()).
		Where(sq.Eq{"id": c.ID})

	n, err := exec(ctx, repo.db, b)
	if err != nil {
		if isUniqueViolation(err) {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("courses").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}
