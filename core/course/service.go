package course

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var (
	// errors
	ErrNotFound   = errors.New("course not found")
	ErrCodeExists = errors.New("a course with this code already exists")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string, excluded ...Course) error
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// QueryCourses returns courses matching every set QueryFilter field.
		// QueryFilter.Search is a case-insensitive match on Course.Code or Course.Title;
		// QueryFilter.Programs matches courses taught in any of the given programs.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		GetCoursesByID(ctx context.Context, ids ...string) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, code string, excluded ...Course) error
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		// GetManyByID returns the found courses keyed by id.
		GetManyByID(ctx context.Context, ids ...string) (map[string]Course, error)
		Update(ctx context.Context, orig Course, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(ctx context.Context, code string, excluded ...Course) error {
	if err := svc.repo.CheckCodeUniqueness(ctx, code, excluded...); err != nil {
		if errors.Is(err, ErrCodeExists) {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := core.NowFunc()
	programs := nc.Programs
	if programs == nil {
		programs = []string{}
	}
	return svc.repo.CreateCourse(ctx, Course{
		ID:        uuid.NewString(),
		Code:      nc.Code,
		Title:     nc.Title,
		Programs:  programs,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCourses(ctx, filter, ordering...)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Course{}, ErrNotFound
	}
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) GetManyByID(ctx context.Context, ids ...string) (map[string]Course, error) {
	res := make(map[string]Course, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	courses, err := svc.repo.GetCoursesByID(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, c := range courses {
		res[c.ID] = c
	}
	return res, nil
}

func (svc *service) Update(ctx context.Context, orig Course, uc UpdateCourse) (Course, error) {
	c := orig
	if uc.Code != "" {
		c.Code = uc.Code
	}
	if uc.Title != "" {
		c.Title = uc.Title
	}
	if uc.Programs != nil {
		c.Programs = uc.Programs
	}
	c.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}
