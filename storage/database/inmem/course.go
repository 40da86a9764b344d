package inmemdb

import (
	"context"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
)

type courseRepository struct {
	db   *courseTable
	root *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course, root: db}
}

func cloneCourse(c course.Course) course.Course {
	c.Programs = copyStrings(c.Programs)
	return c
}

func (repo *courseRepository) CheckCodeUniqueness(_ context.Context, code string, excluded ...course.Course) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.table {
		if c.Code != code {
			continue
		}
		isExcl := false
		for _, ex := range excluded {
			if ex.ID == c.ID {
				isExcl = true
				break
			}
		}
		if !isExcl {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c = cloneCourse(c)
	repo.db.table[c.ID] = &c
	return cloneCourse(c), nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		if filter != nil {
			if filter.Search != "" && !(containsFold(c.Code, filter.Search) || containsFold(c.Title, filter.Search)) {
				continue
			}
			if len(filter.Programs) > 0 {
				match := false
				for _, p := range filter.Programs {
					if c.HasProgram(p) {
						match = true
						break
					}
				}
				if !match {
					continue
				}
			}
		}
		courses = append(courses, cloneCourse(*c))
	}

	ordering = core.FilterOrderings(ordering, "code", "title", "created_at")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "code", Ascending: true}}
	}
	orderBy(courses, ordering, func(c course.Course, field string) interface{} {
		switch field {
		case "title":
			return c.Title
		case "created_at":
			return c.CreatedAt
		default:
			return c.Code
		}
	}, func(c course.Course) string { return c.ID })
	return courses, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return cloneCourse(*c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCoursesByID(_ context.Context, ids ...string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := repo.db.table[id]; ok {
			courses = append(courses, cloneCourse(*c))
		}
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	c = cloneCourse(c)
	repo.db.table[c.ID] = &c
	return cloneCourse(c), nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.table, id)
	repo.root.cascadeCourse(id)
	return nil
}
