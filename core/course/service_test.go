package course_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/testutil"
)

func TestService_CreateUpdate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	nc := course.NewCourse{Code: " se101 ", Title: " Software  Engineering ", Programs: []string{"dti", " DTI", "di"}}
	require.NoError(t, nc.Validate(ctx, env.Validate, env.CourseSvc))
	c, err := env.CourseSvc.Create(ctx, nc)
	require.NoError(t, err)
	assert.Equal(t, "SE101", c.Code)
	assert.Equal(t, []string{user.ProgramDTI, user.ProgramDI}, c.Programs)
	assert.True(t, c.HasProgram(user.ProgramDI))

	dup := course.NewCourse{Code: "SE101", Title: "Again"}
	err = dup.Validate(ctx, env.Validate, env.CourseSvc)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "code", verr.Fields[0].Field)

	bad := course.NewCourse{Code: "XX1", Title: "Bad", Programs: []string{"MBA"}}
	assert.Error(t, bad.Validate(ctx, env.Validate, env.CourseSvc))

	uc := course.UpdateCourse{Title: "Software Engineering II", Programs: []string{}}
	require.NoError(t, uc.Validate(ctx, c, env.Validate, env.CourseSvc), "own code is not a duplicate")
	updated, err := env.CourseSvc.Update(ctx, c, uc)
	require.NoError(t, err)
	assert.Equal(t, "SE101", updated.Code)
	assert.Equal(t, "Software Engineering II", updated.Title)
	assert.Empty(t, updated.Programs)
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	se := testutil.CreateCourse(t, env.CourseRepo, "SE101", "Software Engineering", user.ProgramDTI)
	ux := testutil.CreateCourse(t, env.CourseRepo, "UX201", "Interaction Design", user.ProgramDI, user.ProgramDTI)
	art := testutil.CreateCourse(t, env.CourseRepo, "AR100", "Sketching", user.ProgramDI)

	courses, err := env.CourseSvc.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, []string{art.ID, se.ID, ux.ID}, []string{courses[0].ID, courses[1].ID, courses[2].ID}, "ordered by code")

	courses, err = env.CourseSvc.Query(ctx, &course.QueryFilter{Programs: []string{"dti"}}, core.DBOrdering{Field: "title", Ascending: true})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, ux.ID, courses[0].ID)
	assert.Equal(t, se.ID, courses[1].ID)

	courses, err = env.CourseSvc.Query(ctx, &course.QueryFilter{Search: "design"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, ux.ID, courses[0].ID)

	found, err := env.CourseSvc.GetManyByID(ctx, se.ID, art.ID)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "SE101", found[se.ID].Code)
}

func TestService_GetDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	c := testutil.CreateCourse(t, env.CourseRepo, "SE101", "Software Engineering")

	_, err := env.CourseSvc.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, course.ErrNotFound)

	got, err := env.CourseSvc.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Code, got.Code)

	require.NoError(t, env.CourseSvc.Delete(ctx, c.ID))
	_, err = env.CourseSvc.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, course.ErrNotFound)
	assert.ErrorIs(t, env.CourseSvc.Delete(ctx, c.ID), course.ErrNotFound)
}
