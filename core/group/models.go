package group

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/user"
)

// Group is a student group of a course. MaxMembers 0 means unlimited.
type Group struct {
	ID         string         `json:"id"`
	CourseID   string         `json:"course_id"`
	Course     course.Summary `json:"course"`
	Name       string         `json:"name"`
	MaxMembers int            `json:"max_members"`
	MemberIDs  []string       `json:"-"` // join order
	Members    []user.Summary `json:"members"`
	IsFull     bool           `json:"is_full"`
	CreatedAt  time.Time      `json:"created_at"` // UTC
	UpdatedAt  time.Time      `json:"updated_at"` // UTC
}

func (g Group) Full() bool {
	return g.MaxMembers > 0 && len(g.MemberIDs) >= g.MaxMembers
}

func (g Group) HasMember(userID string) bool {
	return core.StringsContain(g.MemberIDs, userID)
}

// checkJoinable is the membership policy, evaluated against the locked group.
func checkJoinable(g Group, userID string) error {
	if g.HasMember(userID) {
		return ErrAlreadyMember
	}
	if g.Full() {
		return ErrGroupFull
	}
	return nil
}

func checkLeavable(g Group, userID string) error {
	if !g.HasMember(userID) {
		return ErrNotMember
	}
	return nil
}

type NewGroup struct {
	CourseID   string `json:"course_id" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,max=128"`
	MaxMembers int    `json:"max_members" validate:"min=0"`
}

func (ng *NewGroup) Validate(ctx context.Context, validate *validator.Validate, courseSvc course.Service) error {
	ng.CourseID = core.CleanString(ng.CourseID, true /* lower */)
	ng.Name = core.CleanString(ng.Name)
	if err := validate.Struct(ng); err != nil {
		return err
	}
	return checkCourse(ctx, courseSvc, ng.CourseID)
}

// UpdateGroup defines what may be changed on a Group. Nil/empty fields keep their current value.
type UpdateGroup struct {
	CourseID   string `json:"course_id" validate:"omitempty,uuid"`
	Name       string `json:"name" validate:"max=128"`
	MaxMembers *int   `json:"max_members" validate:"omitempty,min=0"`
}

func (ug *UpdateGroup) Validate(ctx context.Context, orig Group, validate *validator.Validate, courseSvc course.Service) error {
	ug.CourseID = core.CleanString(ug.CourseID, true /* lower */)
	ug.Name = core.CleanString(ug.Name)
	if err := validate.Struct(ug); err != nil {
		return err
	}
	if ug.CourseID != "" && ug.CourseID != orig.CourseID {
		return checkCourse(ctx, courseSvc, ug.CourseID)
	}
	return nil
}

func checkCourse(ctx context.Context, courseSvc course.Service, id string) error {
	if _, err := courseSvc.GetByID(ctx, id); err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return err
	}
	return nil
}

type QueryFilter struct {
	CourseIDs []string
	MemberID  string
	Search    string
}

// MemberEvent is the payload of group.joined / group.left events.
type MemberEvent struct {
	GroupID    string    `json:"group_id"`
	CourseID   string    `json:"course_id"`
	UserID     string    `json:"user_id"`
	Members    int       `json:"members"`
	OccurredAt time.Time `json:"occurred_at"`
}
