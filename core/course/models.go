package course

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

type Course struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Programs  []string  `json:"programs"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (c Course) Summary() Summary {
	return Summary{ID: c.ID, Code: c.Code, Title: c.Title}
}

// HasProgram reports whether the course is taught in program.
func (c Course) HasProgram(program string) bool {
	return core.StringsContain(c.Programs, program)
}

// Summary is the part of a Course embedded in sessions, groups and coaching slots.
type Summary struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Title string `json:"title"`
}

type NewCourse struct {
	Code     string   `json:"code" validate:"required,max=32"`
	Title    string   `json:"title" validate:"required,max=255"`
	Programs []string `json:"programs" validate:"dive,oneof=DTI DI"`
}

func (nc *NewCourse) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nc.Code = strings.ToUpper(core.CleanString(nc.Code))
	nc.Title = core.CleanString(nc.Title)
	nc.Programs = cleanPrograms(nc.Programs)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nc.Code)
}

// UpdateCourse defines what may be changed on a Course. Empty fields keep their current value.
type UpdateCourse struct {
	Code     string   `json:"code" validate:"omitempty,max=32"`
	Title    string   `json:"title" validate:"omitempty,max=255"`
	Programs []string `json:"programs" validate:"omitempty,dive,oneof=DTI DI"`
}

func (uc *UpdateCourse) Validate(ctx context.Context, orig Course, validate *validator.Validate, svc Service) error {
	if code := strings.ToUpper(core.CleanString(uc.Code)); code != "" {
		uc.Code = code
	} else {
		uc.Code = orig.Code
	}
	if title := core.CleanString(uc.Title); title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	if uc.Programs != nil {
		uc.Programs = cleanPrograms(uc.Programs)
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uc.Code, orig)
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Programs []string `query:"program"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Programs = cleanPrograms(qf.Programs)
}

// cleanPrograms upper-cases programs and drops blanks and duplicates.
func cleanPrograms(programs []string) []string {
	if programs == nil {
		return nil
	}
	res := make([]string, 0, len(programs))
	for _, p := range core.CleanStrings(programs) {
		p = strings.ToUpper(p)
		if !core.StringsContain(res, p) {
			res = append(res, p)
		}
	}
	return res
}
