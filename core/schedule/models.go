package schedule

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
)

// Session types
const (
	TypeLecture  = "lecture"
	TypeWorkshop = "workshop"
	TypeCoaching = "coaching"
	TypeExam     = "exam"
)

// Location types
const (
	LocationOnsite = "onsite"
	LocationOnline = "online"
	LocationHybrid = "hybrid"
)

// Attendance
const (
	AttendanceMandatory = "mandatory"
	AttendanceOptional  = "optional"
)

var (
	AllTypes         = []string{TypeLecture, TypeWorkshop, TypeCoaching, TypeExam}
	AllLocationTypes = []string{LocationOnsite, LocationOnline, LocationHybrid}
	AllAttendances   = []string{AttendanceMandatory, AttendanceOptional}
)

// Session is a scheduled lecture, workshop, coaching meeting or exam.
type Session struct {
	ID              string         `json:"id"`
	CourseID        string         `json:"course_id"`
	Course          course.Summary `json:"course"`
	Type            string         `json:"type"`
	Title           string         `json:"title"`
	Start           time.Time      `json:"start"` // UTC
	End             time.Time      `json:"end"`   // UTC
	DurationMinutes int            `json:"duration_minutes"`
	Location        string         `json:"location"`
	LocationType    string         `json:"location_type"`
	Attendance      string         `json:"attendance"`
	Objectives      []string       `json:"objectives"`
	CreatedAt       time.Time      `json:"created_at"` // UTC
	UpdatedAt       time.Time      `json:"updated_at"` // UTC
}

type NewSession struct {
	CourseID     string   `json:"course_id" validate:"required,uuid"`
	Type         string   `json:"type" validate:"required,oneof=lecture workshop coaching exam"`
	Title        string   `json:"title" validate:"required,max=255"`
	Location     string   `json:"location" validate:"max=255"`
	LocationType string   `json:"location_type" validate:"omitempty,oneof=onsite online hybrid"`
	Attendance   string   `json:"attendance" validate:"omitempty,oneof=mandatory optional"`
	Objectives   []string `json:"objectives" validate:"dive,max=500"`
	TimeInput

	start, end time.Time
}

func (ns *NewSession) Validate(ctx context.Context, validate *validator.Validate, loc *time.Location, courseSvc course.Service) error {
	ns.CourseID = core.CleanString(ns.CourseID, true /* lower */)
	ns.Type = core.CleanString(ns.Type, true /* lower */)
	ns.Title = core.CleanString(ns.Title)
	ns.Location = core.CleanString(ns.Location)
	ns.LocationType = core.CleanString(ns.LocationType, true /* lower */)
	if ns.LocationType == "" {
		ns.LocationType = LocationOnsite
	}
	ns.Attendance = core.CleanString(ns.Attendance, true /* lower */)
	if ns.Attendance == "" {
		ns.Attendance = AttendanceMandatory
	}
	ns.Objectives = core.CleanStrings(ns.Objectives)

	if err := validate.Struct(ns); err != nil {
		return err
	}

	var err error
	if ns.start, ns.end, err = ns.TimeInput.Parse(loc); err != nil {
		return err
	}
	return checkCourse(ctx, courseSvc, ns.CourseID)
}

// UpdateSession defines what may be changed on a Session. Empty fields keep their current value;
// start and end change only when a time input is provided.
type UpdateSession struct {
	CourseID     string   `json:"course_id" validate:"omitempty,uuid"`
	Type         string   `json:"type" validate:"omitempty,oneof=lecture workshop coaching exam"`
	Title        string   `json:"title" validate:"max=255"`
	Location     *string  `json:"location" validate:"omitempty,max=255"`
	LocationType string   `json:"location_type" validate:"omitempty,oneof=onsite online hybrid"`
	Attendance   string   `json:"attendance" validate:"omitempty,oneof=mandatory optional"`
	Objectives   []string `json:"objectives" validate:"omitempty,dive,max=500"`
	TimeInput

	start, end time.Time
}

func (us *UpdateSession) Validate(ctx context.Context, orig Session, validate *validator.Validate, loc *time.Location, courseSvc course.Service) error {
	us.CourseID = core.CleanString(us.CourseID, true /* lower */)
	us.Type = core.CleanString(us.Type, true /* lower */)
	us.Title = core.CleanString(us.Title)
	if us.Location != nil {
		location := core.CleanString(*us.Location)
		us.Location = &location
	}
	us.LocationType = core.CleanString(us.LocationType, true /* lower */)
	us.Attendance = core.CleanString(us.Attendance, true /* lower */)
	if us.Objectives != nil {
		us.Objectives = core.CleanStrings(us.Objectives)
	}

	if err := validate.Struct(us); err != nil {
		return err
	}

	if us.TimeInput.IsEmpty() {
		us.start, us.end = orig.Start, orig.End
	} else {
		var err error
		if us.start, us.end, err = us.TimeInput.Parse(loc); err != nil {
			return err
		}
	}

	if us.CourseID != "" && us.CourseID != orig.CourseID {
		return checkCourse(ctx, courseSvc, us.CourseID)
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

// QueryFilter selects sessions. Zero fields are ignored; From and To bound the session start (inclusive, exclusive).
type QueryFilter struct {
	CourseIDs []string
	Program   string
	Types     []string
	From      time.Time
	To        time.Time
}
