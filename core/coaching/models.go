package coaching

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/user"
)

// Slot is a bookable coaching time slot. MaxParticipants 0 means unlimited.
type Slot struct {
	ID              string         `json:"id"`
	CourseID        string         `json:"course_id"`
	Course          course.Summary `json:"course"`
	Start           time.Time      `json:"start"` // UTC
	End             time.Time      `json:"end"`   // UTC
	DurationMinutes int            `json:"duration_minutes"`
	MaxParticipants int            `json:"max_participants"`
	ParticipantIDs  []string       `json:"-"` // booking order
	Participants    []user.Summary `json:"participants"`
	IsFull          bool           `json:"is_full"`
	CreatedAt       time.Time      `json:"created_at"` // UTC
	UpdatedAt       time.Time      `json:"updated_at"` // UTC
}

func (s Slot) Full() bool {
	return s.MaxParticipants > 0 && len(s.ParticipantIDs) >= s.MaxParticipants
}

func (s Slot) HasParticipant(userID string) bool {
	return core.StringsContain(s.ParticipantIDs, userID)
}

// checkBookable is the booking policy, evaluated against the locked slot.
func checkBookable(s Slot, userID string) error {
	if s.Full() {
		return ErrSlotFull
	}
	if s.HasParticipant(userID) {
		return ErrAlreadyBooked
	}
	return nil
}

func checkCancellable(s Slot, userID string) error {
	if !s.HasParticipant(userID) {
		return ErrNotBooked
	}
	return nil
}

type NewSlot struct {
	CourseID        string `json:"course_id" validate:"required,uuid"`
	MaxParticipants int    `json:"max_participants" validate:"min=0"`
	schedule.TimeInput

	start, end time.Time
}

func (ns *NewSlot) Validate(ctx context.Context, validate *validator.Validate, loc *time.Location, courseSvc course.Service) error {
	ns.CourseID = core.CleanString(ns.CourseID, true /* lower */)
	if err := validate.Struct(ns); err != nil {
		return err
	}

	var err error
	if ns.start, ns.end, err = ns.TimeInput.Parse(loc); err != nil {
		return err
	}
	return checkCourse(ctx, courseSvc, ns.CourseID)
}

// UpdateSlot defines what may be changed on a Slot. Nil/empty fields keep their current value.
type UpdateSlot struct {
	CourseID        string `json:"course_id" validate:"omitempty,uuid"`
	MaxParticipants *int   `json:"max_participants" validate:"omitempty,min=0"`
	schedule.TimeInput

	start, end time.Time
}

func (us *UpdateSlot) Validate(ctx context.Context, orig Slot, validate *validator.Validate, loc *time.Location, courseSvc course.Service) error {
	us.CourseID = core.CleanString(us.CourseID, true /* lower */)
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

// QueryFilter selects slots. Zero fields are ignored; From and To bound the slot start (inclusive, exclusive).
type QueryFilter struct {
	CourseIDs     []string
	ParticipantID string
	From          time.Time
	To            time.Time
	// Available keeps only slots that are not full.
	Available bool
}

// TimeRange groups the slots of a day sharing the same start and end times.
type TimeRange struct {
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
	Slots []Slot `json:"slots"`
}

type Day struct {
	Date       string      `json:"date"` // YYYY-MM-DD
	TimeRanges []TimeRange `json:"time_ranges"`
}

// SlotEvent is the payload of coaching.slot.* events.
type SlotEvent struct {
	SlotID     string    `json:"slot_id"`
	CourseID   string    `json:"course_id"`
	UserID     string    `json:"user_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Remaining  int       `json:"remaining"` // -1 when unlimited
	OccurredAt time.Time `json:"occurred_at"`
}
