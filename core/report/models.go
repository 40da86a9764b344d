package report

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
)

// Report types
const (
	TypeBug     = "bug"
	TypeFeature = "feature"
)

// Report statuses
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

var (
	AllTypes    = []string{TypeBug, TypeFeature}
	AllStatuses = []string{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
)

// Report is a bug or feature ticket submitted by a user.
type Report struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	UserID      string        `json:"user_id"`
	Reporter    *user.Summary `json:"reporter"`
	CreatedAt   time.Time     `json:"created_at"` // UTC
	UpdatedAt   time.Time     `json:"updated_at"` // UTC
}

// CanView reports whether usr may see r.
func (r Report) CanView(usr user.User) bool {
	return usr.IsAdmin() || r.UserID == usr.ID
}

type NewReport struct {
	Type        string `json:"type" validate:"required,oneof=bug feature"`
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
}

func (nr *NewReport) Validate(validate *validator.Validate) error {
	nr.Type = core.CleanString(nr.Type, true /* lower */)
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	return validate.Struct(nr)
}

// UpdateReport defines what an admin may change on a Report. Empty/nil fields keep their current value.
type UpdateReport struct {
	Status      string  `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
	Title       string  `json:"title" validate:"max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (ur *UpdateReport) Validate(validate *validator.Validate) error {
	ur.Status = core.CleanString(ur.Status)
	ur.Title = core.CleanString(ur.Title)
	if ur.Description != nil {
		desc := core.CleanString(*ur.Description)
		ur.Description = &desc
	}
	return validate.Struct(ur)
}

type QueryFilter struct {
	Statuses []string `query:"status"`
	Types    []string `query:"type"`
	UserID   string   `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Statuses = core.CleanStrings(qf.Statuses, true /* lower */)
	qf.Types = core.CleanStrings(qf.Types, true /* lower */)
}

// Event is the payload of report.* events.
type Event struct {
	ReportID   string    `json:"report_id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	OldStatus  string    `json:"old_status,omitempty"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}
