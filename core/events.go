package core

import "context"

// Event subjects.
const (
	SubjectSlotBooked          = "coaching.slot.booked"
	SubjectSlotCancelled       = "coaching.slot.cancelled"
	SubjectGroupJoined         = "group.joined"
	SubjectGroupLeft           = "group.left"
	SubjectReportCreated       = "report.created"
	SubjectReportStatusChanged = "report.status_changed"
)

// EventPublisher is any service that can broadcast domain events.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}
