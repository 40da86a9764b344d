package coaching

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/ical"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("coaching slot not found")
	ErrSlotFull         = errors.New("slot is full")
	ErrAlreadyBooked    = errors.New("already booked")
	ErrNotBooked        = errors.New("not booked")
	ErrMaxBelowBookings = errors.New("max_participants cannot be lower than the current number of participants")
)

// OrderingFields are the fields slots may be ordered by.
var OrderingFields = []string{"start", "end", "max_participants", "created_at"}

var defaultOrdering = []core.DBOrdering{{Field: "start", Ascending: true}}

const mailTimeLayout = "Mon 02 Jan 2006 15:04"

type (
	Repository interface {
		CreateSlot(ctx context.Context, s Slot) (Slot, error)
		QuerySlots(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Slot, error)
		GetSlotByID(ctx context.Context, id string) (Slot, error)
		// UpdateSlot locks the slot, hands its current state to update and saves the result.
		UpdateSlot(ctx context.Context, id string, update func(*Slot) error) (Slot, error)
		// AddParticipant locks the slot and adds userID only if check accepts its current state.
		AddParticipant(ctx context.Context, slotID, userID string, check func(Slot) error) (Slot, error)
		// RemoveParticipant locks the slot and removes userID only if check accepts its current state.
		RemoveParticipant(ctx context.Context, slotID, userID string, check func(Slot) error) (Slot, error)
		DeleteSlot(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, ns NewSlot) (Slot, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Slot, error)
		// Grouped runs Query and arranges the result with GroupByDay.
		Grouped(ctx context.Context, filter QueryFilter) ([]Day, error)
		GetByID(ctx context.Context, id string) (Slot, error)
		Update(ctx context.Context, orig Slot, us UpdateSlot) (Slot, error)
		Delete(ctx context.Context, id string) error
		Book(ctx context.Context, id string, usr user.User) (Slot, error)
		Cancel(ctx context.Context, id string, usr user.User) (Slot, error)
	}

	service struct {
		repo      Repository
		courseSvc course.Service
		userSvc   user.Service
		mailSvc   core.EmailService
		events    core.EventPublisher
		logger    core.Logger
		conf      *core.Config
		goFunc    func(func())
	}
)

func NewService(
	repo Repository,
	courseSvc course.Service,
	userSvc user.Service,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:      repo,
		courseSvc: courseSvc,
		userSvc:   userSvc,
		mailSvc:   mailSvc,
		events:    events,
		logger:    logger,
		conf:      conf,
		goFunc:    func(f func()) { go f() },
	}
}

func (svc *service) Create(ctx context.Context, ns NewSlot) (Slot, error) {
	now := core.NowFunc()
	s, err := svc.repo.CreateSlot(ctx, Slot{
		ID:              uuid.NewString(),
		CourseID:        ns.CourseID,
		Start:           ns.start,
		End:             ns.end,
		MaxParticipants: ns.MaxParticipants,
		ParticipantIDs:  []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Slot{}, err
	}
	return svc.expandOne(ctx, s)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Slot, error) {
	if ordering = core.FilterOrderings(ordering, OrderingFields...); len(ordering) == 0 {
		ordering = defaultOrdering
	}
	slots, err := svc.repo.QuerySlots(ctx, filter, ordering...)
	if err != nil {
		return nil, err
	}
	return svc.expand(ctx, slots)
}

func (svc *service) Grouped(ctx context.Context, filter QueryFilter) ([]Day, error) {
	slots, err := svc.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return GroupByDay(slots, svc.conf.Location), nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Slot{}, ErrNotFound
	}
	s, err := svc.repo.GetSlotByID(ctx, id)
	if err != nil {
		return Slot{}, err
	}
	return svc.expandOne(ctx, s)
}

func (svc *service) Update(ctx context.Context, orig Slot, us UpdateSlot) (Slot, error) {
	s, err := svc.repo.UpdateSlot(ctx, orig.ID, func(s *Slot) error {
		if us.MaxParticipants != nil {
			if limit := *us.MaxParticipants; limit > 0 && limit < len(s.ParticipantIDs) {
				return core.NewValidationError(ErrMaxBelowBookings,
					core.FieldError{Field: "max_participants", Error: ErrMaxBelowBookings.Error()})
			}
			s.MaxParticipants = *us.MaxParticipants
		}
		if us.CourseID != "" {
			s.CourseID = us.CourseID
		}
		if !us.start.IsZero() {
			s.Start, s.End = us.start, us.end
		}
		s.UpdatedAt = core.NowFunc()
		return nil
	})
	if err != nil {
		return Slot{}, err
	}
	return svc.expandOne(ctx, s)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return svc.repo.DeleteSlot(ctx, id)
}

func (svc *service) Book(ctx context.Context, id string, usr user.User) (Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Slot{}, ErrNotFound
	}
	s, err := svc.repo.AddParticipant(ctx, id, usr.ID, func(s Slot) error {
		if err := checkBookable(s, usr.ID); err != nil {
			return core.NewValidationError(err)
		}
		return nil
	})
	if err != nil {
		return Slot{}, err
	}
	if s, err = svc.expandOne(ctx, s); err != nil {
		return Slot{}, err
	}

	svc.goFunc(func() {
		svc.publish(core.SubjectSlotBooked, s, usr)
		svc.sendSlotMail(s, usr, "slot_booked", "Coaching slot booked")
	})
	return s, nil
}

func (svc *service) Cancel(ctx context.Context, id string, usr user.User) (Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Slot{}, ErrNotFound
	}
	s, err := svc.repo.RemoveParticipant(ctx, id, usr.ID, func(s Slot) error {
		if err := checkCancellable(s, usr.ID); err != nil {
			return core.NewValidationError(err)
		}
		return nil
	})
	if err != nil {
		return Slot{}, err
	}
	if s, err = svc.expandOne(ctx, s); err != nil {
		return Slot{}, err
	}

	svc.goFunc(func() {
		svc.publish(core.SubjectSlotCancelled, s, usr)
		svc.sendSlotMail(s, usr, "slot_cancelled", "Coaching slot cancelled")
	})
	return s, nil
}

func (svc *service) publish(subject string, s Slot, usr user.User) {
	remaining := -1
	if s.MaxParticipants > 0 {
		remaining = s.MaxParticipants - len(s.ParticipantIDs)
	}
	evt := SlotEvent{
		SlotID:     s.ID,
		CourseID:   s.CourseID,
		UserID:     usr.ID,
		Start:      s.Start,
		End:        s.End,
		Remaining:  remaining,
		OccurredAt: core.NowFunc(),
	}
	if err := svc.events.Publish(context.Background(), subject, evt); err != nil {
		svc.logger.Error(fmt.Sprintf("coaching: publishing %s: %v", subject, err), err, usr)
	}
}

func (svc *service) sendSlotMail(s Slot, usr user.User, tmpl, subject string) {
	loc := svc.conf.Location
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: map[string]string{
			"Name":   usr.Name,
			"Course": s.Course.Code + " " + s.Course.Title,
			"Start":  s.Start.In(loc).Format(mailTimeLayout),
			"End":    s.End.In(loc).Format(mailTimeLayout),
		},
	}
	if tmpl == "slot_booked" {
		invite := ical.Render(ical.Calendar{
			Method: ics.MethodRequest,
			Events: []ical.Event{SlotCalendarEvent(s, svc.conf.FrontendBaseURL)},
		})
		if err := msg.Attach(bytes.NewReader(invite), "coaching.ics", ical.ContentType); err != nil {
			svc.logger.Error(fmt.Sprintf("coaching: attaching invite: %v", err), err, usr)
		}
	}
	svc.mailSvc.SendMessages(msg)
}

// SlotCalendarEvent maps a slot to its calendar representation.
func SlotCalendarEvent(s Slot, frontendBaseURL string) ical.Event {
	return ical.Event{
		UID:      "coaching-" + s.ID + "@ratiba",
		Summary:  fmt.Sprintf("Coaching: %s %s", s.Course.Code, s.Course.Title),
		URL:      frontendBaseURL + "/coaching",
		Category: schedule.TypeCoaching,
		Start:    s.Start,
		End:      s.End,
		Created:  s.CreatedAt,
		Modified: s.UpdatedAt,
	}
}

func (svc *service) expandOne(ctx context.Context, s Slot) (Slot, error) {
	res, err := svc.expand(ctx, []Slot{s})
	if err != nil {
		return Slot{}, err
	}
	return res[0], nil
}

// expand embeds course and participant summaries.
func (svc *service) expand(ctx context.Context, slots []Slot) ([]Slot, error) {
	var courseIDs, userIDs []string
	for _, s := range slots {
		if !core.StringsContain(courseIDs, s.CourseID) {
			courseIDs = append(courseIDs, s.CourseID)
		}
		for _, id := range s.ParticipantIDs {
			if !core.StringsContain(userIDs, id) {
				userIDs = append(userIDs, id)
			}
		}
	}

	courses, err := svc.courseSvc.GetManyByID(ctx, courseIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching slot courses")
	}
	users, err := svc.userSvc.GetManyByID(ctx, userIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching slot participants")
	}
	summaries := make(map[string]user.Summary, len(users))
	for _, u := range users {
		summaries[u.ID] = u.Summary()
	}

	for i := range slots {
		s := &slots[i]
		s.Course = courses[s.CourseID].Summary()
		s.DurationMinutes = schedule.DurationMinutes(s.Start, s.End)
		s.IsFull = s.Full()
		s.Participants = make([]user.Summary, 0, len(s.ParticipantIDs))
		for _, id := range s.ParticipantIDs {
			if sum, ok := summaries[id]; ok {
				s.Participants = append(s.Participants, sum)
			}
		}
	}
	return slots, nil
}
