package calendar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/coaching"
	"github.com/trezcool/ratiba/core/ical"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/user"
)

// Feed is a rendered iCalendar document with its cache validators.
type Feed struct {
	Body         []byte
	ETag         string // quoted sha256 of Body
	LastModified time.Time
}

// NotModified reports whether a request carrying ifNoneMatch can be answered with 304.
// If-Modified-Since is ignored: Last-Modified does not move when bookings or deletions change the event set.
func (f Feed) NotModified(ifNoneMatch string) bool {
	for _, tag := range strings.Split(ifNoneMatch, ",") {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
		if tag != "" && (tag == f.ETag || tag == "*") {
			return true
		}
	}
	return false
}

type (
	Service interface {
		// Token returns the user's calendar token, creating it on first use.
		Token(ctx context.Context, usr user.User) (string, error)
		// RegenerateToken replaces the user's calendar token; the previous one stops working.
		RegenerateToken(ctx context.Context, usr user.User) (string, error)
		// Authenticate resolves the active user owning a calendar token.
		Authenticate(ctx context.Context, token string) (user.User, error)
		// Feed renders the sessions of the user's program (every session for staff and program-less users)
		// and the coaching slots they booked.
		Feed(ctx context.Context, usr user.User) (Feed, error)
	}

	service struct {
		userSvc     user.Service
		sessionSvc  schedule.Service
		coachingSvc coaching.Service
		conf        *core.Config
	}
)

func NewService(userSvc user.Service, sessionSvc schedule.Service, coachingSvc coaching.Service, conf *core.Config) Service {
	return &service{userSvc: userSvc, sessionSvc: sessionSvc, coachingSvc: coachingSvc, conf: conf}
}

func (svc *service) Token(ctx context.Context, usr user.User) (string, error) {
	usr, err := svc.userSvc.CalendarToken(ctx, usr)
	if err != nil {
		return "", err
	}
	return usr.CalendarToken, nil
}

func (svc *service) RegenerateToken(ctx context.Context, usr user.User) (string, error) {
	usr, err := svc.userSvc.RegenerateCalendarToken(ctx, usr)
	if err != nil {
		return "", err
	}
	return usr.CalendarToken, nil
}

func (svc *service) Authenticate(ctx context.Context, token string) (user.User, error) {
	usr, err := svc.userSvc.GetByCalendarToken(ctx, token)
	if err != nil {
		return user.User{}, err
	}
	if !usr.IsActive {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (svc *service) Feed(ctx context.Context, usr user.User) (Feed, error) {
	filter := schedule.QueryFilter{}
	if !usr.IsStaff() && usr.Program != "" {
		filter.Program = usr.Program
	}
	sessions, err := svc.sessionSvc.Query(ctx, filter)
	if err != nil {
		return Feed{}, errors.Wrap(err, "querying feed sessions")
	}
	slots, err := svc.coachingSvc.Query(ctx, coaching.QueryFilter{ParticipantID: usr.ID})
	if err != nil {
		return Feed{}, errors.Wrap(err, "querying feed coaching slots")
	}

	events := make([]ical.Event, 0, len(sessions)+len(slots))
	for _, s := range sessions {
		events = append(events, SessionCalendarEvent(s, svc.conf.FrontendBaseURL))
	}
	for _, s := range slots {
		events = append(events, coaching.SlotCalendarEvent(s, svc.conf.FrontendBaseURL))
	}

	body := ical.Render(ical.Calendar{
		Name:     svc.conf.AppName,
		Timezone: svc.conf.Location.String(),
		Events:   events,
	})
	sum := sha256.Sum256(body)
	return Feed{
		Body:         body,
		ETag:         `"` + hex.EncodeToString(sum[:]) + `"`,
		LastModified: ical.LastModified(events),
	}, nil
}

// SessionCalendarEvent maps a session to its calendar representation.
func SessionCalendarEvent(s schedule.Session, frontendBaseURL string) ical.Event {
	var desc strings.Builder
	fmt.Fprintf(&desc, "%s %s (%s, %s)", s.Course.Code, s.Course.Title, s.Type, s.Attendance)
	for _, obj := range s.Objectives {
		desc.WriteString("\n- " + obj)
	}

	location := s.Location
	if s.LocationType != "" && s.LocationType != schedule.LocationOnsite {
		if location != "" {
			location += " "
		}
		location += "(" + s.LocationType + ")"
	}

	return ical.Event{
		UID:         "session-" + s.ID + "@ratiba",
		Summary:     fmt.Sprintf("[%s] %s", s.Course.Code, s.Title),
		Description: desc.String(),
		Location:    location,
		URL:         frontendBaseURL + "/schedule",
		Category:    s.Type,
		Start:       s.Start,
		End:         s.End,
		Created:     s.CreatedAt,
		Modified:    s.UpdatedAt,
	}
}
