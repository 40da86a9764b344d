// Package testutil wires the services on the in-memory database for tests.
package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/calendar"
	"github.com/trezcool/ratiba/core/coaching"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/group"
	"github.com/trezcool/ratiba/core/report"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/user"
	emailsvc "github.com/trezcool/ratiba/services/email"
	eventsvc "github.com/trezcool/ratiba/services/events"
	logsvc "github.com/trezcool/ratiba/services/logger"
	inmemdb "github.com/trezcool/ratiba/storage/database/inmem"
)

// Env holds the repositories and synchronous services of one test.
type Env struct {
	DB         *inmemdb.DB
	Conf       *core.Config
	Logger     core.Logger
	MailSvc    core.EmailService
	Events     *eventsvc.Recorder
	Validate   *validator.Validate
	Translator ut.Translator

	UserRepo    user.Repository
	CourseRepo  course.Repository
	SessionRepo schedule.Repository
	SlotRepo    coaching.Repository
	GroupRepo   group.Repository
	ReportRepo  report.Repository

	UserSvc     user.Service
	CourseSvc   course.Service
	SessionSvc  schedule.Service
	CoachingSvc coaching.Service
	GroupSvc    group.Service
	ReportSvc   report.Service
	CalendarSvc calendar.Service
}

// NewEnv builds a fresh Env. Emails end up in emailsvc.SentMessages, which is cleared.
func NewEnv(t testing.TB) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(io.Discard, conf)
	core.ParseEmailTemplates(logger, conf)
	emailsvc.ClearSentMessages()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	db := inmemdb.Open()
	env := &Env{
		DB:          db,
		Conf:        conf,
		Logger:      logger,
		MailSvc:     emailsvc.NewConsoleServiceMock(logger, conf),
		Events:      eventsvc.NewRecorder(),
		Validate:    validate,
		Translator:  translator,
		UserRepo:    inmemdb.NewUserRepository(db),
		CourseRepo:  inmemdb.NewCourseRepository(db),
		SessionRepo: inmemdb.NewSessionRepository(db),
		SlotRepo:    inmemdb.NewSlotRepository(db),
		GroupRepo:   inmemdb.NewGroupRepository(db),
		ReportRepo:  inmemdb.NewReportRepository(db),
	}

	env.UserSvc = user.NewServiceMock(env.UserRepo, env.MailSvc, conf)
	env.CourseSvc = course.NewService(env.CourseRepo)
	env.SessionSvc = schedule.NewService(env.SessionRepo, env.CourseSvc)
	env.CoachingSvc = coaching.NewServiceMock(env.SlotRepo, env.CourseSvc, env.UserSvc, env.MailSvc, env.Events, logger, conf)
	env.GroupSvc = group.NewServiceMock(env.GroupRepo, env.CourseSvc, env.UserSvc, env.Events, logger)
	env.ReportSvc = report.NewServiceMock(env.ReportRepo, env.UserSvc, env.MailSvc, env.Events, logger, conf)
	env.CalendarSvc = calendar.NewService(env.UserSvc, env.SessionSvc, env.CoachingSvc, conf)
	return env
}

func tstamp(createdAt []time.Time) time.Time {
	if len(createdAt) > 0 {
		return createdAt[0].UTC()
	}
	return core.NowFunc().UTC()
}

func CreateUser(
	t testing.TB,
	repo user.Repository,
	name, email, pwd, role, program string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	ts := tstamp(createdAt)
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Initials:  user.Initials(name),
		Email:     email,
		Program:   program,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t testing.TB, repo course.Repository, code, title string, programs ...string) course.Course {
	t.Helper()
	now := core.NowFunc().UTC()
	if programs == nil {
		programs = []string{}
	}
	c, err := repo.CreateCourse(context.Background(), course.Course{
		ID:        uuid.NewString(),
		Code:      code,
		Title:     title,
		Programs:  programs,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func CreateSession(t testing.TB, repo schedule.Repository, c course.Course, typ, title string, start time.Time, dur time.Duration) schedule.Session {
	t.Helper()
	now := core.NowFunc().UTC()
	s, err := repo.CreateSession(context.Background(), schedule.Session{
		ID:           uuid.NewString(),
		CourseID:     c.ID,
		Type:         typ,
		Title:        title,
		Start:        start.UTC(),
		End:          start.Add(dur).UTC(),
		LocationType: schedule.LocationOnsite,
		Attendance:   schedule.AttendanceMandatory,
		Objectives:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return s
}

func CreateSlot(t testing.TB, repo coaching.Repository, c course.Course, start time.Time, dur time.Duration, maxParticipants int) coaching.Slot {
	t.Helper()
	now := core.NowFunc().UTC()
	s, err := repo.CreateSlot(context.Background(), coaching.Slot{
		ID:              uuid.NewString(),
		CourseID:        c.ID,
		Start:           start.UTC(),
		End:             start.Add(dur).UTC(),
		MaxParticipants: maxParticipants,
		ParticipantIDs:  []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateSlot() failed: %v", err)
	}
	return s
}

func CreateGroup(t testing.TB, repo group.Repository, c course.Course, name string, maxMembers int) group.Group {
	t.Helper()
	now := core.NowFunc().UTC()
	g, err := repo.CreateGroup(context.Background(), group.Group{
		ID:         uuid.NewString(),
		CourseID:   c.ID,
		Name:       name,
		MaxMembers: maxMembers,
		MemberIDs:  []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return g
}

func CreateReport(t testing.TB, repo report.Repository, reporter user.User, typ, title, status string) report.Report {
	t.Helper()
	now := core.NowFunc().UTC()
	r, err := repo.CreateReport(context.Background(), report.Report{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Status:    status,
		UserID:    reporter.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateReport() failed: %v", err)
	}
	return r
}
