package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
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
	"github.com/trezcool/ratiba/storage/database"
	inmemdb "github.com/trezcool/ratiba/storage/database/inmem"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
)

// EngineMemory keeps every table in process memory. Data is lost on restart.
const EngineMemory = "memory"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// HealthCheck reports whether the storage is reachable.
	HealthCheck func(ctx context.Context) error

	// Closer releases a resource opened by the container.
	Closer func() error

	Storage struct {
		dig.Out
		UserRepo    user.Repository
		CourseRepo  course.Repository
		SessionRepo schedule.Repository
		SlotRepo    coaching.Repository
		GroupRepo   group.Repository
		ReportRepo  report.Repository
		HealthCheck HealthCheck
		Closer      Closer `name:"dbCloser"`
	}

	Events struct {
		dig.Out
		Publisher core.EventPublisher
		Closer    Closer `name:"eventsCloser"`
	}

	// Closers are released by main on shutdown.
	Closers struct {
		dig.In
		DB     Closer `name:"dbCloser"`
		Events Closer `name:"eventsCloser"`
	}

	ServerParams struct {
		dig.In
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		UserSvc     user.Service
		CourseSvc   course.Service
		SessionSvc  schedule.Service
		CoachingSvc coaching.Service
		GroupSvc    group.Service
		ReportSvc   report.Service
		CalendarSvc calendar.Service
		HealthCheck HealthCheck
	}
)

// rollbarEnabled reports whether errors are sent to rollbar. Tests and debug runs stay local.
func rollbarEnabled(conf *core.Config) bool {
	return !conf.Debug && !conf.TestMode && conf.RollbarToken != ""
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf).With("component", "api")
	logger.Enable(rollbarEnabled(conf))
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf).With("component", "db")
	logger.Enable(rollbarEnabled(conf))
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == EngineMemory {
		db := inmemdb.Open()
		return Storage{
			UserRepo:    inmemdb.NewUserRepository(db),
			CourseRepo:  inmemdb.NewCourseRepository(db),
			SessionRepo: inmemdb.NewSessionRepository(db),
			SlotRepo:    inmemdb.NewSlotRepository(db),
			GroupRepo:   inmemdb.NewGroupRepository(db),
			ReportRepo:  inmemdb.NewReportRepository(db),
			HealthCheck: func(context.Context) error { return nil },
			Closer:      func() error { return nil },
		}
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if err = database.Ping(ctx, db); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if err = database.Migrate(ctx, db, "up"); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	loggerParam.Logger.Info(fmt.Sprintf("connected to %s", conf.Database.Address()))

	return Storage{
		UserRepo:    sqlxrepos.NewUserRepository(db),
		CourseRepo:  sqlxrepos.NewCourseRepository(db),
		SessionRepo: sqlxrepos.NewSessionRepository(db),
		SlotRepo:    sqlxrepos.NewSlotRepository(db),
		GroupRepo:   sqlxrepos.NewGroupRepository(db),
		ReportRepo:  sqlxrepos.NewReportRepository(db),
		HealthCheck: db.PingContext,
		Closer:      db.Close,
	}
}

func newEvents(conf *core.Config, logger core.Logger) Events {
	if conf.NATSURL == "" {
		logger.Info("natsURL is not set: events are kept in memory")
		return Events{Publisher: eventsvc.NewRecorder(), Closer: func() error { return nil }}
	}
	pub, err := eventsvc.NewNatsPublisher(conf.NATSURL, logger, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to nats: %v", err), err)
	}
	return Events{Publisher: pub, Closer: pub.Close}
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	return validate
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(nil, &echoapi.Deps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		CourseSvc:   p.CourseSvc,
		SessionSvc:  p.SessionSvc,
		CoachingSvc: p.CoachingSvc,
		GroupSvc:    p.GroupSvc,
		ReportSvc:   p.ReportSvc,
		CalendarSvc: p.CalendarSvc,
		HealthCheck: p.HealthCheck,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEvents))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(schedule.NewService))
	must(c.Provide(coaching.NewService))
	must(c.Provide(group.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(calendar.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
