package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/calendar"
	"github.com/trezcool/ratiba/core/coaching"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/group"
	"github.com/trezcool/ratiba/core/report"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/user"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc     user.Service
		CourseSvc   course.Service
		SessionSvc  schedule.Service
		CoachingSvc coaching.Service
		GroupSvc    group.Service
		ReportSvc   report.Service
		CalendarSvc calendar.Service

		// HealthCheck reports whether the backing storage is reachable. Optional.
		HealthCheck func(ctx context.Context) error
	}

	Server struct {
		*http.Server
		app            *echo.Echo
		deps           *Deps
		auth           *authenticator
		errors         chan error
		shutdownSignal chan os.Signal
	}
)

// NewServer builds the API server. shutdown receives the interrupt signals that trigger a graceful stop;
// a nil channel gets one listening to SIGINT and SIGTERM.
func NewServer(shutdown chan os.Signal, deps *Deps) *Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	}

	app := echo.New()
	app.HideBanner = true
	app.IPExtractor = newIPExtractor(deps.Conf.Server.BehindProxy)

	s := &Server{
		Server: &http.Server{
			Addr:         deps.Conf.Server.Address(),
			Handler:      app,
			ReadTimeout:  deps.Conf.Server.ReadTimeout,
			WriteTimeout: deps.Conf.Server.WriteTimeout,
		},
		app:            app,
		deps:           deps,
		auth:           newAuthenticator(deps.Conf, deps.UserSvc, deps.CalendarSvc),
		errors:         make(chan error, 1),
		shutdownSignal: shutdown,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.app.Group("/api")
	authed := s.auth.middleware()
	authLimit := newRateLimiter(conf.Server.AuthRateLimit).middleware()

	registerAuthAPI(api, authed, authLimit, s.auth, s.deps)
	registerUserAPI(api, authed, s.deps)
	registerCourseAPI(api, authed, s.deps)
	registerSessionAPI(api, authed, s.deps)
	registerCoachingAPI(api, authed, s.deps)
	registerGroupAPI(api, authed, s.deps)
	registerReportAPI(api, authed, s.deps)
	registerCalendarAPI(api, authed, s.auth, s.deps)
	registerDocsAPI(api, authed)
}

// Start listens and serves until the server is shut down. Failures are sent on Errors().
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownSignal
}

// SignalShutdown asks main to gracefully stop the server.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdownSignal <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func (s *Server) health(ctx echo.Context) error {
	status := echo.Map{"status": "ok", "build": s.deps.Conf.Build}
	if s.deps.HealthCheck != nil {
		if err := s.deps.HealthCheck(ctx.Request().Context()); err != nil {
			s.deps.Logger.Warn("health check failed", err)
			status["status"] = "unavailable"
			return ctx.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return ctx.JSON(http.StatusOK, status)
}
