// Package echoapi serves the HTTP API with echo.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/membership"
	"github.com/mateatletas/backend/core/user"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       *user.Service
		MembershipSvc *membership.Service
		Validate      *validator.Validate
		Translator    ut.Translator
		// Registerer & Gatherer default to the prometheus default registry.
		Registerer prometheus.Registerer
		Gatherer   prometheus.Gatherer
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *auth
		metrics  *httpMetrics
		limiter  *limiterStore
		errors   chan error
		shutdown chan os.Signal

		// janitor lifetime; set up before Start so Shutdown may run first
		janitorCtx context.Context
		stop       context.CancelFunc
	}
)

func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	metrics, err := newHTTPMetrics(deps.Registerer)
	if err != nil {
		return nil, errors.Wrap(err, "setting up metrics")
	}

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuth(deps.Conf, deps.UserSvc),
		metrics:  metrics,
		limiter:  newLimiterStore(deps.Conf.Server.RateLimitRPS, deps.Conf.Server.RateLimitBurst),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.janitorCtx, s.stop = context.WithCancel(context.Background())
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.app.Group("/v1")
	limiter := rateLimitMiddleware(s.limiter, s.metrics)

	registerUserAPI(v1, s.auth, limiter, s.metrics, s.deps.Validate, s.deps.Translator)
	registerMembershipAPI(v1, s.auth, s.deps.MembershipSvc, s.deps.Validate)
}

// Start listens on the configured address. Listening errors are sent to Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.limiter.startJanitor(s.janitorCtx, 2*time.Minute)

	s.deps.Logger.Info("API listening on " + s.deps.Conf.Server.Address)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	return s.app.Shutdown(ctx)
}

// Close stops the server immediately.
func (s *Server) Close() error {
	s.stop()
	return s.app.Close()
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks for a graceful shutdown of the server.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signalled
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
