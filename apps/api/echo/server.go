package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
	"github.com/trezcool/kozi/core/payment"
	"github.com/trezcool/kozi/core/progress"
)

type (
	ServerDeps struct {
		Logger         core.Logger
		CourseSvc      *course.Service
		EnrollmentSvc  *enrollment.Service
		ProgressSvc    *progress.Service
		PaymentSvc     *payment.Service
		Validate       *validator.Validate
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig())
	optionalJWT := middleware.JWTWithConfig(newOptionalJWTConfig())

	registerCourseAPI(v1, optionalJWT, s.deps.CourseSvc, s.deps.EnrollmentSvc)
	registerPaymentAPI(v1, jwt, s.deps.PaymentSvc, s.deps.CourseSvc, s.deps.Validate)
	registerMeAPI(v1, jwt, s.deps.EnrollmentSvc, s.deps.ProgressSvc)
}

// Start runs the listener and reports its terminal error on Errors.
// It is meant to be called in its own goroutine.
func (s *Server) Start() {
	s.errs <- s.app.Start(core.Conf.ServerAddress())
}

func (s *Server) Errors() <-chan error             { return s.errs }
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.app.Close() }

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Kozi API!")
}
