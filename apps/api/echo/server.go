// Package echoapi is the JSON HTTP API, served with echo.
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

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/dashboard"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/mission"
	"github.com/trezcool/fourmis/core/registration"
	"github.com/trezcool/fourmis/core/user"
)

type ServerDeps struct {
	Conf            *core.Config
	Logger          core.Logger
	Validate        *validator.Validate
	Translator      ut.Translator
	UserSvc         user.ServiceInterface
	MemberSvc       member.ServiceInterface
	MissionSvc      mission.ServiceInterface
	RegistrationSvc registration.ServiceInterface
	DashboardSvc    dashboard.ServiceInterface
}

type Server struct {
	app      *echo.Echo
	address  string
	tokens   tokenIssuer
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		address:  deps.Conf.Server.Host,
		tokens:   newTokenIssuer(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(metricsMiddleware)
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := s.tokens.middleware()

	registerUserAPI(v1, jwt, &userApi{
		svc:        deps.UserSvc,
		memberSvc:  deps.MemberSvc,
		tokens:     s.tokens,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	})
	registerMissionAPI(v1, jwt, &missionApi{
		svc:        deps.MissionSvc,
		regSvc:     deps.RegistrationSvc,
		memberSvc:  deps.MemberSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	})
	registerRegistrationAPI(v1, jwt, &registrationApi{
		svc:        deps.RegistrationSvc,
		memberSvc:  deps.MemberSvc,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	})
	registerDashboardAPI(v1, jwt, &dashboardApi{
		svc:       deps.DashboardSvc,
		memberSvc: deps.MemberSvc,
		loc:       conf.Missions.Location(),
	})
	registerMemberAPI(v1, jwt, &memberApi{
		svc:      deps.MemberSvc,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	})
}

// Start listens and serves in the calling goroutine; failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// GenerateToken returns a signed token authenticating the user.
func (s *Server) GenerateToken(usr user.User) (string, error) {
	return s.tokens.sign(s.tokens.claims(usr))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Fourmis API!")
}
