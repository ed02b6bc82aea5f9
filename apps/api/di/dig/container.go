// Package dig_container wires the API dependencies with go.uber.org/dig.
package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/fourmis/apps/api/echo"
	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/dashboard"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/mission"
	"github.com/trezcool/fourmis/core/registration"
	"github.com/trezcool/fourmis/core/user"
	emailsvc "github.com/trezcool/fourmis/services/email"
	eventsvc "github.com/trezcool/fourmis/services/events"
	logsvc "github.com/trezcool/fourmis/services/logger"
	"github.com/trezcool/fourmis/services/scheduler"
	"github.com/trezcool/fourmis/storage/database"
	"github.com/trezcool/fourmis/storage/database/sqlxrepos"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

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

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	mission.InitValidators(validate, translator)
	return validate
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		MemberSvc:       p.MemberSvc,
		MissionSvc:      p.MissionSvc,
		RegistrationSvc: p.RegistrationSvc,
		DashboardSvc:    p.DashboardSvc,
	})
}

func newScheduler(regSvc *registration.Service, logger core.Logger, conf *core.Config) *scheduler.Scheduler {
	return scheduler.New(regSvc, logger, conf)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(emailsvc.New))
	must(c.Provide(eventsvc.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewMemberRepository))
	must(c.Provide(sqlxrepos.NewMissionRepository))
	must(c.Provide(sqlxrepos.NewRegistrationRepository))
	must(c.Provide(sqlxrepos.NewDashboardRepository))

	// services
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(member.NewService))
	must(c.Provide(func(svc *member.Service) member.ServiceInterface { return svc }))
	must(c.Provide(newRegistrationService))
	must(c.Provide(func(svc *registration.Service) registration.ServiceInterface { return svc }))
	must(c.Provide(newMissionService, dig.As(new(mission.ServiceInterface))))
	must(c.Provide(dashboard.NewService, dig.As(new(dashboard.ServiceInterface))))

	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

func newRegistrationService(
	db core.DB,
	repo registration.Repository,
	missions mission.Repository,
	members *member.Service,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) *registration.Service {
	return registration.NewService(db, repo, missions, members, mailSvc, events, logger, conf)
}

func newMissionService(
	db core.DB,
	repo mission.Repository,
	members *member.Service,
	regs *registration.Service,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) *mission.Service {
	return mission.NewService(db, repo, members, regs, events, logger, conf)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
