package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/registration"
	"github.com/trezcool/fourmis/core/user"
	emailsvc "github.com/trezcool/fourmis/services/email"
	eventsvc "github.com/trezcool/fourmis/services/events"
	logsvc "github.com/trezcool/fourmis/services/logger"
	"github.com/trezcool/fourmis/storage/database"
	"github.com/trezcool/fourmis/storage/database/sqlxrepos"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer logger.Close()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()

	// set up services
	core.ParseEmailTemplates(logger)
	mailSvc := emailsvc.New(conf, logger)
	events := eventsvc.New(conf, logger)

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	memberSvc := member.NewService(db, sqlxrepos.NewMemberRepository(db), usrSvc, logger)
	regSvc := registration.NewService(
		db,
		sqlxrepos.NewRegistrationRepository(db),
		sqlxrepos.NewMissionRepository(db),
		memberSvc,
		mailSvc,
		events,
		logger,
		conf,
	)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db,
		usrRepo:    usrRepo,
		usrSvc:     usrSvc,
		memberSvc:  memberSvc,
		completer:  regSvc,
		validate:   validate,
		translator: translator,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
