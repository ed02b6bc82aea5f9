// Package testutil provides the test database, configuration, services and fixtures.
package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/dashboard"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/mission"
	"github.com/trezcool/fourmis/core/registration"
	"github.com/trezcool/fourmis/core/user"
	emailsvc "github.com/trezcool/fourmis/services/email"
	eventsvc "github.com/trezcool/fourmis/services/events"
	logsvc "github.com/trezcool/fourmis/services/logger"
	"github.com/trezcool/fourmis/storage/database"
	"github.com/trezcool/fourmis/storage/database/sqlxrepos"
)

const (
	Password         = "Sup3r-Secr3t!"
	UnregisterPhrase = "UNREGISTER"
)

// NewConfig returns the configuration used by the tests: TEST mode, UTC missions timezone.
func NewConfig() *core.Config {
	return &core.Config{
		TestMode:                  true,
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "Fourmis",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Fourmis", Address: "noreply@fourmis.test"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			DisableReqLogs:            true,
		},
		Database: core.DatabaseConfig{
			Engine: database.EngineSQLite,
			Name:   database.MemoryDSN,
		},
		Missions: core.MissionsConfig{
			Timezone:           "UTC",
			CompletionSchedule: "@every 15m",
			UnregisterPhrase:   UnregisterPhrase,
		},
	}
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	mission.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens a migrated in-memory database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSQLite(database.MemoryDSN)
	if err != nil {
		t.Fatalf("PrepareDB() failed to open: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("db.Close() failed: %v", err)
		}
	})

	database.SilenceMigrations()
	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}
	return db
}

// Services wires every service on the database, with a mocked email service and a recording event publisher.
type Services struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock
	Events     *eventsvc.Recorder

	UserRepo         user.Repository
	MemberRepo       member.Repository
	MissionRepo      mission.Repository
	RegistrationRepo registration.Repository

	Users         *user.Service
	Members       *member.Service
	Missions      *mission.Service
	Registrations *registration.Service
	Dashboard     *dashboard.Service
}

func NewServices(db *sqlx.DB) *Services {
	conf := NewConfig()
	logger := NewLogger(conf)
	validate, translator := NewValidator()
	core.ParseEmailTemplates(logger)

	s := &Services{
		Conf:             conf,
		Logger:           logger,
		Validate:         validate,
		Translator:       translator,
		Mail:             emailsvc.NewConsoleServiceMock(conf, logger),
		Events:           new(eventsvc.Recorder),
		UserRepo:         sqlxrepos.NewUserRepository(db),
		MemberRepo:       sqlxrepos.NewMemberRepository(db),
		MissionRepo:      sqlxrepos.NewMissionRepository(db),
		RegistrationRepo: sqlxrepos.NewRegistrationRepository(db),
	}
	s.Users = user.NewService(s.UserRepo, s.Mail, conf)
	s.Members = member.NewService(db, s.MemberRepo, s.Users, logger)
	s.Registrations = registration.NewService(db, s.RegistrationRepo, s.MissionRepo, s.Members, s.Mail, s.Events, logger, conf)
	s.Missions = mission.NewService(db, s.MissionRepo, s.Members, s.Registrations, s.Events, logger, conf)
	s.Dashboard = dashboard.NewService(sqlxrepos.NewDashboardRepository(db))
	return s
}

// Fixtures

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, role core.Role, isActive bool) user.User {
	t.Helper()

	now := core.NowFunc()
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
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

func CreateAssociation(t *testing.T, repo member.Repository, name string) member.Association {
	t.Helper()
	asso, err := repo.CreateAssociation(context.Background(), member.Association{Name: name, CreatedAt: core.NowFunc()})
	if err != nil {
		t.Fatalf("CreateAssociation() failed: %v", err)
	}
	return asso
}

func CreateSchool(t *testing.T, repo member.Repository, name string) member.School {
	t.Helper()
	school, err := repo.CreateSchool(context.Background(), member.School{Name: name, CreatedAt: core.NowFunc()})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return school
}

func newProfile(t *testing.T, s *Services, firstName, email string, role core.Role) member.Profile {
	t.Helper()
	usr := CreateUser(t, s.UserRepo, firstName+" Test", email, "", role, true)
	return member.Profile{
		UserID:    usr.ID,
		FirstName: firstName,
		LastName:  "Test",
		Email:     email,
		Status:    member.StatusActive,
		CreatedAt: core.NowFunc(),
	}
}

// CreateAssociationMember creates an active association member along with its login identity.
func CreateAssociationMember(t *testing.T, s *Services, associationID, firstName, email string) member.AssociationMember {
	t.Helper()
	am, err := s.MemberRepo.CreateAssociationMember(context.Background(), member.AssociationMember{
		Profile:       newProfile(t, s, firstName, email, core.RoleAssociation),
		AssociationID: associationID,
	})
	if err != nil {
		t.Fatalf("CreateAssociationMember() failed: %v", err)
	}
	return am
}

// CreateStudent creates an active school member along with its login identity.
func CreateStudent(t *testing.T, s *Services, schoolID, firstName, email string, interests ...string) member.SchoolMember {
	t.Helper()
	sm, err := s.MemberRepo.CreateSchoolMember(context.Background(), member.SchoolMember{
		Profile:       newProfile(t, s, firstName, email, core.RoleStudent),
		SchoolID:      schoolID,
		AcademicLevel: "L1",
		Interests:     interests,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return sm
}

func CreateSchoolAdmin(t *testing.T, s *Services, schoolID, firstName, email string) member.SchoolAdmin {
	t.Helper()
	sa, err := s.MemberRepo.CreateSchoolAdmin(context.Background(), member.SchoolAdmin{
		Profile:  newProfile(t, s, firstName, email, core.RoleSchool),
		SchoolID: schoolID,
	})
	if err != nil {
		t.Fatalf("CreateSchoolAdmin() failed: %v", err)
	}
	return sa
}

// MissionParams describes a mission fixture. Zero values get sensible defaults.
type MissionParams struct {
	Title           string
	StartAt         time.Time // defaults to tomorrow
	EndAt           null.Time
	DurationMinutes int // defaults to 120
	MaxParticipants *int
	Recurrence      mission.Recurrence
	Status          mission.Status // defaults to PUBLISHED
	Tags            []string
}

func CreateMission(t *testing.T, s *Services, responsible member.AssociationMember, p MissionParams) mission.Mission {
	t.Helper()
	ctx := context.Background()

	now := core.NowFunc()
	if p.Title == "" {
		p.Title = "Mission"
	}
	if p.StartAt.IsZero() {
		p.StartAt = now.Add(24 * time.Hour)
	}
	if p.DurationMinutes == 0 {
		p.DurationMinutes = 120
	}
	if p.Recurrence == "" {
		p.Recurrence = mission.RecurrenceNone
	}
	if p.Status == "" {
		p.Status = mission.StatusPublished
	}

	m, err := s.MissionRepo.CreateMission(ctx, mission.Mission{
		AssociationID:       responsible.AssociationID,
		AssociationMemberID: responsible.ID,
		Title:               p.Title,
		StartAt:             p.StartAt.UTC(),
		EndAt:               p.EndAt,
		DurationMinutes:     null.IntFrom(p.DurationMinutes),
		MaxParticipants:     null.IntFromPtr(p.MaxParticipants),
		Recurrence:          p.Recurrence,
		Status:              p.Status,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		t.Fatalf("CreateMission() failed: %v", err)
	}
	if len(p.Tags) > 0 {
		if err = s.MissionRepo.SetMissionTags(ctx, m.ID, mission.CleanTags(p.Tags)); err != nil {
			t.Fatalf("CreateMission() failed to set tags: %v", err)
		}
	}
	m, err = s.MissionRepo.GetMission(ctx, m.ID)
	if err != nil {
		t.Fatalf("CreateMission() failed to reload: %v", err)
	}
	return m
}

func IntPtr(i int) *int { return &i }
