package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/user"
	"github.com/trezcool/fourmis/tests"
)

type fakeCompleter struct {
	calls int
	n     int
	err   error
}

func (fc *fakeCompleter) CompleteEnded(_ context.Context, _ time.Time) (int, error) {
	fc.calls++
	return fc.n, fc.err
}

func setup(t *testing.T) (*commandLine, *testutil.Services) {
	db := testutil.PrepareDB(t)
	s := testutil.NewServices(db)

	return &commandLine{
		db:         db,
		usrRepo:    s.UserRepo,
		usrSvc:     s.Users,
		memberSvc:  s.Members,
		completer:  s.Registrations,
		validate:   s.Validate,
		translator: s.Translator,
	}, s
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	origRun := runMigrationsFunc
	t.Cleanup(func() { runMigrationsFunc = origRun })

	runMigrationsFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "badges", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func mockPassword(t *testing.T, pwd *string) {
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(*pwd), nil
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, s := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, s.UserRepo, "Old Name", "old@test.cd", "", core.RoleStudent, false)

	var pwd string
	mockPassword(t, &pwd)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no role", args: []string{"adduser", "-email", "new@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "new@test.cd", "-role", "STUDENT"}, wantErr: errHelp},
		{
			name:       "unknown role",
			args:       []string{"adduser", "-email", "new@test.cd", "-role", "ADMIN"},
			extra:      extra{pwd: testutil.Password},
			wantErrStr: `unknown role "ADMIN"`,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd = ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	t.Run("weak password", func(t *testing.T) {
		pwd = "12345678"
		err := cli.run([]string{"admin", "adduser", "-email", "new@test.cd", "-name", "New", "-role", "STUDENT"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid user:")
		assert.Contains(t, err.Error(), "password:")
	})

	t.Run("create", func(t *testing.T) {
		pwd = testutil.Password
		err := cli.run([]string{"admin", "adduser", "-email", " New@Test.cd ", "-name", "New User", "-role", "ASSOCIATION"})
		require.NoError(t, err)

		usr, err := s.Users.GetByEmail(ctx, "new@test.cd")
		require.NoError(t, err)
		assert.Equal(t, "New User", usr.Name)
		assert.Equal(t, core.RoleAssociation, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword(testutil.Password))
	})

	t.Run("update", func(t *testing.T) {
		pwd = testutil.Password
		err := cli.run([]string{"admin", "adduser", "-email", existing.Email, "-role", "SCHOOL"})
		require.NoError(t, err)

		usr, err := s.UserRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
		require.NoError(t, err)
		assert.Equal(t, "Old Name", usr.Name)
		assert.Equal(t, core.RoleSchool, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword(testutil.Password))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, s := setup(t)

	usr := testutil.CreateUser(t, s.UserRepo, "User", "awe@test.cd", testutil.Password, core.RoleStudent, true)

	var pwd string
	mockPassword(t, &pwd)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", " AWE@test.cd"}, extra: extra{pwd: "N3w-Secr3t!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd = ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil {
				return
			}
			refreshedUsr, err := s.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			if err != nil {
				t.Fatalf("GetUser() failed, %v", err)
			}
			if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
				t.Error("failed to update new password")
			}
		})
	}
}

func Test_commandLine_completeMissions(t *testing.T) {
	cli, _ := setup(t)

	fc := &fakeCompleter{n: 3}
	cli.completer = fc
	require.NoError(t, cli.run([]string{"admin", "complete-missions"}))
	assert.Equal(t, 1, fc.calls)

	fc.err = errors.New("db down")
	err := cli.run([]string{"admin", "complete-missions"})
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 2, fc.calls)
}

func Test_commandLine_addOrg(t *testing.T) {
	cli, s := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"addorg"}, wantErr: errHelp},
		{name: "no name", args: []string{"addorg", "-kind", "school"}, wantErr: errHelp},
		{name: "unknown kind", args: []string{"addorg", "-kind", "club", "-name", "Chess"}, wantErrStr: `unknown organization kind "club"`},
		{name: "incomplete manager", args: []string{"addorg", "-kind", "school", "-name", "Lycée", "-email", "dir@lycee.test"}, wantErrStr: "invalid user:\n  first_name: this field is required\n  last_name: this field is required"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	t.Run("association with manager", func(t *testing.T) {
		err := cli.run([]string{"admin", "addorg", "-kind", "association", "-name", " Les Fourmis ",
			"-email", "Boss@Asso.test", "-first", "Ana", "-last", "Roy"})
		require.NoError(t, err)

		usr, err := s.Users.GetByEmail(ctx, "boss@asso.test")
		require.NoError(t, err)
		assert.Equal(t, core.RoleAssociation, usr.Role)
		assert.False(t, usr.HasPassword())

		ms, err := s.Members.MembershipsForUser(ctx, usr.ID)
		require.NoError(t, err)
		require.Len(t, ms.AssociationMembers, 1)
		asso, err := s.Members.GetAssociation(ctx, ms.AssociationMembers[0].AssociationID)
		require.NoError(t, err)
		assert.Equal(t, "Les Fourmis", asso.Name)

		sent := s.Mail.SentMessages()
		require.NotEmpty(t, sent)
		assert.Equal(t, "invitation", sent[len(sent)-1].TemplateName)
	})

	t.Run("school without manager", func(t *testing.T) {
		require.NoError(t, cli.run([]string{"admin", "addorg", "-kind", "school", "-name", "Lycée Hoche"}))
	})
}
