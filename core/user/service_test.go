package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/user"
	"github.com/trezcool/fourmis/tests"
)

func TestService_Create(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	ctx := context.Background()

	nu := user.NewUser{
		Name:            " Jean Dupont ",
		Email:           " JEAN@Mail.fr",
		Role:            core.RoleAssociation,
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
	}
	require.NoError(t, nu.Validate(ctx, s.Validate, s.Users))

	usr, err := s.Users.Create(ctx, nu)
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "Jean Dupont", usr.Name)
	assert.Equal(t, "jean@mail.fr", usr.Email)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(testutil.Password))

	got, err := s.Users.GetByEmail(ctx, "Jean@mail.fr ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.True(t, got.IsAssociation())

	var verr *core.ValidationError
	require.ErrorAs(t, nu.Validate(ctx, s.Validate, s.Users), &verr)
	assert.Equal(t, user.ErrEmailExists, verr.Err)

	_, err = s.Users.Create(ctx, nu)
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

	_, err = s.Users.GetByID(ctx, "unknown")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_SetActive(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	ctx := context.Background()
	usr := testutil.CreateUser(t, s.UserRepo, "Jean", "jean@mail.fr", "", core.RoleStudent, true)

	usr, err := s.Users.SetActive(ctx, usr.ID, false)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)

	got, err := s.Users.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestService_PasswordReset(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	ctx := context.Background()
	usr := testutil.CreateUser(t, s.UserRepo, "Jean", "jean@mail.fr", testutil.Password, core.RoleStudent, true)
	inactive := testutil.CreateUser(t, s.UserRepo, "Ina", "ina@mail.fr", testutil.Password, core.RoleStudent, false)

	require.NoError(t, s.Users.RequestPasswordReset(ctx, inactive.Email))
	assert.Empty(t, s.Mail.SentMessages(), "inactive users get no email")

	err := s.Users.RequestPasswordReset(ctx, "nobody@mail.fr")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	require.NoError(t, s.Users.RequestPasswordReset(ctx, usr.Email))
	sent := s.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "password_reset", sent[0].TemplateName)
	data := sent[0].TemplateData.(map[string]string)
	assert.Equal(t, user.EncodeUID(usr), data["UID"])

	const newPwd = "N3w-Passw0rd?"
	reset := user.ResetUserPassword{UID: data["UID"], Token: "bad", Password: newPwd, PasswordConfirm: newPwd}
	var verr *core.ValidationError
	require.ErrorAs(t, s.Users.ResetPassword(ctx, reset), &verr)

	reset.UID = "!!"
	require.ErrorAs(t, s.Users.ResetPassword(ctx, reset), &verr)

	reset.UID, reset.Token = data["UID"], data["Token"]
	require.NoError(t, s.Users.ResetPassword(ctx, reset))

	got, err := s.Users.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword(newPwd))

	// tokens are single use: the password changed
	assert.ErrorAs(t, s.Users.ResetPassword(ctx, reset), &verr)
}

func TestService_SendInvitation(t *testing.T) {
	s := testutil.NewServices(testutil.PrepareDB(t))
	usr := testutil.CreateUser(t, s.UserRepo, "Jean", "jean@mail.fr", "", core.RoleSchool, true)

	require.NoError(t, s.Users.SendInvitation(usr, "Lycee Victor Hugo"))
	sent := s.Mail.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "invitation", sent[0].TemplateName)
		assert.Contains(t, sent[0].TextContent, "Lycee Victor Hugo")
		assert.Contains(t, sent[0].TextContent, "/set-password/"+user.EncodeUID(usr)+"/")
	}
}
