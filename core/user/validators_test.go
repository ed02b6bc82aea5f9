package user_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/user"
	"github.com/trezcool/fourmis/tests"
)

func TestPasswordPolicy(t *testing.T) {
	validate, translator := testutil.NewValidator()

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{"valid", "Sup3r-Secr3t!", ""},
		{"too short", "Ab1!", "pwdminlen"},
		{"whitespace", "Sup3r Secr3t!", "pwdnospace"},
		{"all numeric", "1234567890", "pwdnotallnum"},
		{"no upper", "sup3r-secr3t!", "pwdcplx"},
		{"no special", "Sup3rSecr3t", "pwdcplx"},
		{"similar to email", "Jdupont@mail.fr1", "pwdtoosim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := user.NewUser{
				Name:            "Jean Dupont",
				Email:           "jdupont@mail.fr",
				Role:            core.RoleStudent,
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := validate.Struct(nu)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.wantTag, verrs[0].Tag())
			assert.Equal(t, "password", verrs[0].Field())
			assert.NotEmpty(t, verrs[0].Translate(translator))
		})
	}
}

func TestNewUser_validation(t *testing.T) {
	validate, _ := testutil.NewValidator()

	t.Run("invited users need no password", func(t *testing.T) {
		nu := user.NewUser{Name: "Jean", Email: "jean@mail.fr", Role: core.RoleSchool}
		assert.NoError(t, validate.Struct(nu))
	})

	t.Run("unknown role", func(t *testing.T) {
		nu := user.NewUser{Name: "Jean", Email: "jean@mail.fr", Role: "ADMIN"}
		var verrs validator.ValidationErrors
		require.ErrorAs(t, validate.Struct(nu), &verrs)
		assert.Equal(t, "role", verrs[0].Tag())
	})

	t.Run("passwords mismatch", func(t *testing.T) {
		nu := user.NewUser{
			Name: "Jean", Email: "jean@mail.fr", Role: core.RoleStudent,
			Password: testutil.Password, PasswordConfirm: "nope",
		}
		var verrs validator.ValidationErrors
		require.ErrorAs(t, validate.Struct(nu), &verrs)
		assert.Equal(t, "eqfield", verrs[0].Tag())
	})

	t.Run("reset password", func(t *testing.T) {
		rp := user.ResetUserPassword{Token: "t", UID: "u", Password: "short", PasswordConfirm: "short"}
		var verrs validator.ValidationErrors
		require.ErrorAs(t, rp.Validate(validate), &verrs)
		assert.Equal(t, "pwdminlen", verrs[0].Tag())
	})
}
