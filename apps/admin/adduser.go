package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(email, name, role, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	r, err := core.ParseRole(role)
	if err != nil {
		return err
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	switch errors.Cause(err) {
	case nil:
		usr.Role = r
		usr.IsActive = true
		if name = core.CleanString(name); name != "" {
			usr.Name = name
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		usr.UpdatedAt = core.NowFunc()
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
		return err
	case user.ErrNotFound:
		nu := user.NewUser{Name: name, Email: email, Role: r, Password: pwd, PasswordConfirm: pwd}
		if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return cli.describe(err)
		}
		_, err = cli.usrSvc.Create(ctx, nu)
		return err
	default:
		return err
	}
}

// describe flattens validation errors into a single readable error.
func (cli *commandLine) describe(err error) error {
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		msg := ""
		for _, fe := range vErr {
			msg += fmt.Sprintf("\n  %s: %s", fe.Field(), fe.Translate(cli.translator))
		}
		return fmt.Errorf("invalid user:%s", msg)
	default:
		return err
	}
}
