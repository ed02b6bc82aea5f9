package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type completer interface {
	CompleteEnded(ctx context.Context, now time.Time) (int, error)
}

type commandLine struct {
	db         *sqlx.DB
	usrRepo    user.Repository
	usrSvc     user.ServiceInterface
	memberSvc  member.ServiceInterface
	completer  completer
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, redo, version, ...)")
	fmt.Println("  adduser -email EMAIL -name NAME -role STUDENT|ASSOCIATION|SCHOOL - create or update a user")
	fmt.Println("  addorg -kind association|school -name NAME [-email EMAIL -first FIRST -last LAST] - create an organization and invite its manager")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  complete-missions - complete the confirmed registrations of the missions that are over")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's name.")
	addUserRole := addUserCmd.String("role", "", "The user's role: STUDENT, ASSOCIATION or SCHOOL.")

	addOrgCmd := flag.NewFlagSet("addorg", flag.ContinueOnError)
	addOrgKind := addOrgCmd.String("kind", "", "The organization kind: association or school.")
	addOrgName := addOrgCmd.String("name", "", "The organization's name.")
	addOrgEmail := addOrgCmd.String("email", "", "The manager's email, an invitation is sent to set the password.")
	addOrgFirst := addOrgCmd.String("first", "", "The manager's first name.")
	addOrgLast := addOrgCmd.String("last", "", "The manager's last name.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserName, *addUserRole, pwd)
	case "addorg":
		if err := addOrgCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addOrgKind == "" || *addOrgName == "" {
			addOrgCmd.Usage()
			return errHelp
		}
		return cli.addOrg(*addOrgKind, *addOrgName, member.Invitation{
			FirstName: *addOrgFirst,
			LastName:  *addOrgLast,
			Email:     *addOrgEmail,
		})
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	case "complete-missions":
		return cli.completeMissions()
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
