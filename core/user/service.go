package user

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser, exec ...core.DBExecutor) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetActive(ctx context.Context, id string, active bool, exec ...core.DBExecutor) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		SendInvitation(usr User, organizationName string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser, exec ...core.DBExecutor) (User, error) {
	now := core.NowFunc()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.Password != "" {
		if err := usr.SetPassword(nu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.CreateUser(ctx, usr, exec...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetActive(ctx context.Context, id string, active bool, exec ...core.DBExecutor) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, exec...)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = active
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr, exec...)
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	return svc.sendTokenMail(usr, "password_reset", "Password reset", nil)
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errors.New("invalid uid"))
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errors.New("invalid uid"))
		}
		return errors.Wrap(err, "getting user")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// SendInvitation emails a set-password link to a freshly invited User.
func (svc *Service) SendInvitation(usr User, organizationName string) error {
	return svc.sendTokenMail(usr, "invitation", "You have been invited", map[string]string{
		"OrganizationName": organizationName,
	})
}

func (svc *Service) sendTokenMail(usr User, tmpl, subject string, extra map[string]string) error {
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	data := map[string]string{
		"Name":  usr.Name,
		"UID":   EncodeUID(usr),
		"Token": token,
	}
	for k, v := range extra {
		data[k] = v
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
	return nil
}
