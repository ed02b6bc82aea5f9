package member

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/user"
)

var (
	// errors
	ErrNotFound             = errors.New("member not found")
	ErrAssociationNotFound  = errors.New("association not found")
	ErrSchoolNotFound       = errors.New("school not found")
	ErrOrganizationExists   = errors.New("an organization with this name already exists")
	ErrUnknownKind          = errors.New("unknown member kind")
	ErrInactiveMember       = errors.New("member is inactive")
	ErrNotAssociationMember = errors.New("member does not belong to the association")
)

type (
	userChecker interface {
		CheckUniqueness(ctx context.Context, email string, exclUsers ...user.User) error
	}

	Repository interface {
		CreateAssociation(ctx context.Context, asso Association, exec ...core.DBExecutor) (Association, error)
		GetAssociation(ctx context.Context, id string, exec ...core.DBExecutor) (Association, error)
		CreateSchool(ctx context.Context, school School, exec ...core.DBExecutor) (School, error)
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (School, error)

		CreateAssociationMember(ctx context.Context, am AssociationMember, exec ...core.DBExecutor) (AssociationMember, error)
		GetAssociationMember(ctx context.Context, id string, exec ...core.DBExecutor) (AssociationMember, error)
		QueryAssociationMembers(ctx context.Context, associationID string, exec ...core.DBExecutor) ([]AssociationMember, error)

		CreateSchoolMember(ctx context.Context, sm SchoolMember, exec ...core.DBExecutor) (SchoolMember, error)
		GetSchoolMember(ctx context.Context, id string, exec ...core.DBExecutor) (SchoolMember, error)
		QuerySchoolMembers(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]SchoolMember, error)

		CreateSchoolAdmin(ctx context.Context, sa SchoolAdmin, exec ...core.DBExecutor) (SchoolAdmin, error)
		GetSchoolAdmin(ctx context.Context, id string, exec ...core.DBExecutor) (SchoolAdmin, error)
		QuerySchoolAdmins(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]SchoolAdmin, error)

		// GetProfile returns the shared profile of a member of any kind.
		GetProfile(ctx context.Context, kind Kind, id string, exec ...core.DBExecutor) (Profile, error)
		SetProfileStatus(ctx context.Context, kind Kind, id string, status Status, exec ...core.DBExecutor) error

		MembershipsForUser(ctx context.Context, userID string, exec ...core.DBExecutor) (Memberships, error)
	}

	ServiceInterface interface {
		CreateAssociation(ctx context.Context, name string) (Association, error)
		GetAssociation(ctx context.Context, id string) (Association, error)
		CreateSchool(ctx context.Context, name string) (School, error)
		GetSchool(ctx context.Context, id string) (School, error)

		InviteAssociationMember(ctx context.Context, associationID string, inv Invitation) (AssociationMember, error)
		InviteSchoolMember(ctx context.Context, schoolID string, inv Invitation) (SchoolMember, error)
		InviteSchoolAdmin(ctx context.Context, schoolID string, inv Invitation) (SchoolAdmin, error)

		GetAssociationMember(ctx context.Context, id string) (AssociationMember, error)
		GetSchoolMember(ctx context.Context, id string) (SchoolMember, error)
		GetSchoolAdmin(ctx context.Context, id string) (SchoolAdmin, error)
		QueryAssociationMembers(ctx context.Context, associationID string) ([]AssociationMember, error)
		QuerySchoolMembers(ctx context.Context, schoolID string) ([]SchoolMember, error)
		QuerySchoolAdmins(ctx context.Context, schoolID string) ([]SchoolAdmin, error)

		GetProfile(ctx context.Context, kind Kind, id string) (Profile, error)
		SetStatus(ctx context.Context, kind Kind, id string, status Status) (Profile, error)
		MembershipsForUser(ctx context.Context, userID string) (Memberships, error)
		CheckResponsibleMember(ctx context.Context, associationID, memberID string, exec ...core.DBExecutor) (AssociationMember, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		userSvc user.ServiceInterface
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, userSvc user.ServiceInterface, logger core.Logger) *Service {
	return &Service{db: db, repo: repo, userSvc: userSvc, logger: logger}
}

func (svc *Service) CreateAssociation(ctx context.Context, name string) (Association, error) {
	return svc.repo.CreateAssociation(ctx, Association{Name: core.CleanString(name), CreatedAt: core.NowFunc()})
}

func (svc *Service) GetAssociation(ctx context.Context, id string) (Association, error) {
	return svc.repo.GetAssociation(ctx, id)
}

func (svc *Service) CreateSchool(ctx context.Context, name string) (School, error) {
	return svc.repo.CreateSchool(ctx, School{Name: core.CleanString(name), CreatedAt: core.NowFunc()})
}

func (svc *Service) GetSchool(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

// invite creates the login identity and the member profile in one transaction, then emails the invitation.
func (svc *Service) invite(
	ctx context.Context,
	inv Invitation,
	role core.Role,
	orgName string,
	createProfile func(tx core.DBExecutor, prof Profile) error,
) error {
	var usr user.User
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		usr, err = svc.userSvc.Create(ctx, user.NewUser{
			Name:  core.CleanString(inv.FirstName + " " + inv.LastName),
			Email: inv.Email,
			Role:  role,
		}, tx)
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		return createProfile(tx, Profile{
			UserID:    usr.ID,
			FirstName: inv.FirstName,
			LastName:  inv.LastName,
			Email:     inv.Email,
			Phone:     inv.Phone,
			Status:    StatusActive,
			CreatedAt: core.NowFunc(),
		})
	})
	if err != nil {
		return err
	}

	if err = svc.userSvc.SendInvitation(usr, orgName); err != nil {
		svc.logger.Error(fmt.Sprintf("sending invitation: %v", err), err, usr)
	}
	return nil
}

func (svc *Service) InviteAssociationMember(ctx context.Context, associationID string, inv Invitation) (AssociationMember, error) {
	asso, err := svc.repo.GetAssociation(ctx, associationID)
	if err != nil {
		return AssociationMember{}, err
	}

	var am AssociationMember
	err = svc.invite(ctx, inv, core.RoleAssociation, asso.Name, func(tx core.DBExecutor, prof Profile) error {
		var err error
		am, err = svc.repo.CreateAssociationMember(ctx, AssociationMember{Profile: prof, AssociationID: asso.ID}, tx)
		return errors.Wrap(err, "creating association member")
	})
	return am, err
}

func (svc *Service) InviteSchoolMember(ctx context.Context, schoolID string, inv Invitation) (SchoolMember, error) {
	school, err := svc.repo.GetSchool(ctx, schoolID)
	if err != nil {
		return SchoolMember{}, err
	}

	var sm SchoolMember
	err = svc.invite(ctx, inv, core.RoleStudent, school.Name, func(tx core.DBExecutor, prof Profile) error {
		var err error
		sm, err = svc.repo.CreateSchoolMember(ctx, SchoolMember{
			Profile:       prof,
			SchoolID:      school.ID,
			AcademicLevel: inv.AcademicLevel,
			Interests:     CleanInterests(inv.Interests),
		}, tx)
		return errors.Wrap(err, "creating school member")
	})
	return sm, err
}

func (svc *Service) InviteSchoolAdmin(ctx context.Context, schoolID string, inv Invitation) (SchoolAdmin, error) {
	school, err := svc.repo.GetSchool(ctx, schoolID)
	if err != nil {
		return SchoolAdmin{}, err
	}

	var sa SchoolAdmin
	err = svc.invite(ctx, inv, core.RoleSchool, school.Name, func(tx core.DBExecutor, prof Profile) error {
		var err error
		sa, err = svc.repo.CreateSchoolAdmin(ctx, SchoolAdmin{Profile: prof, SchoolID: school.ID}, tx)
		return errors.Wrap(err, "creating school admin")
	})
	return sa, err
}

func (svc *Service) GetAssociationMember(ctx context.Context, id string) (AssociationMember, error) {
	return svc.repo.GetAssociationMember(ctx, id)
}

func (svc *Service) GetSchoolMember(ctx context.Context, id string) (SchoolMember, error) {
	return svc.repo.GetSchoolMember(ctx, id)
}

func (svc *Service) GetSchoolAdmin(ctx context.Context, id string) (SchoolAdmin, error) {
	return svc.repo.GetSchoolAdmin(ctx, id)
}

func (svc *Service) QueryAssociationMembers(ctx context.Context, associationID string) ([]AssociationMember, error) {
	return svc.repo.QueryAssociationMembers(ctx, associationID)
}

func (svc *Service) QuerySchoolMembers(ctx context.Context, schoolID string) ([]SchoolMember, error) {
	return svc.repo.QuerySchoolMembers(ctx, schoolID)
}

func (svc *Service) QuerySchoolAdmins(ctx context.Context, schoolID string) ([]SchoolAdmin, error) {
	return svc.repo.QuerySchoolAdmins(ctx, schoolID)
}

func (svc *Service) GetProfile(ctx context.Context, kind Kind, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, kind, id)
}

// SetStatus activates or deactivates a member.
// The login identity stays active as long as one of the user's profiles is.
func (svc *Service) SetStatus(ctx context.Context, kind Kind, id string, status Status) (Profile, error) {
	if !status.Valid() {
		return Profile{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
	}

	var prof Profile
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if prof, err = svc.repo.GetProfile(ctx, kind, id, tx); err != nil {
			return err
		}
		if err = svc.repo.SetProfileStatus(ctx, kind, id, status, tx); err != nil {
			return errors.Wrap(err, "setting member status")
		}
		ms, err := svc.repo.MembershipsForUser(ctx, prof.UserID, tx)
		if err != nil {
			return errors.Wrap(err, "getting memberships")
		}
		_, err = svc.userSvc.SetActive(ctx, prof.UserID, ms.HasActive(), tx)
		return errors.Wrap(err, "setting user status")
	})
	if err != nil {
		return Profile{}, err
	}
	prof.Status = status
	return prof, nil
}

func (svc *Service) MembershipsForUser(ctx context.Context, userID string) (Memberships, error) {
	return svc.repo.MembershipsForUser(ctx, userID)
}

// CheckResponsibleMember ensures that the member can be responsible for a mission of the association.
func (svc *Service) CheckResponsibleMember(ctx context.Context, associationID, memberID string, exec ...core.DBExecutor) (AssociationMember, error) {
	am, err := svc.repo.GetAssociationMember(ctx, memberID, exec...)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return AssociationMember{}, ErrNotAssociationMember
		}
		return AssociationMember{}, err
	}
	if am.AssociationID != associationID {
		return AssociationMember{}, ErrNotAssociationMember
	}
	if !am.IsActive() {
		return AssociationMember{}, ErrInactiveMember
	}
	return am, nil
}
