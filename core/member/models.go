package member

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fourmis/core"
)

// Status of a member profile.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

func (s Status) Valid() bool { return s == StatusActive || s == StatusInactive }

// Kind identifies one of the member tables.
type Kind string

const (
	KindAssociation Kind = "association"
	KindSchool      Kind = "school"
	KindSchoolAdmin Kind = "school-admin"
)

// Role returns the login role of the members of this kind.
func (k Kind) Role() core.Role {
	switch k {
	case KindAssociation:
		return core.RoleAssociation
	case KindSchool:
		return core.RoleStudent
	case KindSchoolAdmin:
		return core.RoleSchool
	default:
		return ""
	}
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(core.CleanString(s, true /* lower */)); k {
	case KindAssociation, KindSchool, KindSchoolAdmin:
		return k, nil
	default:
		return "", ErrUnknownKind
	}
}

type (
	Association struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	School struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Profile holds the fields shared by every member kind.
	Profile struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		FirstName string    `json:"first_name"`
		LastName  string    `json:"last_name"`
		Email     string    `json:"email"`
		Phone     string    `json:"phone"`
		Status    Status    `json:"status"`
		CreatedAt time.Time `json:"created_at"`
	}

	AssociationMember struct {
		Profile
		AssociationID string `json:"association_id"`
	}

	// SchoolMember is a student. It is the entity that registers for missions.
	SchoolMember struct {
		Profile
		SchoolID      string   `json:"school_id"`
		AcademicLevel string   `json:"academic_level"`
		Interests     []string `json:"interests"`
	}

	SchoolAdmin struct {
		Profile
		SchoolID string `json:"school_id"`
	}

	// Memberships lists every profile a login identity owns.
	Memberships struct {
		AssociationMembers []AssociationMember `json:"association_members"`
		SchoolMembers      []SchoolMember      `json:"school_members"`
		SchoolAdmins       []SchoolAdmin       `json:"school_admins"`
	}
)

func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p Profile) IsActive() bool { return p.Status == StatusActive }

// IsEmpty is true when the user has no membership at all.
func (ms Memberships) IsEmpty() bool {
	return len(ms.AssociationMembers) == 0 && len(ms.SchoolMembers) == 0 && len(ms.SchoolAdmins) == 0
}

// HasActive reports whether any of the user's profiles is ACTIVE.
func (ms Memberships) HasActive() bool {
	for _, am := range ms.AssociationMembers {
		if am.IsActive() {
			return true
		}
	}
	for _, sm := range ms.SchoolMembers {
		if sm.IsActive() {
			return true
		}
	}
	for _, sa := range ms.SchoolAdmins {
		if sa.IsActive() {
			return true
		}
	}
	return false
}

// AssociationMember returns the user's membership in the association, if any.
func (ms Memberships) AssociationMember(associationID string) (AssociationMember, bool) {
	for _, am := range ms.AssociationMembers {
		if am.AssociationID == associationID {
			return am, true
		}
	}
	return AssociationMember{}, false
}

func (ms Memberships) SchoolMember(id string) (SchoolMember, bool) {
	for _, sm := range ms.SchoolMembers {
		if sm.ID == id {
			return sm, true
		}
	}
	return SchoolMember{}, false
}

// Invitation contains the information needed to invite a new member.
type Invitation struct {
	FirstName     string   `json:"first_name" validate:"required"`
	LastName      string   `json:"last_name" validate:"required"`
	Email         string   `json:"email" validate:"required,email"`
	Phone         string   `json:"phone"`
	AcademicLevel string   `json:"academic_level"`
	Interests     []string `json:"interests" validate:"dive,notblank"`
}

func (inv *Invitation) Validate(ctx context.Context, validate *validator.Validate, svc userChecker) error {
	inv.FirstName = core.CleanString(inv.FirstName)
	inv.LastName = core.CleanString(inv.LastName)
	inv.Email = core.CleanString(inv.Email, true /* lower */)
	inv.Phone = core.CleanString(inv.Phone)
	inv.AcademicLevel = core.CleanString(inv.AcademicLevel)
	inv.Interests = CleanInterests(inv.Interests)

	if err := validate.Struct(inv); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, inv.Email)
}

// CleanInterests lowers, trims and dedupes interests; commas are dropped since interests are stored comma separated.
func CleanInterests(interests []string) []string {
	seen := make(map[string]bool, len(interests))
	cleaned := make([]string, 0, len(interests))
	for _, i := range interests {
		i = core.CleanString(strings.ReplaceAll(i, ",", " "), true /* lower */)
		if i == "" || seen[i] {
			continue
		}
		seen[i] = true
		cleaned = append(cleaned, i)
	}
	return cleaned
}

type NewOrganization struct {
	Name string `json:"name" validate:"required,notblank"`
}

type SetStatus struct {
	Status Status `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
}
