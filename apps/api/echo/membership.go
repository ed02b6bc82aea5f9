package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/fourmis/core/member"
)

// The portals act on behalf of one of the user's active member profiles.
// A user holding several profiles of a kind selects one with the query parameters
// `association_id`, `school_id` or `school_member_id`; the first active one is used otherwise.

func contextAssociationMember(ctx echo.Context, svc member.ServiceInterface, associationID string) (member.AssociationMember, error) {
	ms, err := getContextMemberships(ctx, svc)
	if err != nil {
		return member.AssociationMember{}, err
	}
	if associationID == "" {
		associationID = ctx.QueryParam("association_id")
	}
	for _, am := range ms.AssociationMembers {
		if am.IsActive() && (associationID == "" || am.AssociationID == associationID) {
			return am, nil
		}
	}
	if associationID != "" {
		return member.AssociationMember{}, errHttpForbidden
	}
	return member.AssociationMember{}, errNoMembership
}

func contextSchoolAdmin(ctx echo.Context, svc member.ServiceInterface) (member.SchoolAdmin, error) {
	ms, err := getContextMemberships(ctx, svc)
	if err != nil {
		return member.SchoolAdmin{}, err
	}
	schoolID := ctx.QueryParam("school_id")
	for _, sa := range ms.SchoolAdmins {
		if sa.IsActive() && (schoolID == "" || sa.SchoolID == schoolID) {
			return sa, nil
		}
	}
	if schoolID != "" {
		return member.SchoolAdmin{}, errHttpForbidden
	}
	return member.SchoolAdmin{}, errNoMembership
}

// contextStudent returns the school member profile `id` of the user, or its first active one when id is empty.
func contextStudent(ctx echo.Context, svc member.ServiceInterface, id string) (member.SchoolMember, error) {
	ms, err := getContextMemberships(ctx, svc)
	if err != nil {
		return member.SchoolMember{}, err
	}
	if id == "" {
		id = ctx.QueryParam("school_member_id")
	}
	if id != "" {
		sm, ok := ms.SchoolMember(id)
		if !ok {
			return member.SchoolMember{}, errHttpForbidden
		}
		return sm, nil
	}
	for _, sm := range ms.SchoolMembers {
		if sm.IsActive() {
			return sm, nil
		}
	}
	return member.SchoolMember{}, errNoMembership
}

// ownsStudent reports whether the school member profile belongs to the user.
func ownsStudent(ctx echo.Context, svc member.ServiceInterface, schoolMemberID string) (bool, error) {
	ms, err := getContextMemberships(ctx, svc)
	if err != nil {
		return false, err
	}
	_, ok := ms.SchoolMember(schoolMemberID)
	return ok, nil
}
