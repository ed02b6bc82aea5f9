package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/user"
)

type memberApi struct {
	svc      member.ServiceInterface
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerMemberAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *memberApi) {
	asso := roleMiddleware(core.RoleAssociation)
	school := roleMiddleware(core.RoleSchool)

	g.POST("/associations/members", api.inviteAssociationMember, jwt, asso)
	g.POST("/schools/members", api.inviteSchoolMember, jwt, school)
	g.POST("/schools/admins", api.inviteSchoolAdmin, jwt, school)
	g.PUT("/members/:kind/:id/status", api.setStatus, jwt, roleMiddleware(core.RoleAssociation, core.RoleSchool))
}

func (api *memberApi) bindInvitation(ctx echo.Context) (member.Invitation, error) {
	var inv member.Invitation
	if err := ctx.Bind(&inv); err != nil {
		return inv, errors.Wrap(err, "binding to member.Invitation")
	}
	return inv, inv.Validate(ctx.Request().Context(), api.validate, api.userSvc)
}

// Handlers

func (api *memberApi) inviteAssociationMember(ctx echo.Context) error {
	am, err := contextAssociationMember(ctx, api.svc, "")
	if err != nil {
		return err
	}
	inv, err := api.bindInvitation(ctx)
	if err != nil {
		return err
	}
	invited, err := api.svc.InviteAssociationMember(ctx.Request().Context(), am.AssociationID, inv)
	if err != nil {
		return errors.Wrap(err, "inviting association member")
	}
	return ctx.JSON(http.StatusCreated, invited)
}

func (api *memberApi) inviteSchoolMember(ctx echo.Context) error {
	sa, err := contextSchoolAdmin(ctx, api.svc)
	if err != nil {
		return err
	}
	inv, err := api.bindInvitation(ctx)
	if err != nil {
		return err
	}
	invited, err := api.svc.InviteSchoolMember(ctx.Request().Context(), sa.SchoolID, inv)
	if err != nil {
		return errors.Wrap(err, "inviting school member")
	}
	return ctx.JSON(http.StatusCreated, invited)
}

func (api *memberApi) inviteSchoolAdmin(ctx echo.Context) error {
	sa, err := contextSchoolAdmin(ctx, api.svc)
	if err != nil {
		return err
	}
	inv, err := api.bindInvitation(ctx)
	if err != nil {
		return err
	}
	invited, err := api.svc.InviteSchoolAdmin(ctx.Request().Context(), sa.SchoolID, inv)
	if err != nil {
		return errors.Wrap(err, "inviting school admin")
	}
	return ctx.JSON(http.StatusCreated, invited)
}

func (api *memberApi) setStatus(ctx echo.Context) error {
	kind, err := member.ParseKind(ctx.Param("kind"))
	if err != nil {
		return errHttpNotFound
	}
	id := ctx.Param("id")
	if err = api.checkAuthority(ctx, kind, id); err != nil {
		return err
	}

	var data member.SetStatus
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to member.SetStatus")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	prof, err := api.svc.SetStatus(ctx.Request().Context(), kind, id, data.Status)
	if err != nil {
		return errors.Wrap(err, "setting member status")
	}
	return ctx.JSON(http.StatusOK, prof)
}

// checkAuthority makes sure the user administers the organization of the member.
// Association members manage their association; school admins manage the students and admins of their school.
// Nobody can change their own status.
func (api *memberApi) checkAuthority(ctx echo.Context, kind member.Kind, id string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	var orgID, userID string
	switch kind {
	case member.KindAssociation:
		if claims.Role != core.RoleAssociation {
			return errHttpForbidden
		}
		am, err := api.svc.GetAssociationMember(reqCtx, id)
		if err != nil {
			return notFoundOr(err, "getting association member")
		}
		orgID, userID = am.AssociationID, am.UserID
		if _, err = contextAssociationMember(ctx, api.svc, orgID); err != nil {
			return errHttpForbidden
		}
	case member.KindSchool, member.KindSchoolAdmin:
		if claims.Role != core.RoleSchool {
			return errHttpForbidden
		}
		if kind == member.KindSchool {
			sm, err := api.svc.GetSchoolMember(reqCtx, id)
			if err != nil {
				return notFoundOr(err, "getting school member")
			}
			orgID, userID = sm.SchoolID, sm.UserID
		} else {
			sa, err := api.svc.GetSchoolAdmin(reqCtx, id)
			if err != nil {
				return notFoundOr(err, "getting school admin")
			}
			orgID, userID = sa.SchoolID, sa.UserID
		}
		ms, err := getContextMemberships(ctx, api.svc)
		if err != nil {
			return err
		}
		allowed := false
		for _, sa := range ms.SchoolAdmins {
			if sa.IsActive() && sa.SchoolID == orgID {
				allowed = true
				break
			}
		}
		if !allowed {
			return errHttpForbidden
		}
	default:
		return errHttpNotFound
	}

	if userID == claims.Subject {
		return errHttpForbidden
	}
	return nil
}

func notFoundOr(err error, msg string) error {
	if errors.Cause(err) == member.ErrNotFound {
		return errHttpNotFound
	}
	return errors.Wrap(err, msg)
}
