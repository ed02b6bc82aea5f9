package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/dashboard"
	"github.com/trezcool/fourmis/core/member"
)

type dashboardApi struct {
	svc       dashboard.ServiceInterface
	memberSvc member.ServiceInterface
	loc       *time.Location
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *dashboardApi) {
	dg := g.Group("/dashboard", jwt)
	dg.GET("/student", api.student, roleMiddleware(core.RoleStudent))
	dg.GET("/association", api.association, roleMiddleware(core.RoleAssociation))
	dg.GET("/school", api.school, roleMiddleware(core.RoleSchool))
}

func (api *dashboardApi) student(ctx echo.Context) error {
	sm, err := contextStudent(ctx, api.memberSvc, "")
	if err != nil {
		return err
	}
	stats, err := api.svc.StudentStats(ctx.Request().Context(), sm.ID)
	if err != nil {
		return errors.Wrap(err, "computing student stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *dashboardApi) association(ctx echo.Context) error {
	am, err := contextAssociationMember(ctx, api.memberSvc, "")
	if err != nil {
		return err
	}
	w, err := bindWindow(ctx, api.loc)
	if err != nil {
		return err
	}
	stats, err := api.svc.AssociationStats(ctx.Request().Context(), am.AssociationID, w)
	if err != nil {
		return errors.Wrap(err, "computing association stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *dashboardApi) school(ctx echo.Context) error {
	sa, err := contextSchoolAdmin(ctx, api.memberSvc)
	if err != nil {
		return err
	}
	w, err := bindWindow(ctx, api.loc)
	if err != nil {
		return err
	}
	stats, err := api.svc.SchoolStats(ctx.Request().Context(), sa.SchoolID, w)
	if err != nil {
		return errors.Wrap(err, "computing school stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
