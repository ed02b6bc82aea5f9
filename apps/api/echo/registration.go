package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/registration"
)

var registrationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fourmis",
	Name:      "registration_attempts_total",
	Help:      "The total number of mission registration attempts, by outcome.",
}, []string{"outcome"})

type registrationApi struct {
	svc        registration.ServiceInterface
	memberSvc  member.ServiceInterface
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func registerRegistrationAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *registrationApi) {
	rg := g.Group("/registrations", jwt)
	student := roleMiddleware(core.RoleStudent)
	asso := roleMiddleware(core.RoleAssociation)

	rg.POST("", api.register, student)
	rg.GET("/mine", api.mine, student)
	rg.DELETE("/:id", api.unregister, student)
	rg.POST("/:id/confirm", api.confirm, asso)
	rg.POST("/:id/complete", api.complete, asso)
}

// Handlers

func (api *registrationApi) register(ctx echo.Context) error {
	var data registration.NewRegistration
	if err := ctx.Bind(&data); err != nil {
		return actionResult(ctx, api.logger, api.translator, echo.NewHTTPError(http.StatusBadRequest, "invalid request body"))
	}

	sm, err := contextStudent(ctx, api.memberSvc, data.SchoolMemberID)
	if err != nil {
		return actionResult(ctx, api.logger, api.translator, err)
	}
	data.SchoolMemberID = sm.ID
	if err := api.validate.Struct(data); err != nil {
		return actionResult(ctx, api.logger, api.translator, err)
	}

	_, err = api.svc.Register(ctx.Request().Context(), data.MissionID, data.SchoolMemberID)
	registrationAttempts.WithLabelValues(registrationOutcome(err)).Inc()
	return actionResult(ctx, api.logger, api.translator, err)
}

func registrationOutcome(err error) string {
	var (
		full       *registration.MissionFullError
		registered *registration.AlreadyRegisteredError
		notOpen    *registration.MissionNotOpenError
	)
	switch {
	case err == nil:
		return "registered"
	case errors.As(err, &full):
		return "mission_full"
	case errors.As(err, &registered):
		return "already_registered"
	case errors.As(err, &notOpen):
		return "not_open"
	default:
		return "error"
	}
}

func (api *registrationApi) unregister(ctx echo.Context) error {
	var data registration.Unregister
	if err := ctx.Bind(&data); err != nil {
		return actionResult(ctx, api.logger, api.translator, echo.NewHTTPError(http.StatusBadRequest, "invalid request body"))
	}

	id := ctx.Param("id")
	details, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return actionResult(ctx, api.logger, api.translator, err)
	}
	owned, err := ownsStudent(ctx, api.memberSvc, details.Student.ID)
	if err != nil {
		return actionResult(ctx, api.logger, api.translator, err)
	}
	if !owned {
		// do not disclose the registrations of other students
		return actionResult(ctx, api.logger, api.translator, &registration.RegistrationNotFoundError{ID: id})
	}

	err = api.svc.Unregister(ctx.Request().Context(), id, data.Confirmation)
	return actionResult(ctx, api.logger, api.translator, err)
}

func (api *registrationApi) mine(ctx echo.Context) error {
	sm, err := contextStudent(ctx, api.memberSvc, "")
	if err != nil {
		return err
	}
	regs, err := api.svc.ListForStudent(ctx.Request().Context(), sm.ID)
	if err != nil {
		return errors.Wrap(err, "listing student registrations")
	}
	if regs == nil {
		regs = []registration.Details{}
	}
	return ctx.JSON(http.StatusOK, regs)
}

func (api *registrationApi) confirm(ctx echo.Context) error {
	if err := api.checkManager(ctx); err != nil {
		return err
	}
	reg, err := api.svc.Confirm(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "confirming registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *registrationApi) complete(ctx echo.Context) error {
	if err := api.checkManager(ctx); err != nil {
		return err
	}
	reg, err := api.svc.Complete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

// checkManager makes sure the user is a member of the association of the registration's mission.
func (api *registrationApi) checkManager(ctx echo.Context) error {
	details, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting registration")
	}
	if _, err = contextAssociationMember(ctx, api.memberSvc, details.Mission.AssociationID); err != nil {
		if err == errNoMembership {
			return errHttpForbidden
		}
		return err
	}
	return nil
}
