package echoapi

import (
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/mission"
	"github.com/trezcool/fourmis/core/registration"
)

const (
	occurrencesShown  = 10
	occurrencesPeriod = 1 // year
)

var errMissionNotInCtx = errors.New("mission object not found in echo.Context")

type missionApi struct {
	svc        mission.ServiceInterface
	regSvc     registration.ServiceInterface
	memberSvc  member.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerMissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *missionApi) {
	mg := g.Group("/missions", jwt)
	asso := roleMiddleware(core.RoleAssociation)

	mg.GET("", api.query)
	mg.POST("", api.create, asso)
	mg.GET("/recommended", api.recommended, roleMiddleware(core.RoleStudent))

	// detail endpoints
	mg.GET("/:id", api.retrieve, api.missionMiddleware(false))
	mg.PUT("/:id", api.update, asso, api.missionMiddleware(true))
	mg.POST("/:id/status", api.setStatus, asso, api.missionMiddleware(true))
	mg.GET("/:id/registrations", api.registrations, asso, api.missionMiddleware(true))
}

// MissionResponse is a mission with its capacity and upcoming occurrences.
type MissionResponse struct {
	mission.Mission
	Capacity    mission.Capacity `json:"capacity"`
	EndsAt      *time.Time       `json:"ends_at"`
	Occurrences []time.Time      `json:"occurrences,omitempty"`
}

func newMissionResponse(m mission.Mission, now time.Time, loc *time.Location, withOccurrences bool) MissionResponse {
	res := MissionResponse{Mission: m, Capacity: m.Capacity()}
	if end, ok := m.EndsAt(); ok {
		res.EndsAt = &end
	}
	if withOccurrences {
		from := now.In(loc)
		res.Occurrences = m.Occurrences(from, from.AddDate(occurrencesPeriod, 0, 0), occurrencesShown)
	}
	return res
}

func newMissionResponses(missions []mission.Mission, now time.Time, loc *time.Location) []MissionResponse {
	res := make([]MissionResponse, 0, len(missions))
	for _, m := range missions {
		res = append(res, newMissionResponse(m, now, loc, false))
	}
	return res
}

// Handlers

func (api *missionApi) query(ctx echo.Context) error {
	var data MissionQuery
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MissionQuery")
	}
	filter, err := data.Filter(api.svc.Location())
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	switch claims.Role {
	case core.RoleAssociation:
		am, err := contextAssociationMember(ctx, api.memberSvc, "")
		if err != nil {
			return err
		}
		filter.AssociationID = am.AssociationID
	case core.RoleStudent, core.RoleSchool:
		filter.Statuses = []mission.Status{mission.StatusPublished}
	default:
		return errHttpForbidden
	}

	missions, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying missions")
	}
	return ctx.JSON(http.StatusOK, newMissionResponses(missions, core.NowFunc(), api.svc.Location()))
}

func (api *missionApi) create(ctx echo.Context) error {
	am, err := contextAssociationMember(ctx, api.memberSvc, "")
	if err != nil {
		return err
	}

	var form mission.Form
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to mission.Form")
	}
	if form.ResponsibleMemberID == "" {
		form.ResponsibleMemberID = am.ID
	}
	if err := form.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Create(ctx.Request().Context(), am.AssociationID, form)
	if err != nil {
		return errors.Wrap(err, "creating mission")
	}
	return ctx.JSON(http.StatusCreated, newMissionResponse(m, core.NowFunc(), api.svc.Location(), true))
}

func (api *missionApi) recommended(ctx echo.Context) error {
	sm, err := contextStudent(ctx, api.memberSvc, "")
	if err != nil {
		return err
	}
	limit, err := queryInt(ctx, "limit", 0)
	if err != nil {
		return err
	}

	missions, err := api.svc.Recommend(ctx.Request().Context(), sm.ID, limit)
	if err != nil {
		return errors.Wrap(err, "recommending missions")
	}
	return ctx.JSON(http.StatusOK, newMissionResponses(missions, core.NowFunc(), api.svc.Location()))
}

func (api *missionApi) retrieve(ctx echo.Context) error {
	m, ok := ctx.Get("object").(mission.Mission)
	if !ok {
		return errors.Wrap(errMissionNotInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, newMissionResponse(m, core.NowFunc(), api.svc.Location(), true))
}

func (api *missionApi) update(ctx echo.Context) error {
	m, ok := ctx.Get("object").(mission.Mission)
	if !ok {
		return errors.Wrap(errMissionNotInCtx, "retrieving object from context")
	}

	var form mission.Form
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to mission.Form")
	}
	if form.ResponsibleMemberID == "" {
		form.ResponsibleMemberID = m.AssociationMemberID
	}
	if err := form.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Update(ctx.Request().Context(), m.ID, form)
	if err != nil {
		return errors.Wrap(err, "updating mission")
	}
	return ctx.JSON(http.StatusOK, newMissionResponse(m, core.NowFunc(), api.svc.Location(), true))
}

func (api *missionApi) setStatus(ctx echo.Context) error {
	m, ok := ctx.Get("object").(mission.Mission)
	if !ok {
		return errors.Wrap(errMissionNotInCtx, "retrieving object from context")
	}

	var data mission.SetStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to mission.SetStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.SetStatus(ctx.Request().Context(), m.ID, data.Status)
	if err != nil {
		return errors.Wrap(err, "setting mission status")
	}
	return ctx.JSON(http.StatusOK, newMissionResponse(m, core.NowFunc(), api.svc.Location(), false))
}

func (api *missionApi) registrations(ctx echo.Context) error {
	m, ok := ctx.Get("object").(mission.Mission)
	if !ok {
		return errors.Wrap(errMissionNotInCtx, "retrieving object from context")
	}

	regs, err := api.regSvc.ListForMission(ctx.Request().Context(), m.ID)
	if err != nil {
		return errors.Wrap(err, "listing mission registrations")
	}
	if regs == nil {
		regs = []registration.Details{}
	}
	return ctx.JSON(http.StatusOK, regs)
}

// missionMiddleware loads the mission `:id` into the context.
// Only the members of its association may manage it, or see it before it is published.
func (api *missionApi) missionMiddleware(manage bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == mission.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "getting mission")
			}

			if manage || m.Status != mission.StatusPublished {
				_, err := contextAssociationMember(ctx, api.memberSvc, m.AssociationID)
				if err != nil {
					if err != errHttpForbidden && err != errNoMembership {
						return err
					}
					if manage {
						return errHttpForbidden
					}
					return errHttpNotFound
				}
			}

			ctx.Set("object", m)
			return next(ctx)
		}
	}
}
