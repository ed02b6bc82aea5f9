package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/mission"
	"github.com/trezcool/fourmis/core/registration"
	"github.com/trezcool/fourmis/core/user"
)

const genericErrorMessage = "something went wrong, please try again later"

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errNoMembership         = echo.NewHTTPError(http.StatusForbidden, "no active membership for this portal")
)

// ActionResult is the answer of the registration actions, whatever their outcome.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// errorStatus returns the HTTP status of a domain error and its public message.
// ok is false for the errors that are not part of the domain (server errors).
func errorStatus(err error) (code int, message string, ok bool) {
	cause := errors.Cause(err)

	var (
		full       *registration.MissionFullError
		registered *registration.AlreadyRegisteredError
		notOpen    *registration.MissionNotOpenError
		regNF      *registration.RegistrationNotFoundError
		regTrans   *registration.TransitionError
		misTrans   *mission.TransitionError
	)
	switch {
	case errors.As(err, &full), errors.As(err, &registered), errors.As(err, &notOpen),
		errors.As(err, &regTrans), errors.As(err, &misTrans), cause == mission.ErrNotEditable:
		return http.StatusConflict, cause.Error(), true
	case errors.As(err, &regNF):
		return http.StatusNotFound, regNF.Error(), true
	}

	switch cause {
	case user.ErrNotFound, member.ErrNotFound, member.ErrAssociationNotFound, member.ErrSchoolNotFound,
		mission.ErrNotFound, registration.ErrNotFound:
		return http.StatusNotFound, cause.Error(), true
	case member.ErrUnknownKind:
		return http.StatusNotFound, cause.Error(), true
	}
	return http.StatusInternalServerError, genericErrorMessage, false
}

// validationMessage renders validation errors as {field: message}, or a plain message.
func validationMessage(err error, translator ut.Translator) (interface{}, bool) {
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return fldErrs, true
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return fldErrs, true
		}
		return origErr.Error(), true
	}
	return nil, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
			if herr.Internal != nil {
				if ierr, ok := herr.Internal.(*echo.HTTPError); ok {
					herr = ierr
				}
			}
			code = herr.Code
			message = herr.Message
		} else if msg, ok := validationMessage(err, translator); ok {
			code = http.StatusBadRequest
			message = msg
		} else if c, msg, ok := errorStatus(err); ok {
			code = c
			message = msg
		} else { // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			logServerError(ctx, logger, err)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// actionResult answers a registration action with the {success, error} envelope.
func actionResult(ctx echo.Context, logger core.Logger, translator ut.Translator, err error) error {
	if err == nil {
		return ctx.JSON(http.StatusOK, ActionResult{Success: true})
	}

	if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
		msg, _ := herr.Message.(string)
		return ctx.JSON(herr.Code, ActionResult{Error: msg})
	}
	if msg, ok := validationMessage(err, translator); ok {
		res := ActionResult{Error: errors.Cause(err).Error()}
		if flds, ok := msg.(map[string]string); ok && len(flds) == 1 {
			for _, m := range flds {
				res.Error = m
			}
		}
		return ctx.JSON(http.StatusBadRequest, res)
	}

	code, msg, ok := errorStatus(err)
	if !ok {
		logServerError(ctx, logger, err)
	}
	return ctx.JSON(code, ActionResult{Error: msg})
}

func logServerError(ctx echo.Context, logger core.Logger, err error) {
	msg := http.StatusText(http.StatusInternalServerError)

	var usr user.User
	if claims, cErr := getContextClaims(ctx); cErr == nil {
		usr.ID = claims.Subject
		usr.Email = claims.Email
		usr.Role = claims.Role
	}
	logger.Error(msg, errors.Wrap(err, msg), usr)
}
