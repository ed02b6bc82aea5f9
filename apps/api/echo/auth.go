package echoapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/member"
	"github.com/trezcool/fourmis/core/user"
)

const (
	authScheme = "Bearer"

	contextClaimsKey      = "claims"
	contextUserKey        = "user"
	contextMembershipsKey = "memberships"
)

var (
	errJWTMissing = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errJWTInvalid = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         core.Role `json:"role,omitempty"`
}

// tokenIssuer signs and parses the API tokens.
type tokenIssuer struct {
	key          []byte
	issuer       string
	expiration   time.Duration
	refreshDelta time.Duration
}

func newTokenIssuer(conf *core.Config) tokenIssuer {
	return tokenIssuer{
		key:          []byte(conf.SecretKey),
		issuer:       conf.AppName,
		expiration:   conf.Server.JWTExpirationDelta,
		refreshDelta: conf.Server.JWTRefreshExpirationDelta,
	}
}

func (ti tokenIssuer) claims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// sign generates a signed JWT token string representing the user Claims.
func (ti tokenIssuer) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti tokenIssuer) parse(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return ti.key, nil
	})
	if err != nil || !token.Valid {
		return nil, errJWTInvalid
	}
	return claims, nil
}

// middleware authenticates the request from its bearer token.
func (ti tokenIssuer) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			l := len(authScheme)
			if len(auth) <= l+1 || !strings.EqualFold(auth[:l], authScheme) {
				return errJWTMissing
			}
			claims, err := ti.parse(strings.TrimSpace(auth[l+1:]))
			if err != nil {
				return err
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func authenticate(ctx context.Context, email, pwd string, svc user.ServiceInterface) (user.User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if !usr.HasPassword() || usr.CheckPassword(pwd) != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.ServiceInterface) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// getContextMemberships returns the member profiles of the authenticated user.
func getContextMemberships(ctx echo.Context, svc member.ServiceInterface) (member.Memberships, error) {
	if ms, ok := ctx.Get(contextMembershipsKey).(member.Memberships); ok {
		return ms, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return member.Memberships{}, err
	}
	ms, err := svc.MembershipsForUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return member.Memberships{}, errors.Wrap(err, "loading memberships")
	}
	ctx.Set(contextMembershipsKey, ms)
	return ms, nil
}

func (ti tokenIssuer) refresh(ctx echo.Context, svc user.ServiceInterface) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}

	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := ti.sign(ti.claims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
