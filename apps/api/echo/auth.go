package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/calendar"
	"github.com/trezcool/ratiba/core/user"
)

var (
	contextUserKey   = "user"
	contextClaimsKey = "userClaims"
	sessionUserIDKey = "user_id"
	jwtAudience      = "dashboard"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	Program      string `json:"program,omitempty"`
}

// NewClaims returns the claims of a JWT issued to usr. origIat carries the first issue time over refreshes.
func NewClaims(usr user.User, conf *core.Config, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{jwtAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Role:         usr.Role,
		Program:      usr.Program,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// authenticator resolves the user of a request from a Bearer JWT or, failing that, the cookie session.
type authenticator struct {
	conf        *core.Config
	store       sessions.Store
	userSvc     user.Service
	calendarSvc calendar.Service
}

func newAuthenticator(conf *core.Config, userSvc user.Service, calendarSvc calendar.Service) *authenticator {
	store := sessions.NewCookieStore([]byte(conf.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(conf.Server.SessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(store.Options.MaxAge)
	return &authenticator{conf: conf, store: store, userSvc: userSvc, calendarSvc: calendarSvc}
}

func (a *authenticator) parseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (interface{}, error) { return []byte(a.conf.SecretKey), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.conf.AppName),
		jwt.WithAudience(jwtAudience),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// bearerToken returns the token of an `Authorization: Bearer <token>` header, if any.
func bearerToken(req *http.Request) string {
	header := req.Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// resolve authenticates the request and stores the user (and JWT claims, if any) in ctx.
func (a *authenticator) resolve(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var userID string
	if tokenStr := bearerToken(ctx.Request()); tokenStr != "" {
		claims, err := a.parseToken(tokenStr)
		if err != nil {
			return user.User{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt").SetInternal(err)
		}
		ctx.Set(contextClaimsKey, *claims)
		userID = claims.Subject
	} else {
		sess, err := a.store.Get(ctx.Request(), a.conf.Server.SessionCookieName)
		if err != nil {
			return user.User{}, errUnauthorized
		}
		id, ok := sess.Values[sessionUserIDKey].(string)
		if !ok || id == "" {
			return user.User{}, errUnauthorized
		}
		userID = id
	}

	usr, err := a.userSvc.GetByID(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// middleware rejects unauthenticated requests with 401.
func (a *authenticator) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := a.resolve(ctx); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func (a *authenticator) login(ctx echo.Context, email, pwd string) (user.User, string, error) {
	reqCtx := ctx.Request().Context()
	usr, err := a.userSvc.GetByEmail(reqCtx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, "", errAuthenticationFailed
		}
		return user.User{}, "", errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, "", errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, "", errAccountDeactivated
	}
	usr, err = a.userSvc.SetLastLogin(reqCtx, usr)
	if err != nil {
		return user.User{}, "", errors.Wrap(err, "setting lastLogin")
	}

	sess, _ := a.store.Get(ctx.Request(), a.conf.Server.SessionCookieName) // a bad cookie yields a fresh session
	sess.Values[sessionUserIDKey] = usr.ID
	if err = sess.Save(ctx.Request(), ctx.Response()); err != nil {
		return user.User{}, "", errors.Wrap(err, "saving session")
	}

	token, err := GenerateToken(NewClaims(usr, a.conf), a.conf.SecretKey)
	if err != nil {
		return user.User{}, "", errors.Wrap(err, "generating token")
	}
	return usr, token, nil
}

func (a *authenticator) logout(ctx echo.Context) error {
	sess, _ := a.store.Get(ctx.Request(), a.conf.Server.SessionCookieName)
	sess.Values = make(map[interface{}]interface{})
	sess.Options.MaxAge = -1
	return errors.Wrap(sess.Save(ctx.Request(), ctx.Response()), "clearing session")
}

func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	usr, err := a.resolve(ctx)
	if err != nil {
		return "", err
	}
	claims, ok := ctx.Get(contextClaimsKey).(Claims)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(NewClaims(usr, a.conf, claims.OrigIssuedAt), a.conf.SecretKey)
	return token, errors.Wrap(err, "generating token")
}

// calendarMiddleware authenticates feed requests by their `token` query param, falling back to the regular auth.
func (a *authenticator) calendarMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if token := ctx.QueryParam("token"); token != "" {
				usr, err := a.calendarSvc.Authenticate(ctx.Request().Context(), token)
				if err != nil {
					if errors.Is(err, user.ErrNotFound) {
						return echo.NewHTTPError(http.StatusUnauthorized, "invalid calendar token")
					}
					return errors.Wrap(err, "authenticating calendar token")
				}
				ctx.Set(contextUserKey, usr)
				return next(ctx)
			}
			if _, err := a.resolve(ctx); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// roleMiddleware lets through the context user if they have one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if core.StringsContain(roles, usr.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleTeacher, user.RoleAdmin)
}
