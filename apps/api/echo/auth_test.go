package echoapi_test

import (
	"net/http"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core/user"
	emailsvc "github.com/trezcool/ratiba/services/email"
	"github.com/trezcool/ratiba/testutil"
)

const pwd = "Pa$$w0rd!"

func Test_authApi_login(t *testing.T) {
	app, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	testutil.CreateUser(t, env.UserRepo, "Naughty Dog", "ndog@test.cd", pwd, user.RoleStudent, "DTI", false)

	body := func(email, password string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: password})
	}

	run(t, app, []httpTest{
		{
			name:     "missing credentials",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     body("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     body("bob@test.cd", pwd),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, errAuthFailed),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     body("alice@test.cd", "wrong"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, errAuthFailed),
		},
		{
			name:     "inactive user",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     body("ndog@test.cd", pwd),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errDeactivated),
		},
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body(" ALICE@test.cd ", pwd))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, usr.ID, resp.User.ID)
		assert.False(t, resp.User.LastLogin.IsZero())

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == env.Conf.Server.SessionCookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie, "session cookie not set")
		assert.True(t, cookie.HttpOnly)

		// the cookie alone authenticates
		req, rec = newRequest(http.MethodGet, "/api/me")
		req.AddCookie(cookie)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		// the token alone authenticates
		req, rec = newAuthRequest(http.MethodGet, "/api/me", resp.Token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		// logout expires the cookie
		req, rec = newRequest(http.MethodPost, "/api/auth/logout")
		req.AddCookie(cookie)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		cleared := false
		for _, c := range rec.Result().Cookies() {
			if c.Name == env.Conf.Server.SessionCookieName {
				cleared = c.MaxAge < 0
			}
		}
		assert.True(t, cleared, "session cookie not cleared")
	})
}

func Test_authenticator(t *testing.T) {
	app, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	inactive := testutil.CreateUser(t, env.UserRepo, "Naughty Dog", "ndog@test.cd", pwd, user.RoleStudent, "DTI", false)
	ghost := user.User{ID: "1b2d4ce5-92b1-4c4c-9b0e-9a4403d3b7e1", Role: user.RoleAdmin}

	expired := echoapi.NewClaims(usr, env.Conf)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	expiredToken, err := echoapi.GenerateToken(expired, env.Conf.SecretKey)
	require.NoError(t, err)

	badSig, err := echoapi.GenerateToken(echoapi.NewClaims(usr, env.Conf), "not-the-secret")
	require.NoError(t, err)

	run(t, app, []httpTest{
		{
			name:     "no credentials",
			method:   http.MethodGet,
			path:     "/api/me",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errUnauthorized),
		},
		{
			name:     "garbage token",
			method:   http.MethodGet,
			path:     "/api/me",
			token:    "not.a.jwt",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errInvalidToken),
		},
		{
			name:     "expired token",
			method:   http.MethodGet,
			path:     "/api/me",
			token:    expiredToken,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errInvalidToken),
		},
		{
			name:     "wrong signature",
			method:   http.MethodGet,
			path:     "/api/me",
			token:    badSig,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errInvalidToken),
		},
		{
			name:     "deleted user",
			method:   http.MethodGet,
			path:     "/api/me",
			token:    getToken(t, env, ghost),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errUnauthorized),
		},
		{
			name:     "deactivated user",
			method:   http.MethodGet,
			path:     "/api/me",
			token:    getToken(t, env, inactive),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errDeactivated),
		},
		{
			name:     "student on admin route",
			method:   http.MethodGet,
			path:     "/api/users",
			token:    getToken(t, env, usr),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})
}

func Test_authApi_refreshToken(t *testing.T) {
	app, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	oriat := time.Now().Add(-time.Hour).Unix()

	run(t, app, []httpTest{
		{
			name:     "no token",
			method:   http.MethodPost,
			path:     "/api/auth/token-refresh",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errUnauthorized),
		},
		{
			name:     "refresh expired",
			method:   http.MethodPost,
			path:     "/api/auth/token-refresh",
			token:    getToken(t, env, usr, time.Now().Add(-2*env.Conf.Server.JWTRefreshExpirationDelta).Unix()),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/auth/token-refresh", getToken(t, env, usr, oriat))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(env.Conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, usr.ID, claims.Subject)
		assert.Equal(t, oriat, claims.OrigIssuedAt)
		assert.Nil(t, resp.User)
	})

	t.Run("cookie session cannot refresh", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/auth/login", marchallObj(t, echoapi.LoginRequest{Email: usr.Email, Password: pwd}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		req, rec2 := newRequest(http.MethodPost, "/api/auth/token-refresh")
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}
		app.ServeHTTP(rec2, req)
		assert.Equal(t, http.StatusUnauthorized, rec2.Code)
		assert.JSONEq(t, `{"error":"missing or malformed jwt"}`, rec2.Body.String())
	})
}

func Test_authApi_rateLimit(t *testing.T) {
	app, env := setup(t, func(deps *echoapi.Deps) { deps.Conf.Server.AuthRateLimit = 2 })
	body := marchallObj(t, echoapi.LoginRequest{Email: "nobody@test.cd", Password: pwd})

	for i := 0; i < 2; i++ {
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusTooManyRequests, wantData: marchallObj(t, errTooManyRequest)}, rec)

	// other clients keep their own budget
	req, rec = newRequest(http.MethodPost, "/api/auth/login", body)
	req.RemoteAddr = "198.51.100.7:4242"
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// non-auth routes are not limited
	usr := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	req, rec = newAuthRequest(http.MethodGet, "/api/me", getToken(t, env, usr))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_authApi_rateLimitIgnoresForwardedFor(t *testing.T) {
	app, _ := setup(t, func(deps *echoapi.Deps) { deps.Conf.Server.AuthRateLimit = 5 })
	body := marchallObj(t, echoapi.LoginRequest{Email: "nobody@test.cd", Password: pwd})

	throttled := 0
	for i := 0; i < 50; i++ {
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		req.Header.Set(echo.HeaderXForwardedFor, "203.0.113."+strconv.Itoa(i))
		req.Header.Set(echo.HeaderXRealIP, "203.0.113."+strconv.Itoa(i))
		app.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	assert.Equal(t, 45, throttled)
}

func Test_authApi_rateLimitBehindProxy(t *testing.T) {
	app, _ := setup(t, func(deps *echoapi.Deps) {
		deps.Conf.Server.AuthRateLimit = 1
		deps.Conf.Server.BehindProxy = true
	})
	body := marchallObj(t, echoapi.LoginRequest{Email: "nobody@test.cd", Password: pwd})
	login := func(remoteAddr, xff string) int {
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		req.RemoteAddr = remoteAddr
		req.Header.Set(echo.HeaderXForwardedFor, xff)
		app.ServeHTTP(rec, req)
		return rec.Code
	}

	// a private proxy forwards distinct clients
	assert.Equal(t, http.StatusBadRequest, login("10.0.0.2:5000", "203.0.113.1"))
	assert.Equal(t, http.StatusBadRequest, login("10.0.0.2:5000", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, login("10.0.0.2:5000", "203.0.113.1"))

	// a public peer cannot pick its identity
	assert.Equal(t, http.StatusBadRequest, login("198.51.100.9:5000", "203.0.113.3"))
	assert.Equal(t, http.StatusTooManyRequests, login("198.51.100.9:5000", "203.0.113.4"))
}

func Test_authApi_passwordReset(t *testing.T) {
	app, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	const newPwd = "N3w!Passw0rd"

	// unknown emails get the same answer
	for _, email := range []string{"nobody@test.cd", "alice@test.cd"} {
		req, rec := newRequest(http.MethodPost, "/api/auth/password-reset", marchallObj(t, echoapi.PasswordResetRequest{Email: email}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "If the email address supplied")
	}

	sent := emailsvc.LastSentMessages()
	require.Len(t, sent, 1)
	m := regexp.MustCompile(`/password-reset/([^/\s]+)/([^/\s]+)`).FindStringSubmatch(sent[0].TextContent)
	require.Len(t, m, 3)
	uid, token := m[1], m[2]

	run(t, app, []httpTest{
		{
			name:     "invalid email",
			method:   http.MethodPost,
			path:     "/api/auth/password-reset",
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "alice"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "mismatching passwords",
			method:   http.MethodPost,
			path:     "/api/auth/password-reset-confirm",
			body:     marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: "nope"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad token",
			method:   http.MethodPost,
			path:     "/api/auth/password-reset-confirm",
			body:     marchallObj(t, user.ResetUserPassword{UID: uid, Token: "bad-token", Password: newPwd, PasswordConfirm: newPwd}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "success",
			method:   http.MethodPost,
			path:     "/api/auth/password-reset-confirm",
			body:     marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name:     "token reuse",
			method:   http.MethodPost,
			path:     "/api/auth/password-reset-confirm",
			body:     marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}),
			wantCode: http.StatusBadRequest,
		},
	})

	req, rec := newRequest(http.MethodPost, "/api/auth/login", marchallObj(t, echoapi.LoginRequest{Email: usr.Email, Password: newPwd}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
