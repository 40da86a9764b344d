package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/testutil"
)

func Test_userApi_me(t *testing.T) {
	app, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	token := getToken(t, env, usr)

	run(t, app, []httpTest{
		{
			name:     "get",
			method:   http.MethodGet,
			path:     "/api/me",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, usr),
		},
		{
			name:     "cannot change own role",
			method:   http.MethodPut,
			path:     "/api/me",
			body:     marchallObj(t, user.UpdateUser{Role: user.RoleAdmin}),
			token:    token,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "invalid program",
			method:   http.MethodPut,
			path:     "/api/me",
			body:     []byte(`{"program": "MBA"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/me", token, []byte(`{"name": "  Alice Kingsleigh ", "program": "di"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		unmarshal(t, rec, &got)
		assert.Equal(t, "Alice Kingsleigh", got.Name)
		assert.Equal(t, "DI", got.Program)
		assert.Equal(t, usr.Email, got.Email)
		assert.Equal(t, usr.Role, got.Role)
	})
}

func Test_userApi_query(t *testing.T) {
	app, env := setup(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.cd", pwd, user.RoleAdmin, "", true)
	teacher := testutil.CreateUser(t, env.UserRepo, "Tom Teacher", "tom@test.cd", pwd, user.RoleTeacher, "", true)
	alice := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob Builder", "bob@test.cd", pwd, user.RoleStudent, "DI", false)

	token := getToken(t, env, admin)
	path := func(v url.Values) string { return "/api/users?" + v.Encode() }

	run(t, app, []httpTest{
		{
			name:     "all",
			method:   http.MethodGet,
			path:     "/api/users",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallList(t, admin, teacher, alice, bob),
		},
		{
			name:     "by role",
			method:   http.MethodGet,
			path:     path(url.Values{"role": {"student"}}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallList(t, alice, bob),
		},
		{
			name:     "by program and activity",
			method:   http.MethodGet,
			path:     path(url.Values{"program": {"DTI,DI"}, "is_active": {"true"}}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallList(t, alice),
		},
		{
			name:     "search",
			method:   http.MethodGet,
			path:     path(url.Values{"search": {"tom"}}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallList(t, teacher),
		},
		{
			name:     "no match",
			method:   http.MethodGet,
			path:     path(url.Values{"search": {"zed"}}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
		{
			name:     "invalid boolean",
			method:   http.MethodGet,
			path:     path(url.Values{"is_active": {"maybe"}}),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"is_active": "invalid boolean"}),
		},
		{
			name:     "roles",
			method:   http.MethodGet,
			path:     "/api/users/roles",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, user.Roles),
		},
	})

	t.Run("ordering", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path(url.Values{"ordering": {"-name"}}), token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var users []user.User
		unmarshal(t, rec, &users)
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.Name)
		}
		assert.Equal(t, []string{"Tom Teacher", "Bob Builder", "Alice Liddell", "Admin"}, names)
	})
}

func Test_userApi_create(t *testing.T) {
	app, env := setup(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.cd", pwd, user.RoleAdmin, "", true)
	student := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)

	newUser := user.NewUser{
		Name:            "Carol Danvers",
		Email:           "Carol@Test.cd",
		Program:         "dti",
		Password:        pwd,
		PasswordConfirm: pwd,
	}

	run(t, app, []httpTest{
		{
			name:     "student",
			method:   http.MethodPost,
			path:     "/api/users",
			body:     marchallObj(t, newUser),
			token:    getToken(t, env, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "duplicate email",
			method:   http.MethodPost,
			path:     "/api/users",
			body:     marchallObj(t, user.NewUser{Name: "Alice", Email: "ALICE@test.cd", Password: pwd, PasswordConfirm: pwd}),
			token:    getToken(t, env, admin),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/users",
			body:     []byte(`{}`),
			token:    getToken(t, env, admin),
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/users", getToken(t, env, admin), marchallObj(t, newUser))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got user.User
		unmarshal(t, rec, &got)
		assert.Equal(t, "carol@test.cd", got.Email)
		assert.Equal(t, "CD", got.Initials)
		assert.Equal(t, "DTI", got.Program)
		assert.Equal(t, user.RoleStudent, got.Role)
		assert.True(t, got.IsActive)

		stored, err := env.UserSvc.GetByID(context.Background(), got.ID)
		require.NoError(t, err)
		assert.NoError(t, stored.CheckPassword(pwd))
	})
}

func Test_userApi_detail(t *testing.T) {
	app, env := setup(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.cd", pwd, user.RoleAdmin, "", true)
	alice := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob Builder", "bob@test.cd", pwd, user.RoleStudent, "DI", true)

	adminToken := getToken(t, env, admin)
	aliceToken := getToken(t, env, alice)
	path := func(usr user.User) string { return "/api/users/" + usr.ID }

	run(t, app, []httpTest{
		{
			name:     "self",
			method:   http.MethodGet,
			path:     path(alice),
			token:    aliceToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, alice),
		},
		{
			name:     "someone else",
			method:   http.MethodGet,
			path:     path(bob),
			token:    aliceToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "admin",
			method:   http.MethodGet,
			path:     path(bob),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, bob),
		},
		{
			name:     "unknown",
			method:   http.MethodGet,
			path:     "/api/users/8f14e45f-ceea-467f-a1b5-0a8b8d7b2c31",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "student cannot deactivate themselves",
			method:   http.MethodPut,
			path:     path(alice),
			body:     []byte(`{"is_active": false}`),
			token:    aliceToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "email taken",
			method:   http.MethodPut,
			path:     path(bob),
			body:     marchallObj(t, user.UpdateUser{Email: alice.Email}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name:     "student cannot delete",
			method:   http.MethodDelete,
			path:     path(alice),
			token:    aliceToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "admin cannot delete themselves",
			method:   http.MethodDelete,
			path:     path(admin),
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("admin deactivates", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path(bob), adminToken, []byte(`{"is_active": false, "role": "teacher"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		unmarshal(t, rec, &got)
		assert.False(t, got.IsActive)
		assert.Equal(t, user.RoleTeacher, got.Role)

		// their token stops working
		req, rec = newAuthRequest(http.MethodGet, "/api/me", getToken(t, env, bob))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path(bob), adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, path(bob), adminToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
