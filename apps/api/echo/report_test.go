package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/report"
	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/testutil"
)

func Test_reportApi(t *testing.T) {
	app, env := setup(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.cd", pwd, user.RoleAdmin, "", true)
	owner := testutil.CreateUser(t, env.UserRepo, "Olive Owner", "olive@test.cd", pwd, user.RoleAdmin, "", true)
	alice := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", pwd, user.RoleStudent, "DTI", true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob Builder", "bob@test.cd", pwd, user.RoleStudent, "DTI", true)
	env.Conf.ReportOwnerID = owner.ID

	bobs := testutil.CreateReport(t, env.ReportRepo, bob, report.TypeFeature, "Dark mode", report.StatusOpen)

	adminToken := getToken(t, env, admin)
	aliceToken := getToken(t, env, alice)

	var rpt report.Report
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/reports", aliceToken,
			[]byte(`{"type": "BUG", "title": " Calendar is empty ", "description": "nothing shows up"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarshal(t, rec, &rpt)
		assert.Equal(t, report.TypeBug, rpt.Type)
		assert.Equal(t, "Calendar is empty", rpt.Title)
		assert.Equal(t, report.StatusOpen, rpt.Status)
		assert.Equal(t, alice.ID, rpt.UserID)
		assert.Len(t, env.Events.Events(core.SubjectReportCreated), 1)
	})

	run(t, app, []httpTest{
		{
			name:     "invalid type",
			method:   http.MethodPost,
			path:     "/api/reports",
			body:     []byte(`{"type": "rant", "title": "meh"}`),
			token:    aliceToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "someone else's report",
			method:   http.MethodGet,
			path:     "/api/reports/" + bobs.ID,
			token:    aliceToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: report.ErrNotFound.Error()}),
		},
		{
			name:     "student cannot update",
			method:   http.MethodPut,
			path:     "/api/reports/" + bobs.ID,
			body:     []byte(`{"status": "closed"}`),
			token:    aliceToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "invalid status",
			method:   http.MethodPut,
			path:     "/api/reports/" + bobs.ID,
			body:     []byte(`{"status": "wontfix"}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "admin cannot delete",
			method:   http.MethodDelete,
			path:     "/api/reports/" + bobs.ID,
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "reporter cannot delete",
			method:   http.MethodDelete,
			path:     "/api/reports/" + bobs.ID,
			token:    getToken(t, env, bob),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("visibility", func(t *testing.T) {
		count := func(token string) int {
			req, rec := newAuthRequest(http.MethodGet, "/api/reports", token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var reports []report.Report
			unmarshal(t, rec, &reports)
			return len(reports)
		}
		assert.Equal(t, 1, count(aliceToken))
		assert.Equal(t, 2, count(adminToken))

		req, rec := newAuthRequest(http.MethodGet, "/api/reports?type=feature", adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var reports []report.Report
		unmarshal(t, rec, &reports)
		require.Len(t, reports, 1)
		assert.Equal(t, bobs.ID, reports[0].ID)
		require.NotNil(t, reports[0].Reporter)
		assert.Equal(t, bob.ID, reports[0].Reporter.ID)
	})

	t.Run("admin changes status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/reports/"+rpt.ID, adminToken, []byte(`{"status": "in_progress"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got report.Report
		unmarshal(t, rec, &got)
		assert.Equal(t, report.StatusInProgress, got.Status)
		assert.Equal(t, rpt.Title, got.Title)
		assert.Len(t, env.Events.Events(core.SubjectReportStatusChanged), 1)
	})

	t.Run("owner deletes", func(t *testing.T) {
		ownerToken := getToken(t, env, owner)
		req, rec := newAuthRequest(http.MethodDelete, "/api/reports/"+bobs.ID, ownerToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodDelete, "/api/reports/"+bobs.ID, ownerToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_reportApi_noOwner(t *testing.T) {
	app, env := setup(t, func(deps *echoapi.Deps) { deps.Conf.ReportOwnerID = "" })
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.cd", pwd, user.RoleAdmin, "", true)
	r := testutil.CreateReport(t, env.ReportRepo, admin, report.TypeBug, "Broken", report.StatusOpen)

	run(t, app, []httpTest{
		{
			name:     "nobody may delete",
			method:   http.MethodDelete,
			path:     "/api/reports/" + r.ID,
			token:    getToken(t, env, admin),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})
}
