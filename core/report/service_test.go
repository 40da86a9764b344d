package report_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/report"
	"github.com/trezcool/ratiba/core/user"
	emailsvc "github.com/trezcool/ratiba/services/email"
	"github.com/trezcool/ratiba/testutil"
)

func TestService_CreateAndVisibility(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	ada := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "ada@test.test", "", user.RoleStudent, "", true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob Marley", "bob@test.test", "", user.RoleTeacher, "", true)
	admin := testutil.CreateUser(t, env.UserRepo, "Root Admin", "admin@test.test", "", user.RoleAdmin, "", true)

	nr := report.NewReport{Type: " BUG ", Title: " Feed is empty ", Description: "nothing shows"}
	require.NoError(t, nr.Validate(env.Validate))
	r, err := env.ReportSvc.Create(ctx, nr, ada)
	require.NoError(t, err)
	assert.Equal(t, report.TypeBug, r.Type)
	assert.Equal(t, "Feed is empty", r.Title)
	assert.Equal(t, report.StatusOpen, r.Status)
	require.NotNil(t, r.Reporter)
	assert.Equal(t, ada.ID, r.Reporter.ID)
	assert.Len(t, env.Events.Events(core.SubjectReportCreated), 1)

	testutil.CreateReport(t, env.ReportRepo, bob, report.TypeFeature, "Dark mode", report.StatusOpen)

	mine, err := env.ReportSvc.Query(ctx, report.QueryFilter{}, ada)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r.ID, mine[0].ID)

	all, err := env.ReportSvc.Query(ctx, report.QueryFilter{}, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	features, err := env.ReportSvc.Query(ctx, report.QueryFilter{Types: []string{"FEATURE"}}, admin)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "Dark mode", features[0].Title)
	assert.Equal(t, bob.Summary(), *features[0].Reporter)

	_, err = env.ReportSvc.GetByID(ctx, r.ID, bob)
	assert.ErrorIs(t, err, report.ErrNotFound)
	got, err := env.ReportSvc.GetByID(ctx, r.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}

func TestService_Update_StatusChange(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	ada := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "ada@test.test", "", user.RoleStudent, "", true)
	r := testutil.CreateReport(t, env.ReportRepo, ada, report.TypeBug, "Broken", report.StatusOpen)

	desc := "details"
	updated, err := env.ReportSvc.Update(ctx, r, report.UpdateReport{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "details", updated.Description)
	assert.Empty(t, env.Events.Events(core.SubjectReportStatusChanged))

	ur := report.UpdateReport{Status: report.StatusInProgress}
	require.NoError(t, ur.Validate(env.Validate))
	updated, err = env.ReportSvc.Update(ctx, updated, ur)
	require.NoError(t, err)
	assert.Equal(t, report.StatusInProgress, updated.Status)

	evts := env.Events.Events(core.SubjectReportStatusChanged)
	require.Len(t, evts, 1)
	evt := evts[0].Payload.(report.Event)
	assert.Equal(t, report.StatusOpen, evt.OldStatus)
	assert.Equal(t, report.StatusInProgress, evt.Status)

	sent := emailsvc.LastSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "report_status_changed", sent[0].TemplateName)
	assert.Equal(t, "ada@test.test", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "from open to in_progress")

	bad := report.UpdateReport{Status: "wontfix"}
	assert.Error(t, bad.Validate(env.Validate))
}

func TestService_Delete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@test.test", "", user.RoleAdmin, "", true)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.test", "", user.RoleAdmin, "", true)
	r := testutil.CreateReport(t, env.ReportRepo, admin, report.TypeBug, "Broken", report.StatusOpen)

	// nobody may delete without a configured owner
	assert.ErrorIs(t, env.ReportSvc.Delete(ctx, r.ID, owner), core.ErrForbidden)

	env.Conf.ReportOwnerID = owner.ID
	assert.ErrorIs(t, env.ReportSvc.Delete(ctx, r.ID, admin), core.ErrForbidden)
	require.NoError(t, env.ReportSvc.Delete(ctx, r.ID, owner))
	assert.ErrorIs(t, env.ReportSvc.Delete(ctx, r.ID, owner), report.ErrNotFound)
}
