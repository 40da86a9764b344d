package report

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
)

// ErrNotFound is returned when a report does not exist or is not visible to the acting user.
var ErrNotFound = errors.New("report not found")

var OrderingFields = []string{"created_at", "updated_at", "status", "type", "title"}

var defaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}

type (
	Repository interface {
		CreateReport(ctx context.Context, r Report) (Report, error)
		// QueryReports returns reports matching every set QueryFilter field.
		QueryReports(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Report, error)
		GetReportByID(ctx context.Context, id string) (Report, error)
		UpdateReport(ctx context.Context, r Report) (Report, error)
		DeleteReport(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, nr NewReport, reporter user.User) (Report, error)
		// Query lists every report to admins and only their own reports to everyone else.
		Query(ctx context.Context, filter QueryFilter, actor user.User, ordering ...core.DBOrdering) ([]Report, error)
		// GetByID returns ErrNotFound unless actor may view the report.
		GetByID(ctx context.Context, id string, actor user.User) (Report, error)
		Update(ctx context.Context, orig Report, ur UpdateReport) (Report, error)
		// Delete returns core.ErrForbidden unless actor is the configured report owner.
		Delete(ctx context.Context, id string, actor user.User) error
	}

	service struct {
		repo    Repository
		userSvc user.Service
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
		conf    *core.Config
		goFunc  func(func())
	}
)

func NewService(
	repo Repository,
	userSvc user.Service,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:    repo,
		userSvc: userSvc,
		mailSvc: mailSvc,
		events:  events,
		logger:  logger,
		conf:    conf,
		goFunc:  func(f func()) { go f() },
	}
}

func (svc *service) Create(ctx context.Context, nr NewReport, reporter user.User) (Report, error) {
	now := core.NowFunc()
	r, err := svc.repo.CreateReport(ctx, Report{
		ID:          uuid.NewString(),
		Type:        nr.Type,
		Title:       nr.Title,
		Description: nr.Description,
		Status:      StatusOpen,
		UserID:      reporter.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Report{}, err
	}

	sum := reporter.Summary()
	r.Reporter = &sum
	svc.goFunc(func() { svc.publish(core.SubjectReportCreated, r, "") })
	return r, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, actor user.User, ordering ...core.DBOrdering) ([]Report, error) {
	filter.Clean()
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}
	if ordering = core.FilterOrderings(ordering, OrderingFields...); len(ordering) == 0 {
		ordering = defaultOrdering
	}
	reports, err := svc.repo.QueryReports(ctx, filter, ordering...)
	if err != nil {
		return nil, err
	}
	return svc.withReporters(ctx, reports)
}

func (svc *service) GetByID(ctx context.Context, id string, actor user.User) (Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Report{}, ErrNotFound
	}
	r, err := svc.repo.GetReportByID(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if !r.CanView(actor) {
		return Report{}, ErrNotFound
	}
	res, err := svc.withReporters(ctx, []Report{r})
	if err != nil {
		return Report{}, err
	}
	return res[0], nil
}

func (svc *service) Update(ctx context.Context, orig Report, ur UpdateReport) (Report, error) {
	r := orig
	if ur.Status != "" {
		r.Status = ur.Status
	}
	if ur.Title != "" {
		r.Title = ur.Title
	}
	if ur.Description != nil {
		r.Description = *ur.Description
	}
	r.UpdatedAt = core.NowFunc()

	r, err := svc.repo.UpdateReport(ctx, r)
	if err != nil {
		return Report{}, err
	}
	r.Reporter = orig.Reporter

	if r.Status != orig.Status {
		svc.goFunc(func() {
			svc.publish(core.SubjectReportStatusChanged, r, orig.Status)
			svc.sendStatusChangedMail(r, orig.Status)
		})
	}
	return r, nil
}

func (svc *service) Delete(ctx context.Context, id string, actor user.User) error {
	if svc.conf.ReportOwnerID == "" || actor.ID != svc.conf.ReportOwnerID {
		return core.ErrForbidden
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return svc.repo.DeleteReport(ctx, id)
}

func (svc *service) publish(subject string, r Report, oldStatus string) {
	evt := Event{
		ReportID:   r.ID,
		Type:       r.Type,
		UserID:     r.UserID,
		OldStatus:  oldStatus,
		Status:     r.Status,
		OccurredAt: core.NowFunc(),
	}
	if err := svc.events.Publish(context.Background(), subject, evt); err != nil {
		svc.logger.Error(fmt.Sprintf("report: publishing %s: %v", subject, err), err)
	}
}

func (svc *service) sendStatusChangedMail(r Report, oldStatus string) {
	if r.UserID == "" {
		return
	}
	reporter, err := svc.userSvc.GetByID(context.Background(), r.UserID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			svc.logger.Error(fmt.Sprintf("report: fetching reporter: %v", err), err)
		}
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: reporter.Name, Address: reporter.Email}},
		Subject:      "Your report is now " + r.Status,
		TemplateName: "report_status_changed",
		TemplateData: map[string]string{
			"Name":      reporter.Name,
			"Title":     r.Title,
			"OldStatus": oldStatus,
			"Status":    r.Status,
		},
	})
}

func (svc *service) withReporters(ctx context.Context, reports []Report) ([]Report, error) {
	var ids []string
	for _, r := range reports {
		if r.UserID != "" && !core.StringsContain(ids, r.UserID) {
			ids = append(ids, r.UserID)
		}
	}
	users, err := svc.userSvc.GetManyByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching reporters")
	}
	summaries := make(map[string]user.Summary, len(users))
	for _, u := range users {
		summaries[u.ID] = u.Summary()
	}
	for i := range reports {
		if sum, ok := summaries[reports[i].UserID]; ok {
			reports[i].Reporter = &sum
		}
	}
	return reports, nil
}
