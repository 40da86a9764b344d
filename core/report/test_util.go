package report

import (
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
)

// NewServiceMock returns a Service that publishes events and sends emails synchronously.
func NewServiceMock(
	repo Repository,
	userSvc user.Service,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) Service {
	svc := NewService(repo, userSvc, mailSvc, events, logger, conf).(*service)
	svc.goFunc = func(f func()) { f() }
	return svc
}
