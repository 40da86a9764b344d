package group

import (
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/user"
)

// NewServiceMock returns a Service that publishes events synchronously.
func NewServiceMock(repo Repository, courseSvc course.Service, userSvc user.Service, events core.EventPublisher, logger core.Logger) Service {
	svc := NewService(repo, courseSvc, userSvc, events, logger).(*service)
	svc.goFunc = func(f func()) { f() }
	return svc
}
