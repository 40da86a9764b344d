package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/schedule"
)

type sessionApi struct {
	svc       schedule.Service
	courseSvc course.Service
	validate  *validator.Validate
	conf      *core.Config
}

func registerSessionAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := sessionApi{
		svc:       deps.SessionSvc,
		courseSvc: deps.CourseSvc,
		validate:  deps.Validate,
		conf:      deps.Conf,
	}

	sg := g.Group("/sessions", authed)
	sg.GET("", api.query)
	sg.POST("", api.create, staffMiddleware())

	dg := sg.Group("/:id", objectMiddleware(api.svc.GetByID))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
}

// query lists sessions with `course_id`, `program`, `type`, `from` and `to` filters (start ascending by default).
func (api *sessionApi) query(ctx echo.Context) error {
	from, to, err := timeRange(ctx, api.conf.Location)
	if err != nil {
		return err
	}
	filter := schedule.QueryFilter{
		CourseIDs: queryStrings(ctx, "course_id"),
		Program:   ctx.QueryParam("program"),
		Types:     queryStrings(ctx, "type"),
		From:      from,
		To:        to,
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(sessions))
}

func (api *sessionApi) create(ctx echo.Context) error {
	var data schedule.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.conf.Location, api.courseSvc); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	s, err := getContextObject[schedule.Session](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) update(ctx echo.Context) error {
	s, err := getContextObject[schedule.Session](ctx)
	if err != nil {
		return err
	}

	var data schedule.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err := data.Validate(ctx.Request().Context(), s, api.validate, api.conf.Location, api.courseSvc); err != nil {
		return err
	}

	s, err = api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	s, err := getContextObject[schedule.Session](ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}
