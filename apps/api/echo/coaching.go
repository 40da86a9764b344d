package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/coaching"
	"github.com/trezcool/ratiba/core/course"
)

type coachingApi struct {
	svc       coaching.Service
	courseSvc course.Service
	validate  *validator.Validate
	conf      *core.Config
}

func registerCoachingAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := coachingApi{
		svc:       deps.CoachingSvc,
		courseSvc: deps.CourseSvc,
		validate:  deps.Validate,
		conf:      deps.Conf,
	}

	cg := g.Group("/coaching-slots", authed)
	cg.GET("", api.query)
	cg.GET("/grouped", api.grouped)
	cg.POST("", api.create, staffMiddleware())

	cg.POST("/:id/book", api.book)
	cg.POST("/:id/cancel", api.cancel)

	dg := cg.Group("/:id", objectMiddleware(api.svc.GetByID))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
}

func (api *coachingApi) bindFilter(ctx echo.Context) (coaching.QueryFilter, error) {
	from, to, err := timeRange(ctx, api.conf.Location)
	if err != nil {
		return coaching.QueryFilter{}, err
	}
	available, err := queryBool(ctx, "available")
	if err != nil {
		return coaching.QueryFilter{}, err
	}
	filter := coaching.QueryFilter{
		CourseIDs: queryStrings(ctx, "course_id"),
		From:      from,
		To:        to,
		Available: available != nil && *available,
	}
	if mine, err := queryBool(ctx, "mine"); err != nil {
		return coaching.QueryFilter{}, err
	} else if mine != nil && *mine {
		usr, err := getContextUser(ctx)
		if err != nil {
			return coaching.QueryFilter{}, errors.Wrap(err, "getting context user")
		}
		filter.ParticipantID = usr.ID
	}
	return filter, nil
}

// query lists slots with `course_id`, `from`, `to`, `available` and `mine` (booked by the caller) filters.
func (api *coachingApi) query(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	slots, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying coaching slots")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(slots))
}

// grouped lists the same slots as query, arranged by day and time range.
func (api *coachingApi) grouped(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}

	days, err := api.svc.Grouped(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "grouping coaching slots")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(days))
}

func (api *coachingApi) create(ctx echo.Context) error {
	var data coaching.NewSlot
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSlot")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.conf.Location, api.courseSvc); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating coaching slot")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *coachingApi) retrieve(ctx echo.Context) error {
	s, err := getContextObject[coaching.Slot](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *coachingApi) update(ctx echo.Context) error {
	s, err := getContextObject[coaching.Slot](ctx)
	if err != nil {
		return err
	}

	var data coaching.UpdateSlot
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSlot")
	}
	if err := data.Validate(ctx.Request().Context(), s, api.validate, api.conf.Location, api.courseSvc); err != nil {
		return err
	}

	s, err = api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating coaching slot")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *coachingApi) destroy(ctx echo.Context) error {
	s, err := getContextObject[coaching.Slot](ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting coaching slot")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *coachingApi) book(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	s, err := api.svc.Book(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "booking coaching slot")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *coachingApi) cancel(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	s, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "cancelling coaching slot booking")
	}
	return ctx.JSON(http.StatusOK, s)
}
