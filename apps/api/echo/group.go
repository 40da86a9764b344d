package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/group"
)

type groupApi struct {
	svc       group.Service
	courseSvc course.Service
	validate  *validator.Validate
}

func registerGroupAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := groupApi{
		svc:       deps.GroupSvc,
		courseSvc: deps.CourseSvc,
		validate:  deps.Validate,
	}

	gg := g.Group("/groups", authed)
	gg.GET("", api.query)
	gg.POST("", api.create)

	gg.POST("/:id/join", api.join)
	gg.POST("/:id/leave", api.leave)

	dg := gg.Group("/:id", objectMiddleware(api.svc.GetByID))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
}

// query lists groups with `course_id`, `search` and `mine` (joined by the caller) filters.
func (api *groupApi) query(ctx echo.Context) error {
	filter := group.QueryFilter{
		CourseIDs: queryStrings(ctx, "course_id"),
		Search:    ctx.QueryParam("search"),
	}
	mine, err := queryBool(ctx, "mine")
	if err != nil {
		return err
	}
	if mine != nil && *mine {
		usr, err := getContextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		filter.MemberID = usr.ID
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	groups, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(groups))
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.courseSvc); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := getContextObject[group.Group](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	grp, err := getContextObject[group.Group](ctx)
	if err != nil {
		return err
	}

	var data group.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := data.Validate(ctx.Request().Context(), grp, api.validate, api.courseSvc); err != nil {
		return err
	}

	grp, err = api.svc.Update(ctx.Request().Context(), grp, data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	grp, err := getContextObject[group.Group](ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), grp.ID); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grp, err := api.svc.Join(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "joining group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) leave(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grp, err := api.svc.Leave(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "leaving group")
	}
	return ctx.JSON(http.StatusOK, grp)
}
