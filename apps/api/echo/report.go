package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/report"
)

type reportApi struct {
	svc      report.Service
	validate *validator.Validate
}

func registerReportAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := reportApi{
		svc:      deps.ReportSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/reports", authed)
	rg.GET("", api.query)
	rg.POST("", api.create)
	rg.GET("/:id", api.retrieve, api.objectMiddleware())
	rg.PUT("/:id", api.update, adminMiddleware(), api.objectMiddleware())
	rg.DELETE("/:id", api.destroy)
}

// objectMiddleware resolves `:id` among the reports visible to the context user.
func (api *reportApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			r, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"), usr)
			if err != nil {
				return errors.Wrap(err, "retrieving report")
			}
			ctx.Set(contextObjectKey, r)
			return next(ctx)
		}
	}
}

// query lists the caller's reports (every report for admins) with `status` and `type` filters.
func (api *reportApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := report.QueryFilter{
		Statuses: queryStrings(ctx, "status"),
		Types:    queryStrings(ctx, "type"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	reports, err := api.svc.Query(ctx.Request().Context(), filter, usr, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying reports")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(reports))
}

func (api *reportApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data report.NewReport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReport")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Create(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating report")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *reportApi) retrieve(ctx echo.Context) error {
	r, err := getContextObject[report.Report](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *reportApi) update(ctx echo.Context) error {
	r, err := getContextObject[report.Report](ctx)
	if err != nil {
		return err
	}

	var data report.UpdateReport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReport")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err = api.svc.Update(ctx.Request().Context(), r, data)
	if err != nil {
		return errors.Wrap(err, "updating report")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *reportApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), usr); err != nil {
		return errors.Wrap(err, "deleting report")
	}
	return ctx.NoContent(http.StatusNoContent)
}
