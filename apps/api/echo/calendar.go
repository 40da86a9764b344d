package echoapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/calendar"
)

const feedPath = "/api/calendar/feed.ics"

type calendarApi struct {
	svc calendar.Service
}

func registerCalendarAPI(g *echo.Group, authed echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := calendarApi{svc: deps.CalendarSvc}

	cg := g.Group("/calendar")
	cg.GET("/token", api.token, authed)
	cg.POST("/token", api.regenerateToken, authed)
	cg.GET("/feed.ics", api.feed, auth.calendarMiddleware())
}

type CalendarTokenResponse struct {
	Token   string `json:"token"`
	FeedURL string `json:"feed_url"`
}

// feedURL builds the subscription URL on the host the request came through.
func feedURL(ctx echo.Context, token string) string {
	u := url.URL{
		Scheme:   ctx.Scheme(),
		Host:     ctx.Request().Host,
		Path:     feedPath,
		RawQuery: url.Values{"token": []string{token}}.Encode(),
	}
	return u.String()
}

func (api *calendarApi) token(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	token, err := api.svc.Token(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting calendar token")
	}
	return ctx.JSON(http.StatusOK, CalendarTokenResponse{Token: token, FeedURL: feedURL(ctx, token)})
}

func (api *calendarApi) regenerateToken(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	token, err := api.svc.RegenerateToken(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "regenerating calendar token")
	}
	return ctx.JSON(http.StatusOK, CalendarTokenResponse{Token: token, FeedURL: feedURL(ctx, token)})
}

func (api *calendarApi) feed(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	feed, err := api.svc.Feed(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "rendering calendar feed")
	}

	header := ctx.Response().Header()
	header.Set("ETag", feed.ETag)
	header.Set("Cache-Control", "private, no-cache")
	if !feed.LastModified.IsZero() {
		header.Set("Last-Modified", feed.LastModified.UTC().Format(http.TimeFormat))
	}

	req := ctx.Request()
	if feed.NotModified(req.Header.Get("If-None-Match")) {
		return ctx.NoContent(http.StatusNotModified)
	}
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", feed.Body)
}
