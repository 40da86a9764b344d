package echoapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

var contextObjectKey = "object"

// objectMiddleware resolves the `:id` route param with get and stores the result in the echo context.
// Domain ErrNotFound errors end up as 404s in the error handler.
func objectMiddleware[T any](get func(ctx context.Context, id string) (T, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, err := get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "retrieving object")
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}

func getContextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(contextObjectKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}

// emptyIfNil keeps JSON lists as `[]` instead of `null`.
func emptyIfNil[T any](objs []T) []T {
	if objs == nil {
		return []T{}
	}
	return objs
}
