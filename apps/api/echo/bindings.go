package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/schedule"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryStrings returns the values of a repeatable query param; `?x=a,b&x=c` gives [a b c].
func queryStrings(ctx echo.Context, name string) []string {
	vals, ok := ctx.QueryParams()[name]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(vals))
	for _, v := range vals {
		res = append(res, core.CleanStrings(strings.Split(v, ","))...)
	}
	return res
}

// queryBool parses an optional boolean query param.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: "invalid boolean"})
	}
	return &b, nil
}

// queryTime parses an optional RFC3339 / `YYYY-MM-DD` query param, read in loc when it has no offset.
func queryTime(ctx echo.Context, name string, loc *time.Location) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	t, err := schedule.ParseDateTime(val, loc)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: err.Error()})
	}
	return t, nil
}

// timeRange reads the `from` / `to` query params.
func timeRange(ctx echo.Context, loc *time.Location) (from, to time.Time, err error) {
	if from, err = queryTime(ctx, "from", loc); err != nil {
		return
	}
	to, err = queryTime(ctx, "to", loc)
	return
}
