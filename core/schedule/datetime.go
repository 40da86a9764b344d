package schedule

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// datetime-local form inputs carry no offset
	localDateTimeLayout = "2006-01-02T15:04"
)

var errEndBeforeStart = errors.New("end must be after start")

// TimeInput is how forms send a start/end pair: either `start` and `end` as RFC3339 (or offset-less
// `YYYY-MM-DDTHH:MM`), or a `date` with `start_time` and `end_time`. Offset-less values are read in the
// configured timezone.
type TimeInput struct {
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

func (in TimeInput) IsEmpty() bool {
	return in.Start == "" && in.End == "" && in.Date == "" && in.StartTime == "" && in.EndTime == ""
}

// Parse returns the UTC start and end described by in.
func (in TimeInput) Parse(loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	var fields []core.FieldError
	fieldErr := func(field, msg string) {
		fields = append(fields, core.FieldError{Field: field, Error: msg})
	}

	if date := core.CleanString(in.Date); date != "" {
		day, derr := time.ParseInLocation(DateLayout, date, loc)
		if derr != nil {
			fieldErr("date", "invalid date, expected YYYY-MM-DD")
		}
		sh, sm, serr := parseClock(in.StartTime)
		if serr != nil {
			fieldErr("start_time", serr.Error())
		}
		eh, em, eerr := parseClock(in.EndTime)
		if eerr != nil {
			fieldErr("end_time", eerr.Error())
		}
		if len(fields) > 0 {
			return time.Time{}, time.Time{}, core.NewValidationError(nil, fields...)
		}
		start = time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, loc)
		end = time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, loc)
		if !end.After(start) {
			return time.Time{}, time.Time{}, core.NewValidationError(errEndBeforeStart,
				core.FieldError{Field: "end_time", Error: errEndBeforeStart.Error()})
		}
		return start.UTC(), end.UTC(), nil
	}

	start, serr := ParseDateTime(in.Start, loc)
	if serr != nil {
		fieldErr("start", serr.Error())
	}
	end, eerr := ParseDateTime(in.End, loc)
	if eerr != nil {
		fieldErr("end", eerr.Error())
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, core.NewValidationError(nil, fields...)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, core.NewValidationError(errEndBeforeStart,
			core.FieldError{Field: "end", Error: errEndBeforeStart.Error()})
	}
	return start.UTC(), end.UTC(), nil
}

// ParseDateTime parses an RFC3339 timestamp, or a `YYYY-MM-DDTHH:MM` / `YYYY-MM-DD` value in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = core.CleanString(s)
	if s == "" {
		return time.Time{}, errors.New("this field is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{localDateTimeLayout, DateLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("invalid datetime, expected RFC3339")
}

func parseClock(s string) (hour, minute int, err error) {
	s = core.CleanString(s)
	if s == "" {
		return 0, 0, errors.New("this field is required")
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, 0, errors.New("invalid time, expected HH:MM")
	}
	return t.Hour(), t.Minute(), nil
}

// DurationMinutes is the whole number of minutes between start and end, 0 if end is not after start.
func DurationMinutes(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(math.Floor(end.Sub(start).Minutes()))
}
