package schedule

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
)

func TestTimeInput_Parse(t *testing.T) {
	cph, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)

	tests := []struct {
		name       string
		in         TimeInput
		loc        *time.Location
		wantStart  time.Time
		wantEnd    time.Time
		wantFields []string
	}{
		{
			name:      "rfc3339",
			in:        TimeInput{Start: "2026-03-02T09:00:00+01:00", End: "2026-03-02T10:30:00+01:00"},
			loc:       cph,
			wantStart: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		},
		{
			name:      "local datetime",
			in:        TimeInput{Start: "2026-07-01T09:00", End: "2026-07-01T10:00"},
			loc:       cph,
			wantStart: time.Date(2026, 7, 1, 7, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name:      "date and times",
			in:        TimeInput{Date: "2026-03-02", StartTime: "09:00", EndTime: "09:45"},
			loc:       cph,
			wantStart: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC),
		},
		{
			name:      "date across dst change",
			in:        TimeInput{Date: "2026-03-29", StartTime: "01:00", EndTime: "04:00"},
			loc:       cph,
			wantStart: time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 29, 2, 0, 0, 0, time.UTC),
		},
		{
			name:       "missing",
			in:         TimeInput{},
			wantFields: []string{"start", "end"},
		},
		{
			name:       "invalid date and times",
			in:         TimeInput{Date: "02/03/2026", StartTime: "9h", EndTime: ""},
			wantFields: []string{"date", "start_time", "end_time"},
		},
		{
			name:       "end before start",
			in:         TimeInput{Start: "2026-03-02T10:00:00Z", End: "2026-03-02T10:00:00Z"},
			wantFields: []string{"end"},
		},
		{
			name:       "end time before start time",
			in:         TimeInput{Date: "2026-03-02", StartTime: "10:00", EndTime: "09:59"},
			wantFields: []string{"end_time"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := tt.in.Parse(tt.loc)
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStart, start)
				assert.Equal(t, tt.wantEnd, end)
				return
			}
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "want a ValidationError, got %v", err)
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime(" 2026-03-02 ", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDateTime("tomorrow", time.UTC)
	assert.Error(t, err)
}

func TestDurationMinutes(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 90, DurationMinutes(start, start.Add(90*time.Minute+30*time.Second)))
	assert.Equal(t, 0, DurationMinutes(start, start))
	assert.Equal(t, 0, DurationMinutes(start, start.Add(-time.Hour)))
}
