package coaching

import (
	"sort"
	"time"

	"github.com/trezcool/ratiba/core/schedule"
)

// GroupByDay arranges slots into days in loc, each split into distinct start/end time ranges.
// Days and ranges are ascending; slots keep their start then id order within a range.
func GroupByDay(slots []Slot, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		if !sorted[i].End.Equal(sorted[j].End) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].ID < sorted[j].ID
	})

	days := make([]Day, 0)
	dayIdx := make(map[string]int)
	for _, s := range sorted {
		start, end := s.Start.In(loc), s.End.In(loc)
		date := start.Format(schedule.DateLayout)
		di, ok := dayIdx[date]
		if !ok {
			days = append(days, Day{Date: date, TimeRanges: []TimeRange{}})
			di = len(days) - 1
			dayIdx[date] = di
		}

		day := &days[di]
		from, to := start.Format(schedule.TimeLayout), end.Format(schedule.TimeLayout)
		ri := -1
		for i, tr := range day.TimeRanges {
			if tr.Start == from && tr.End == to {
				ri = i
				break
			}
		}
		if ri < 0 {
			day.TimeRanges = append(day.TimeRanges, TimeRange{Start: from, End: to})
			ri = len(day.TimeRanges) - 1
		}
		day.TimeRanges[ri].Slots = append(day.TimeRanges[ri].Slots, s)
	}

	for i := range days {
		ranges := days[i].TimeRanges
		sort.SliceStable(ranges, func(a, b int) bool {
			if ranges[a].Start != ranges[b].Start {
				return ranges[a].Start < ranges[b].Start
			}
			return ranges[a].End < ranges[b].End
		})
	}
	return days
}
