package timeline

import (
	"sort"

	"github.com/muaviaUsmani/studyplan/internal/task"
)

// Stats aggregates scheduled hours per calendar day
type Stats struct {
	DaysUsed        int     `json:"days_used"`
	AvgHoursPerDay  float64 `json:"avg_hours_per_day"`
	BusiestDay      string  `json:"busiest_day,omitempty"`
	BusiestDayHours float64 `json:"busiest_day_hours"`
}

// ComputeStats groups blocks by the calendar date of their start.
// Ties for the busiest day go to the earliest date.
func ComputeStats(blocks []task.ScheduleBlock) Stats {
	if len(blocks) == 0 {
		return Stats{}
	}

	hours := make(map[string]float64)
	var total float64
	for _, b := range blocks {
		hours[b.Start.Format(dayKeyLayout)] += b.DurationHours
		total += b.DurationHours
	}

	days := make([]string, 0, len(hours))
	for day := range hours {
		days = append(days, day)
	}
	sort.Strings(days)

	stats := Stats{DaysUsed: len(days)}
	for _, day := range days {
		if hours[day] > stats.BusiestDayHours {
			stats.BusiestDay = day
			stats.BusiestDayHours = hours[day]
		}
	}
	stats.AvgHoursPerDay = round(total/float64(len(days)), 1)
	stats.BusiestDayHours = round(stats.BusiestDayHours, 2)
	return stats
}
