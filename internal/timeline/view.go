package timeline

import (
	"sort"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/task"
)

// DayView is the blocks scheduled on one calendar day
type DayView struct {
	Date       string               `json:"date"`
	Weekday    string               `json:"weekday"`
	Blocks     []task.ScheduleBlock `json:"blocks"`
	TotalHours float64              `json:"total_hours"`
}

// GroupByDay projects blocks into per-day views ordered by date, blocks ordered by start.
// Dates are read in loc, or in each block's own location when loc is nil.
func GroupByDay(blocks []task.ScheduleBlock, loc *time.Location) []DayView {
	sorted := make([]task.ScheduleBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Start.Before(sorted[b].Start)
	})

	var views []DayView
	index := make(map[string]int)
	for _, b := range sorted {
		start := b.Start
		if loc != nil {
			start = start.In(loc)
		}
		key := start.Format(dayKeyLayout)

		i, ok := index[key]
		if !ok {
			i = len(views)
			index[key] = i
			views = append(views, DayView{Date: key, Weekday: start.Weekday().String()})
		}
		views[i].Blocks = append(views[i].Blocks, b)
		views[i].TotalHours += b.DurationHours
	}

	for i := range views {
		views[i].TotalHours = round(views[i].TotalHours, 2)
	}
	return views
}

// BlocksOn returns the blocks starting on day's calendar date, in day's location
func BlocksOn(blocks []task.ScheduleBlock, day time.Time) []task.ScheduleBlock {
	key := day.Format(dayKeyLayout)
	var out []task.ScheduleBlock
	for _, b := range blocks {
		if b.Start.In(day.Location()).Format(dayKeyLayout) == key {
			out = append(out, b)
		}
	}
	return out
}
