package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/interval"
	"github.com/muaviaUsmani/studyplan/internal/task"
)

// Feasibility grades how well free time covers the study hours needed
type Feasibility string

const (
	FeasibilityComfortable Feasibility = "comfortable"
	FeasibilityTight       Feasibility = "tight"
	FeasibilityChallenging Feasibility = "challenging"
)

// maxHighlightedDays is the length of the busiest and best day lists
const maxHighlightedDays = 3

// DayFreeTime is the free time inside one day's working window
type DayFreeTime struct {
	Date           string              `json:"date"`
	Weekday        string              `json:"weekday"`
	FreeSlots      []interval.Interval `json:"free_slots"`
	FreeHours      float64             `json:"free_hours"`
	BusyHours      float64             `json:"busy_hours"`
	WorkHours      float64             `json:"work_hours"`
	FreePercentage float64             `json:"free_percentage"`
	BusyBlocks     int                 `json:"busy_blocks"`
}

// FreeTimeReport summarizes free time over a range of days
type FreeTimeReport struct {
	Days               []DayFreeTime `json:"days"`
	TotalFreeHours     float64       `json:"total_free_hours"`
	AvgFreeHoursPerDay float64       `json:"avg_free_hours_per_day"`
	BusiestDays        []DayFreeTime `json:"busiest_days"`
	BestDays           []DayFreeTime `json:"best_days"`
}

// AnalyzeFreeTime reports free slots of at least the minimum block for days calendar days
// starting at today's date, in today's location.
func AnalyzeFreeTime(busy []task.BusyInterval, prefs Preferences, today time.Time, days int) FreeTimeReport {
	intervals := make([]interval.Interval, 0, len(busy))
	for _, b := range busy {
		if b.IsValid() {
			intervals = append(intervals, b.Interval())
		}
	}

	report := FreeTimeReport{Days: make([]DayFreeTime, 0, days)}
	start := startOfDay(today)
	for i := 0; i < days; i++ {
		y, m, d := start.Date()
		day := time.Date(y, m, d+i, 0, 0, 0, 0, start.Location())
		window := prefs.Window(day)

		clipped := interval.ClipAll(intervals, window)
		busyMerged := interval.Merge(clipped)

		dft := DayFreeTime{
			Date:       day.Format(dayKeyLayout),
			Weekday:    day.Weekday().String(),
			FreeSlots:  []interval.Interval{},
			WorkHours:  round(window.Hours(), 1),
			BusyHours:  round(interval.TotalDuration(busyMerged).Hours(), 1),
			BusyBlocks: len(clipped),
		}

		var free time.Duration
		for _, gap := range interval.Gaps(window, intervals) {
			if gap.Duration() >= prefs.MinBlock() {
				dft.FreeSlots = append(dft.FreeSlots, gap)
				free += gap.Duration()
			}
		}
		dft.FreeHours = round(free.Hours(), 1)
		if window.Hours() > 0 {
			dft.FreePercentage = round(free.Hours()/window.Hours()*100, 1)
		}

		report.Days = append(report.Days, dft)
		report.TotalFreeHours += free.Hours()
	}

	if len(report.Days) > 0 {
		report.AvgFreeHoursPerDay = round(report.TotalFreeHours/float64(len(report.Days)), 1)
	}
	report.TotalFreeHours = round(report.TotalFreeHours, 1)

	byFree := make([]DayFreeTime, len(report.Days))
	copy(byFree, report.Days)
	sort.SliceStable(byFree, func(a, b int) bool {
		return byFree[a].FreeHours < byFree[b].FreeHours
	})
	n := len(byFree)
	if n > maxHighlightedDays {
		n = maxHighlightedDays
	}
	report.BusiestDays = append([]DayFreeTime{}, byFree[:n]...)

	sort.SliceStable(byFree, func(a, b int) bool {
		return byFree[a].FreeHours > byFree[b].FreeHours
	})
	report.BestDays = append([]DayFreeTime{}, byFree[:n]...)
	return report
}

// Recommendation suggests a daily study load
type Recommendation struct {
	RecommendedHoursPerDay float64     `json:"recommended_hours_per_day"`
	TotalFreeHours         float64     `json:"total_free_hours"`
	TotalNeededHours       float64     `json:"total_needed_hours"`
	Feasibility            Feasibility `json:"feasibility"`
	Message                string      `json:"message"`
}

// Recommend compares the hours needed before a deadline days away with the free time in report
func Recommend(report FreeTimeReport, neededHours float64, days int) Recommendation {
	if days < 1 {
		days = 1
	}
	even := neededHours / float64(days)
	rec := Recommendation{TotalFreeHours: report.TotalFreeHours, TotalNeededHours: neededHours}

	switch {
	case report.TotalFreeHours >= neededHours:
		rec.RecommendedHoursPerDay = even
		rec.Feasibility = FeasibilityComfortable
		rec.Message = fmt.Sprintf("You have %.1fh of free time. Studying %.1fh/day will be comfortable.", report.TotalFreeHours, even)
	case report.TotalFreeHours >= neededHours*0.7:
		rec.RecommendedHoursPerDay = minFloat(report.AvgFreeHoursPerDay*0.8, even)
		rec.Feasibility = FeasibilityTight
		rec.Message = fmt.Sprintf("You have %.1fh of free time. You will need most of it to study.", report.TotalFreeHours)
	default:
		rec.RecommendedHoursPerDay = report.AvgFreeHoursPerDay * 0.9
		rec.Feasibility = FeasibilityChallenging
		rec.Message = fmt.Sprintf("Only %.1fh available but %.1fh needed. Consider starting earlier or reducing scope.", report.TotalFreeHours, neededHours)
	}
	rec.RecommendedHoursPerDay = round(rec.RecommendedHoursPerDay, 1)
	return rec
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
