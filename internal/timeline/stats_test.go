package timeline

import (
	"testing"

	"github.com/muaviaUsmani/studyplan/internal/task"
)

func TestComputeStats(t *testing.T) {
	blocks := []task.ScheduleBlock{
		{Start: at(2, 9, 0), DurationHours: 2},
		{Start: at(3, 9, 0), DurationHours: 3},
		{Start: at(4, 9, 0), DurationHours: 3},
	}

	stats := ComputeStats(blocks)
	if stats.DaysUsed != 3 {
		t.Errorf("DaysUsed = %d, want 3", stats.DaysUsed)
	}
	if stats.AvgHoursPerDay != 2.7 {
		t.Errorf("AvgHoursPerDay = %v, want 2.7", stats.AvgHoursPerDay)
	}
	if stats.BusiestDay != "2026-03-03" || stats.BusiestDayHours != 3 {
		t.Errorf("expected earliest busiest day 2026-03-03 with 3h, got %s with %v", stats.BusiestDay, stats.BusiestDayHours)
	}

	if (ComputeStats(nil) != Stats{}) {
		t.Error("expected zero stats for no blocks")
	}
}
