package timeline

import (
	"testing"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/task"
)

func TestGroupByDay(t *testing.T) {
	blocks := []task.ScheduleBlock{
		{TaskTitle: "B", Start: at(3, 9, 0), End: at(3, 10, 0), DurationHours: 1},
		{TaskTitle: "A", Start: at(2, 14, 0), End: at(2, 16, 0), DurationHours: 2},
		{TaskTitle: "C", Start: at(2, 9, 0), End: at(2, 9, 30), DurationHours: 0.5},
	}

	views := GroupByDay(blocks, time.UTC)
	if len(views) != 2 {
		t.Fatalf("expected 2 days, got %d", len(views))
	}
	if views[0].Date != "2026-03-02" || views[0].Weekday != "Monday" {
		t.Errorf("unexpected first day %+v", views[0])
	}
	if views[0].TotalHours != 2.5 || len(views[0].Blocks) != 2 || views[0].Blocks[0].TaskTitle != "C" {
		t.Errorf("unexpected first day blocks %+v", views[0])
	}
	if views[1].Date != "2026-03-03" || views[1].TotalHours != 1 {
		t.Errorf("unexpected second day %+v", views[1])
	}

	today := BlocksOn(blocks, at(2, 0, 0))
	if len(today) != 2 {
		t.Errorf("expected 2 blocks on 2 March, got %d", len(today))
	}
}
