package timeline

import (
	"testing"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/interval"
	"github.com/muaviaUsmani/studyplan/internal/task"
)

func TestFindSlot(t *testing.T) {
	window := interval.New(at(2, 9, 0), at(2, 17, 0))
	busy := []interval.Interval{
		interval.New(at(2, 9, 0), at(2, 10, 0)),
		interval.New(at(2, 11, 0), at(2, 13, 0)),
		interval.New(at(1, 20, 0), at(2, 9, 30)), // spills in from the previous evening
	}

	tests := []struct {
		name     string
		duration time.Duration
		placed   []task.ScheduleBlock
		want     time.Time
		ok       bool
	}{
		{"first gap fits", time.Hour, nil, at(2, 10, 0), true},
		{"first gap too short", 90 * time.Minute, nil, at(2, 13, 0), true},
		{"placed block pushes past its break", time.Hour,
			[]task.ScheduleBlock{{Start: at(2, 10, 0), End: at(2, 10, 30)}}, at(2, 13, 0), true},
		{"placed block leaves room after break", 30 * time.Minute,
			[]task.ScheduleBlock{{Start: at(2, 10, 0), End: at(2, 10, 15)}}, at(2, 10, 30), true},
		{"too long for any gap", 5 * time.Hour, nil, time.Time{}, false},
		{"exactly fits the last gap", 4 * time.Hour, nil, at(2, 13, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, ok := FindSlot(window, tt.duration, busy, tt.placed, 15*time.Minute)
			if ok != tt.ok {
				t.Fatalf("FindSlot() ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if !slot.Start.Equal(tt.want) {
				t.Errorf("FindSlot() start = %v, want %v", slot.Start, tt.want)
			}
			if slot.Duration() != tt.duration {
				t.Errorf("FindSlot() duration = %v, want %v", slot.Duration(), tt.duration)
			}
			if !window.Contains(slot) {
				t.Errorf("slot %v-%v escapes the window", slot.Start, slot.End)
			}
		})
	}
}
