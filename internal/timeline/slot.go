package timeline

import (
	"time"

	"github.com/muaviaUsmani/studyplan/internal/interval"
	"github.com/muaviaUsmani/studyplan/internal/task"
)

// FindSlot returns the earliest interval of exactly duration inside window that overlaps
// neither a busy interval nor a placed block extended by breakDuration.
// It returns false when nothing fits.
func FindSlot(window interval.Interval, duration time.Duration, busy []interval.Interval, placed []task.ScheduleBlock, breakDuration time.Duration) (interval.Interval, bool) {
	if duration <= 0 || window.Duration() < duration {
		return interval.Interval{}, false
	}

	occupied := make([]interval.Interval, 0, len(busy)+len(placed))
	occupied = append(occupied, busy...)
	for _, b := range placed {
		occupied = append(occupied, interval.New(b.Start, b.End.Add(breakDuration)))
	}

	for _, gap := range interval.Gaps(window, occupied) {
		if gap.Duration() >= duration {
			return interval.New(gap.Start, gap.Start.Add(duration)), true
		}
	}
	return interval.Interval{}, false
}
