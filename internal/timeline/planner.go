package timeline

import (
	"math"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/interval"
	"github.com/muaviaUsmani/studyplan/internal/task"
)

// dayKeyLayout formats calendar dates used to key per-day load
const dayKeyLayout = "2006-01-02"

// runState is the mutable state of a single Generate call. Placed blocks are only appended.
type runState struct {
	now     time.Time
	today   time.Time
	busy    []interval.Interval
	placed  []task.ScheduleBlock
	dayLoad map[string]float64
}

func newRunState(now time.Time, busy []interval.Interval) *runState {
	return &runState{
		now:     now,
		today:   startOfDay(now),
		busy:    busy,
		dayLoad: make(map[string]float64),
	}
}

// day returns midnight of today + offset days in the run's location
func (r *runState) day(offset int) time.Time {
	y, m, d := r.today.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, r.today.Location())
}

// window returns the working window for the day at offset. Today's window never starts before now.
func (r *runState) window(prefs Preferences, offset int) interval.Interval {
	w := prefs.Window(r.day(offset))
	if offset == 0 {
		if start := ceilMinute(r.now); start.After(w.Start) {
			w.Start = start
		}
	}
	return w
}

func (r *runState) hoursUsed(day time.Time) float64 {
	return r.dayLoad[day.Format(dayKeyLayout)]
}

func (r *runState) place(b task.ScheduleBlock) {
	r.placed = append(r.placed, b)
	r.dayLoad[b.Start.Format(dayKeyLayout)] += b.DurationHours
}

// taskOutcome summarizes how much of a task was placed
type taskOutcome struct {
	blocks    int
	remaining float64
}

// planTask places sessions for one task into the run. daysUntilDue is in calendar days and never negative.
func (e *Engine) planTask(run *runState, t *task.Task, daysUntilDue int) taskOutcome {
	policy := e.policy
	optimal := policy.OptimalSessionHours(t.EffortHours)
	numSessions := policy.NumSessions(t.EffortHours, optimal)
	spacing := policy.SessionSpacing(daysUntilDue, numSessions)

	out := taskOutcome{remaining: t.EffortHours}

	// Spaced pass
	offset := 0
	for out.blocks < numSessions && out.remaining > policy.CompletionSlackHours && offset <= daysUntilDue {
		slot, ok := e.trySession(run, offset, optimal, out.remaining)
		if !ok {
			offset++
			continue
		}
		out.blocks++
		reason := buildReason(t, daysUntilDue-offset, out.blocks, numSessions, false)
		block := task.NewScheduleBlock(t, slot, out.blocks, numSessions, reason)
		run.place(block)
		out.remaining -= block.DurationHours
		offset += spacing
	}

	if policy.DisableBackfill {
		return out
	}

	// Catch-up pass over every day up to the deadline. Buffer days are last in this order,
	// so they only take work no earlier day had room for.
	for offset := 0; offset <= daysUntilDue && out.remaining > policy.CompletionSlackHours; offset++ {
		for out.remaining > policy.CompletionSlackHours {
			slot, ok := e.trySession(run, offset, optimal, out.remaining)
			if !ok {
				break
			}
			out.blocks++
			reason := buildReason(t, daysUntilDue-offset, out.blocks, numSessions, true)
			block := task.NewScheduleBlock(t, slot, out.blocks, numSessions, reason)
			run.place(block)
			out.remaining -= block.DurationHours
		}
	}
	return out
}

// trySession looks for room for one session of up to optimal hours on the day at offset
func (e *Engine) trySession(run *runState, offset int, optimal, remaining float64) (interval.Interval, bool) {
	prefs := e.prefs
	minBlock := prefs.MinBlock()

	headroom := prefs.MaxHoursPerDay - run.hoursUsed(run.day(offset))
	if hoursToDuration(headroom) < minBlock {
		return interval.Interval{}, false
	}

	duration := hoursToDuration(math.Min(optimal, math.Min(remaining, headroom)))
	if duration < minBlock {
		return interval.Interval{}, false
	}

	window := run.window(prefs, offset)
	if window.IsEmpty() {
		return interval.Interval{}, false
	}
	return FindSlot(window, duration, run.busy, run.placed, prefs.Break())
}

// hoursToDuration converts hours to a whole number of minutes, rounding down
func hoursToDuration(hours float64) time.Duration {
	if hours <= 0 {
		return 0
	}
	return time.Duration(math.Floor(hours*60+1e-6)) * time.Minute
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func ceilMinute(t time.Time) time.Time {
	truncated := t.Truncate(time.Minute)
	if truncated.Before(t) {
		return truncated.Add(time.Minute)
	}
	return truncated
}

// daysBetween counts calendar days from a to b, both read in their own location
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(math.Round(to.Sub(from).Hours() / 24))
}
