// Package timeline turns tasks, busy intervals and scheduling preferences into a conflict-free
// list of study sessions.
//
// The engine is deterministic. It never reads the wall clock; "now" is always passed in, and all
// calendar-day reasoning happens in now's location.
package timeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/interval"
	"github.com/muaviaUsmani/studyplan/internal/task"
)

// EmptyReason explains a run that produced no blocks
type EmptyReason string

const (
	EmptyNone               EmptyReason = ""
	EmptyNoTasks            EmptyReason = "no_tasks"
	EmptyNothingSchedulable EmptyReason = "nothing_schedulable"
	EmptyNoFreeTime         EmptyReason = "no_free_time"
)

// Unscheduled task reasons
const (
	ReasonOverdue        = "overdue"
	ReasonInvalidDueDate = "invalid_due_date"
)

// PartialTask is a task that could not be fully placed
type PartialTask struct {
	TaskID         string  `json:"task_id"`
	Title          string  `json:"title"`
	RemainingHours float64 `json:"remaining_hours"`
}

// UnscheduledTask is a task that received no sessions by rule
type UnscheduledTask struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Metadata reports the outcome of a run
type Metadata struct {
	TotalHours       float64           `json:"total_hours"`
	TasksScheduled   int               `json:"tasks_scheduled"`
	TasksPartial     []PartialTask     `json:"tasks_partial"`
	TasksUnscheduled []UnscheduledTask `json:"tasks_unscheduled"`
	Warnings         []string          `json:"warnings"`
	Stats            Stats             `json:"stats"`
	EmptyReason      EmptyReason       `json:"empty_reason,omitempty"`
}

// Result is the output of Generate
type Result struct {
	Blocks   []task.ScheduleBlock `json:"blocks"`
	Metadata Metadata             `json:"metadata"`
}

// Engine generates timelines for one set of preferences and policy
type Engine struct {
	prefs  Preferences
	policy Policy
}

// NewEngine validates prefs and policy. Zero policy fields take their defaults.
func NewEngine(prefs Preferences, policy Policy) (*Engine, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	policy = policy.withDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{prefs: prefs, policy: policy}, nil
}

// Preferences returns the engine's preferences
func (e *Engine) Preferences() Preferences {
	return e.prefs
}

// Policy returns the engine's policy with defaults applied
func (e *Engine) Policy() Policy {
	return e.policy
}

// Generate schedules tasks around busy as of now. The inputs are not modified.
func (e *Engine) Generate(tasks []task.Task, busy []task.BusyInterval, now time.Time) *Result {
	meta := Metadata{
		TasksPartial:     []PartialTask{},
		TasksUnscheduled: []UnscheduledTask{},
		Warnings:         []string{},
	}

	busyIntervals := make([]interval.Interval, 0, len(busy))
	dropped := 0
	for _, b := range busy {
		if !b.IsValid() {
			dropped++
			continue
		}
		busyIntervals = append(busyIntervals, b.Interval())
	}
	if dropped > 0 {
		meta.Warnings = append(meta.Warnings, fmt.Sprintf("Ignored %d busy interval(s) that do not end after they start", dropped))
	}

	schedulable := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsSchedulable() {
			schedulable = append(schedulable, t)
		}
	}
	if len(schedulable) == 0 {
		meta.EmptyReason = EmptyNoTasks
		meta.Warnings = append(meta.Warnings, "No tasks with due dates to schedule")
		return &Result{Blocks: []task.ScheduleBlock{}, Metadata: meta}
	}

	run := newRunState(now, busyIntervals)
	for _, ranked := range Prioritize(schedulable, now) {
		t := ranked.Task
		if ranked.DueErr != nil {
			meta.TasksUnscheduled = append(meta.TasksUnscheduled, UnscheduledTask{TaskID: t.ID, Title: t.Title, Reason: ReasonInvalidDueDate})
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("Task '%s' has an invalid due date %q", t.Title, t.DueDate))
			continue
		}

		daysUntilDue := daysBetween(run.today, ranked.Due.In(now.Location()))
		if daysUntilDue < 0 {
			meta.TasksUnscheduled = append(meta.TasksUnscheduled, UnscheduledTask{TaskID: t.ID, Title: t.Title, Reason: ReasonOverdue})
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("Task '%s' is overdue", t.Title))
			continue
		}

		out := e.planTask(run, t, daysUntilDue)
		if out.remaining > e.policy.CompletionSlackHours {
			remaining := round(out.remaining, 1)
			meta.TasksPartial = append(meta.TasksPartial, PartialTask{TaskID: t.ID, Title: t.Title, RemainingHours: remaining})
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("Could not fully schedule '%s' - need %.1f more hours", t.Title, remaining))
			continue
		}
		meta.TasksScheduled++
	}

	blocks := make([]task.ScheduleBlock, len(run.placed))
	copy(blocks, run.placed)
	sort.SliceStable(blocks, func(a, b int) bool {
		return blocks[a].Start.Before(blocks[b].Start)
	})

	for _, b := range blocks {
		meta.TotalHours += b.DurationHours
	}
	meta.TotalHours = round(meta.TotalHours, 2)
	meta.Stats = ComputeStats(blocks)

	// Tasks within the completion slack place no blocks; only partial tasks mean a full calendar
	if len(blocks) == 0 {
		if len(meta.TasksPartial) > 0 {
			meta.EmptyReason = EmptyNoFreeTime
			meta.Warnings = append(meta.Warnings, "No study blocks could be scheduled - calendar may be too busy")
		} else {
			meta.EmptyReason = EmptyNothingSchedulable
		}
	}

	return &Result{Blocks: blocks, Metadata: meta}
}

// Generate is a convenience wrapper that builds an engine with the default policy
func Generate(tasks []task.Task, busy []task.BusyInterval, prefs Preferences, now time.Time) (*Result, error) {
	engine, err := NewEngine(prefs, Policy{})
	if err != nil {
		return nil, err
	}
	return engine.Generate(tasks, busy, now), nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
