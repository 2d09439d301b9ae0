// Package task defines the records exchanged with the timeline engine: tasks, busy intervals and
// the schedule blocks produced for them.
package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/muaviaUsmani/studyplan/internal/interval"
)

// TaskType categorizes an academic task
type TaskType string

const (
	TypeAssignment TaskType = "assignment"
	TypeExam       TaskType = "exam"
	TypeProject    TaskType = "project"
	TypeQuiz       TaskType = "quiz"
	TypeReading    TaskType = "reading"
	TypeOther      TaskType = "other"
)

// DefaultWeight is the importance assumed for tasks without a weight
const DefaultWeight = 10.0

// Task is a unit of academic work with an effort estimate
type Task struct {
	// ID is the unique identifier for the task
	ID string `json:"id"`
	// Title is shown in schedule blocks and warnings
	Title string `json:"title"`
	// DueDate is an ISO-8601 date ("2026-03-14") or RFC 3339 timestamp. Empty means no due date.
	DueDate string `json:"due_date,omitempty"`
	// Type is the kind of task (exam, assignment, ...)
	Type TaskType `json:"task_type,omitempty"`
	// EffortHours is the estimated number of study hours needed
	EffortHours float64 `json:"effort_hours"`
	// Weight is the share of the final grade (0-100), nil when unknown
	Weight *float64 `json:"weight,omitempty"`
	// Completed tasks are never scheduled
	Completed bool `json:"completed"`
}

// NewTask creates a task with a generated ID
func NewTask(title, dueDate string, effortHours float64) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Title:       title,
		DueDate:     dueDate,
		Type:        TypeOther,
		EffortHours: effortHours,
	}
}

// Key returns the identifier used to track the task, falling back to the title
func (t *Task) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Title
}

// EffectiveWeight returns the weight, or DefaultWeight when absent
func (t *Task) EffectiveWeight() float64 {
	if t.Weight == nil {
		return DefaultWeight
	}
	return *t.Weight
}

// IsSchedulable reports whether the task is eligible for scheduling: not completed,
// has a due date and a positive effort estimate. The due date is not parsed here.
func (t *Task) IsSchedulable() bool {
	return !t.Completed && strings.TrimSpace(t.DueDate) != "" && t.EffortHours > 0
}

// WithWeight sets the task weight and returns the task
func (t *Task) WithWeight(weight float64) *Task {
	t.Weight = &weight
	return t
}

// BusyInterval is calendar time unavailable for study
type BusyInterval struct {
	Title string    `json:"title,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsValid reports whether the interval ends after it starts
func (b BusyInterval) IsValid() bool {
	return b.End.After(b.Start)
}

// Interval converts the busy interval to an interval.Interval
func (b BusyInterval) Interval() interval.Interval {
	return interval.New(b.Start, b.End)
}

// ScheduleBlock is one placed study session
type ScheduleBlock struct {
	TaskID        string    `json:"task_id,omitempty"`
	TaskTitle     string    `json:"task_title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DurationHours float64   `json:"duration_hours"`
	Reason        string    `json:"reason,omitempty"`
	Session       int       `json:"session"`
	TotalSessions int       `json:"total_sessions"`
}

// NewScheduleBlock creates a block for t spanning slot. DurationHours is derived from the slot.
func NewScheduleBlock(t *Task, slot interval.Interval, session, total int, reason string) ScheduleBlock {
	return ScheduleBlock{
		TaskID:        t.ID,
		TaskTitle:     t.Title,
		Start:         slot.Start,
		End:           slot.End,
		DurationHours: slot.Hours(),
		Reason:        reason,
		Session:       session,
		TotalSessions: total,
	}
}

// Interval returns the block's time span
func (b ScheduleBlock) Interval() interval.Interval {
	return interval.New(b.Start, b.End)
}
