package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/task"
)

var (
	// ErrUnknownAction is returned for feedback actions the service does not handle
	ErrUnknownAction = errors.New("service: unknown feedback action")
	// ErrInvalidFeedback is returned when a feedback action is missing the fields it needs
	ErrInvalidFeedback = errors.New("service: invalid feedback")
	// ErrUnknownTask is returned when feedback names a task that is not in the plan
	ErrUnknownTask = errors.New("service: unknown task")
)

// FeedbackAction is a user adjustment to the latest plan
type FeedbackAction string

const (
	// ActionBlockTime adds a busy interval
	ActionBlockTime FeedbackAction = "block_time"
	// ActionMarkComplete drops a task from scheduling
	ActionMarkComplete FeedbackAction = "mark_complete"
	// ActionAdjustEffort replaces a task's effort estimate
	ActionAdjustEffort FeedbackAction = "adjust_effort"
	// ActionReschedule moves a task's due date, or just re-plans from now when no date is given
	ActionReschedule FeedbackAction = "reschedule"
)

// BlockedTimeTitle is the title given to busy intervals added by block_time feedback
const BlockedTimeTitle = "Blocked by user"

// Feedback describes one adjustment
type Feedback struct {
	Action         FeedbackAction `json:"action"`
	TaskID         string         `json:"task_id,omitempty"`
	BlockedStart   time.Time      `json:"blocked_start,omitempty"`
	BlockedEnd     time.Time      `json:"blocked_end,omitempty"`
	NewEffortHours float64        `json:"new_effort_hours,omitempty"`
	NewDueDate     string         `json:"new_due_date,omitempty"`
}

// ApplyFeedback applies fb to the inputs of the user's latest plan and generates a new version
func (s *Service) ApplyFeedback(ctx context.Context, userID string, fb Feedback) (*plan.Plan, error) {
	latest, err := s.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}

	inputs, err := s.applyFeedback(latest.Inputs, fb)
	if err != nil {
		return nil, err
	}

	p, err := s.generate(ctx, userID, inputs, time.Time{}, metrics.TriggerFeedback)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordFeedback(string(fb.Action))
	return p, nil
}

// applyFeedback returns a modified copy of inputs
func (s *Service) applyFeedback(inputs plan.Inputs, fb Feedback) (plan.Inputs, error) {
	out := plan.Inputs{
		Tasks:         append([]task.Task(nil), inputs.Tasks...),
		BusyIntervals: append([]task.BusyInterval(nil), inputs.BusyIntervals...),
		Preferences:   inputs.Preferences,
	}

	switch fb.Action {
	case ActionBlockTime:
		busy := task.BusyInterval{Title: BlockedTimeTitle, Start: fb.BlockedStart, End: fb.BlockedEnd}
		if fb.BlockedStart.IsZero() || !busy.IsValid() {
			return plan.Inputs{}, fmt.Errorf("%w: block_time needs blocked_start before blocked_end", ErrInvalidFeedback)
		}
		out.BusyIntervals = append(out.BusyIntervals, busy)

	case ActionMarkComplete:
		t, err := findTask(out.Tasks, fb.TaskID)
		if err != nil {
			return plan.Inputs{}, err
		}
		t.Completed = true

	case ActionAdjustEffort:
		if fb.NewEffortHours <= 0 {
			return plan.Inputs{}, fmt.Errorf("%w: adjust_effort needs a positive new_effort_hours", ErrInvalidFeedback)
		}
		t, err := findTask(out.Tasks, fb.TaskID)
		if err != nil {
			return plan.Inputs{}, err
		}
		t.EffortHours = fb.NewEffortHours

	case ActionReschedule:
		if fb.NewDueDate == "" {
			break
		}
		if _, err := task.ParseDueDate(fb.NewDueDate, s.Now().Location()); err != nil {
			return plan.Inputs{}, fmt.Errorf("%w: %v", ErrInvalidFeedback, err)
		}
		t, err := findTask(out.Tasks, fb.TaskID)
		if err != nil {
			return plan.Inputs{}, err
		}
		t.DueDate = fb.NewDueDate

	default:
		return plan.Inputs{}, fmt.Errorf("%w: %q", ErrUnknownAction, fb.Action)
	}
	return out, nil
}

func findTask(tasks []task.Task, id string) (*task.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: task_id is required", ErrInvalidFeedback)
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
}
