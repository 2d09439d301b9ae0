// Package plan provides storage for generated study plans.
package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/muaviaUsmani/studyplan/internal/task"
	"github.com/muaviaUsmani/studyplan/internal/timeline"
)

// ErrInvalidPlan is returned when a plan is missing its identity
var ErrInvalidPlan = errors.New("plan: invalid plan")

// Inputs are the arguments a plan was generated from. They are kept so feedback can re-run the engine.
type Inputs struct {
	Tasks         []task.Task          `json:"tasks"`
	BusyIntervals []task.BusyInterval  `json:"busy_intervals"`
	Preferences   timeline.Preferences `json:"preferences"`
}

// Plan is a stored timeline for one user
type Plan struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Version     int                  `json:"version"`
	Blocks      []task.ScheduleBlock `json:"blocks"`
	Metadata    timeline.Metadata    `json:"metadata"`
	Inputs      Inputs               `json:"inputs"`
}

// New creates a plan from an engine result with a generated ID
func New(userID string, version int, generatedAt time.Time, result *timeline.Result, inputs Inputs) *Plan {
	return &Plan{
		ID:          uuid.New().String(),
		UserID:      userID,
		GeneratedAt: generatedAt,
		Version:     version,
		Blocks:      result.Blocks,
		Metadata:    result.Metadata,
		Inputs:      inputs,
	}
}

// Validate checks the fields every store relies on
func (p *Plan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrInvalidPlan)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPlan)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidPlan)
	}
	return nil
}

// Store defines the interface for saving and loading plans
type Store interface {
	// Save stores a plan, replacing any plan with the same ID
	Save(ctx context.Context, p *Plan) error

	// Get retrieves a plan by ID
	// Returns nil if the plan doesn't exist (never stored or expired)
	Get(ctx context.Context, planID string) (*Plan, error)

	// Latest returns the most recently generated plan for a user, or nil if there is none
	Latest(ctx context.Context, userID string) (*Plan, error)

	// List returns up to limit plans for a user, newest first. A limit <= 0 returns all plans.
	List(ctx context.Context, userID string, limit int) ([]*Plan, error)

	// Delete removes a plan
	// Does not error if the plan doesn't exist
	Delete(ctx context.Context, planID string) error

	// Close releases any connections used by the store
	Close() error
}
