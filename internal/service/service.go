// Package service generates, stores and revises study plans. It is the only layer that reads the
// wall clock; the timeline engine always receives "now" from here.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/task"
	"github.com/muaviaUsmani/studyplan/internal/timeline"
)

var (
	// ErrNoPlan is returned when a user or plan ID has no stored plan
	ErrNoPlan = errors.New("service: no plan found")
	// ErrInvalidRequest is returned for requests missing required fields
	ErrInvalidRequest = errors.New("service: invalid request")
)

// GenerateRequest is the input to Generate
type GenerateRequest struct {
	UserID        string
	Tasks         []task.Task
	BusyIntervals []task.BusyInterval
	// Preferences is a JSON overlay on the service defaults. Empty means defaults.
	Preferences json.RawMessage
	// Now overrides the service clock when set
	Now     time.Time
	Trigger metrics.Trigger
}

// RequestFromInput builds a GenerateRequest from a decoded input document
func RequestFromInput(in *task.Input, trigger metrics.Trigger) GenerateRequest {
	return GenerateRequest{
		UserID:        in.UserID,
		Tasks:         in.Tasks,
		BusyIntervals: in.BusyIntervals,
		Preferences:   in.Preferences,
		Trigger:       trigger,
	}
}

// Service coordinates the engine with a plan store
type Service struct {
	store    plan.Store
	defaults timeline.Preferences
	policy   timeline.Policy
	log      logger.Logger
	metrics  *metrics.Collector
	now      func() time.Time
	loc      *time.Location
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics sets the metrics collector
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the location calendar days are computed in. Defaults to the clock's location.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// New creates a service. defaults and policy are validated up front.
func New(store plan.Store, defaults timeline.Preferences, policy timeline.Policy, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidRequest)
	}
	if _, err := timeline.NewEngine(defaults, policy); err != nil {
		return nil, err
	}

	s := &Service{
		store:    store,
		defaults: defaults,
		policy:   policy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
	}
	s.log = s.log.WithComponent(logger.ComponentService)
	return s, nil
}

// Defaults returns the preferences used when a request does not override them
func (s *Service) Defaults() timeline.Preferences {
	return s.defaults
}

// Now returns the service clock's current time in the service location
func (s *Service) Now() time.Time {
	now := s.now()
	if s.loc != nil {
		now = now.In(s.loc)
	}
	return now
}

// Generate runs the engine, stores the result as the user's next plan version and returns it
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*plan.Plan, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	prefs, err := timeline.DecodePreferences(req.Preferences, s.defaults)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, req.UserID, plan.Inputs{
		Tasks:         req.Tasks,
		BusyIntervals: req.BusyIntervals,
		Preferences:   prefs,
	}, req.Now, req.Trigger)
}

// Replan regenerates the user's latest plan from its stored inputs as of the current time
func (s *Service) Replan(ctx context.Context, userID string, trigger metrics.Trigger) (*plan.Plan, error) {
	latest, err := s.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, userID, latest.Inputs, time.Time{}, trigger)
}

// GetPlan returns a stored plan
func (s *Service) GetPlan(ctx context.Context, planID string) (*plan.Plan, error) {
	p, err := s.store.Get(ctx, planID)
	if err != nil {
		s.metrics.RecordStoreError()
		return nil, fmt.Errorf("failed to load plan %s: %w", planID, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: plan %s", ErrNoPlan, planID)
	}
	return p, nil
}

// Latest returns the user's newest plan
func (s *Service) Latest(ctx context.Context, userID string) (*plan.Plan, error) {
	p, err := s.store.Latest(ctx, userID)
	if err != nil {
		s.metrics.RecordStoreError()
		return nil, fmt.Errorf("failed to load latest plan for %s: %w", userID, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNoPlan, userID)
	}
	return p, nil
}

func (s *Service) generate(ctx context.Context, userID string, inputs plan.Inputs, now time.Time, trigger metrics.Trigger) (*plan.Plan, error) {
	start := time.Now()
	ctx = logger.ContextWithUser(ctx, userID)

	engine, err := timeline.NewEngine(inputs.Preferences, s.policy)
	if err != nil {
		return nil, err
	}

	if now.IsZero() {
		now = s.Now()
	} else if s.loc != nil {
		now = now.In(s.loc)
	}
	result := engine.Generate(inputs.Tasks, inputs.BusyIntervals, now)

	previous, err := s.store.Latest(ctx, userID)
	if err != nil {
		s.metrics.RecordStoreError()
		return nil, fmt.Errorf("failed to load previous plan: %w", err)
	}
	version := 1
	if previous != nil {
		version = previous.Version + 1
	}

	p := plan.New(userID, version, now, result, inputs)
	if err := s.store.Save(ctx, p); err != nil {
		s.metrics.RecordStoreError()
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}

	unscheduled := make(map[string]int)
	for _, u := range result.Metadata.TasksUnscheduled {
		unscheduled[u.Reason]++
	}
	s.metrics.RecordGeneration(trigger, len(result.Blocks), len(result.Metadata.TasksPartial), unscheduled, time.Since(start))

	ctx = logger.ContextWithPlan(ctx, p.ID)
	s.log.InfoContext(ctx, "Plan generated",
		"version", version,
		"trigger", string(trigger),
		"blocks", len(result.Blocks),
		"total_hours", result.Metadata.TotalHours,
		"partial", len(result.Metadata.TasksPartial),
		"unscheduled", len(result.Metadata.TasksUnscheduled),
		"duration", time.Since(start))
	for _, w := range result.Metadata.Warnings {
		s.log.WarnContext(ctx, "Plan warning", "warning", w)
	}
	return p, nil
}

// DailyPlan is today's slice of the latest plan plus task progress
type DailyPlan struct {
	UserID          string               `json:"user_id"`
	PlanID          string               `json:"plan_id"`
	Date            string               `json:"date"`
	Weekday         string               `json:"weekday"`
	Blocks          []task.ScheduleBlock `json:"blocks"`
	TotalHours      float64              `json:"total_hours"`
	TotalTasks      int                  `json:"total_tasks"`
	CompletedTasks  int                  `json:"completed_tasks"`
	ProgressPercent float64              `json:"progress_percent"`
}

// Today returns the blocks of the user's latest plan that fall on the current calendar day
func (s *Service) Today(ctx context.Context, userID string) (*DailyPlan, error) {
	p, err := s.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	blocks := timeline.BlocksOn(p.Blocks, now)
	if blocks == nil {
		blocks = []task.ScheduleBlock{}
	}

	daily := &DailyPlan{
		UserID:     userID,
		PlanID:     p.ID,
		Date:       now.Format("2006-01-02"),
		Weekday:    now.Weekday().String(),
		Blocks:     blocks,
		TotalTasks: len(p.Inputs.Tasks),
	}
	for _, b := range blocks {
		daily.TotalHours += b.DurationHours
	}
	daily.TotalHours = math.Round(daily.TotalHours*100) / 100

	for _, t := range p.Inputs.Tasks {
		if t.Completed {
			daily.CompletedTasks++
		}
	}
	if daily.TotalTasks > 0 {
		pct := float64(daily.CompletedTasks) / float64(daily.TotalTasks) * 100
		daily.ProgressPercent = math.Round(pct*10) / 10
	}
	return daily, nil
}
