// Package client provides a Go API for generating and reading study plans stored in Redis.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/service"
	"github.com/muaviaUsmani/studyplan/internal/task"
	"github.com/muaviaUsmani/studyplan/internal/timeline"
)

// DefaultPlanTTL is how long plans written by the client are kept
const DefaultPlanTTL = 30 * 24 * time.Hour

// Client generates plans and reads them back from a Redis plan store
type Client struct {
	store *plan.RedisStore
	svc   *service.Service
}

// NewClient creates a new plan client connected to Redis
func NewClient(redisURL string) (*Client, error) {
	client, err := plan.ConnectRedis(context.Background(), redisURL, 1, &logger.NoOpLogger{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := plan.NewRedisStore(client, DefaultPlanTTL)
	svc, err := service.New(store, timeline.DefaultPreferences(), timeline.Policy{},
		service.WithLogger(&logger.NoOpLogger{}),
		service.WithMetrics(metrics.NewCollector()),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Client{store: store, svc: svc}, nil
}

// GeneratePlan generates and stores a new plan version for in.UserID.
// A zero now means the current time.
func (c *Client) GeneratePlan(ctx context.Context, in *task.Input, now time.Time) (*plan.Plan, error) {
	in.AssignIDs()
	req := service.RequestFromInput(in, metrics.TriggerAPI)
	req.Now = now

	p, err := c.svc.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}
	return p, nil
}

// GetPlan retrieves a plan by its ID
func (c *Client) GetPlan(ctx context.Context, planID string) (*plan.Plan, error) {
	return c.svc.GetPlan(ctx, planID)
}

// LatestPlan retrieves the most recent plan for a user
func (c *Client) LatestPlan(ctx context.Context, userID string) (*plan.Plan, error) {
	return c.svc.Latest(ctx, userID)
}

// SendFeedback applies feedback to the user's latest plan and returns the new version
func (c *Client) SendFeedback(ctx context.Context, userID string, fb service.Feedback) (*plan.Plan, error) {
	return c.svc.ApplyFeedback(ctx, userID, fb)
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
