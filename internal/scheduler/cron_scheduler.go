// Package scheduler re-plans users' timelines on cron schedules. Several scheduler processes may
// share one Redis: a per-schedule lock makes sure each due run happens once, and run state is kept in
// a Redis hash so every instance agrees on when a schedule last ran.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/service"
	"github.com/muaviaUsmani/studyplan/internal/worker"
)

// Replanner regenerates a user's latest plan
type Replanner interface {
	Replan(ctx context.Context, userID string, trigger metrics.Trigger) (*plan.Plan, error)
}

// Submitter runs jobs asynchronously. *worker.Pool implements it.
type Submitter interface {
	Submit(ctx context.Context, j worker.Job) error
}

// CronScheduler checks the registry on every tick and re-plans the schedules that are due
type CronScheduler struct {
	registry  *Registry
	replanner Replanner
	pool      Submitter
	client    redis.Cmdable
	interval  time.Duration
	lockTTL   time.Duration
	log       logger.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewCronScheduler creates a new cron scheduler. With a nil pool, re-plans run inline on the tick.
func NewCronScheduler(registry *Registry, replanner Replanner, pool Submitter, client redis.Cmdable, interval time.Duration) *CronScheduler {
	return &CronScheduler{
		registry:  registry,
		replanner: replanner,
		pool:      pool,
		client:    client,
		interval:  interval,
		lockTTL:   2 * time.Minute,
		log:       logger.Default().WithComponent(logger.ComponentScheduler),
		metrics:   metrics.Default(),
		now:       time.Now,
	}
}

// SetLockTTL sets the distributed lock TTL
func (cs *CronScheduler) SetLockTTL(ttl time.Duration) {
	cs.lockTTL = ttl
}

// SetLogger replaces the logger
func (cs *CronScheduler) SetLogger(log logger.Logger) {
	cs.log = log.WithComponent(logger.ComponentScheduler)
}

// SetMetrics replaces the metrics collector
func (cs *CronScheduler) SetMetrics(m *metrics.Collector) {
	cs.metrics = m
}

// Start runs the scheduler loop until ctx is cancelled
func (cs *CronScheduler) Start(ctx context.Context) {
	cs.log.Info("Cron scheduler started",
		"interval", cs.interval,
		"schedules", cs.registry.Count())

	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cs.log.Info("Cron scheduler stopping")
			return
		case <-ticker.C:
			cs.tick(ctx)
		}
	}
}

func (cs *CronScheduler) tick(ctx context.Context) {
	now := cs.now()
	for _, schedule := range cs.registry.List() {
		if !schedule.Enabled {
			continue
		}
		if cs.isDue(ctx, schedule, now) {
			cs.dispatch(ctx, schedule, now)
		}
	}
}

// isDue reports whether the schedule's next run after its last run has arrived.
// A schedule that never ran is due on the first tick.
func (cs *CronScheduler) isDue(ctx context.Context, schedule *Schedule, now time.Time) bool {
	state, err := cs.GetState(ctx, schedule.ID)
	if err != nil {
		cs.log.Error("Failed to get schedule state", "schedule_id", schedule.ID, "error", err)
		return false
	}
	if state.LastRun.IsZero() {
		return true
	}

	nextRun, err := cs.registry.NextRun(schedule, state.LastRun)
	if err != nil {
		cs.log.Error("Failed to calculate next run", "schedule_id", schedule.ID, "error", err)
		return false
	}
	// 1s of slack for tick jitter
	return !now.Before(nextRun.Add(-time.Second))
}

// dispatch takes the schedule's lock and runs the re-plan, on the pool when there is one.
// The lock is held until the run finishes.
func (cs *CronScheduler) dispatch(ctx context.Context, schedule *Schedule, now time.Time) {
	lock, err := AcquireLock(ctx, cs.client, lockKey(schedule.ID), cs.lockTTL)
	if err != nil {
		cs.log.Error("Failed to acquire schedule lock", "schedule_id", schedule.ID, "error", err)
		return
	}
	if lock == nil {
		cs.log.Debug("Schedule already locked by another instance", "schedule_id", schedule.ID)
		return
	}

	if cs.pool == nil {
		cs.run(ctx, schedule, lock, now)
		return
	}

	prev, err := cs.GetState(ctx, schedule.ID)
	if err != nil {
		cs.log.Error("Failed to get schedule state", "schedule_id", schedule.ID, "error", err)
		cs.releaseLock(ctx, schedule, lock)
		return
	}

	j := worker.Job{
		ID:     fmt.Sprintf("%s@%d", schedule.ID, now.Unix()),
		Name:   "replan",
		UserID: schedule.UserID,
		Run: func(jobCtx context.Context) error {
			return cs.run(jobCtx, schedule, lock, now)
		},
		Discard: func() {
			cs.discard(context.WithoutCancel(ctx), schedule, lock, prev)
		},
	}
	if err := cs.pool.Submit(ctx, j); err != nil {
		cs.log.Error("Failed to submit re-plan", "schedule_id", schedule.ID, "error", err)
		cs.releaseLock(ctx, schedule, lock)
		return
	}

	// Record the run now so later ticks do not dispatch it again while it waits in the queue
	if err := cs.updateState(ctx, &ScheduleState{ID: schedule.ID, LastRun: now, NextRun: cs.nextRun(schedule, now)}); err != nil {
		cs.log.Warn("Failed to update schedule state", "schedule_id", schedule.ID, "error", err)
	}
}

// run performs one re-plan and records its outcome
func (cs *CronScheduler) run(ctx context.Context, schedule *Schedule, lock *Lock, scheduledAt time.Time) error {
	defer cs.releaseLock(context.WithoutCancel(ctx), schedule, lock)

	// A queued run may have outlived its lock
	if err := lock.Extend(ctx, cs.lockTTL); err != nil {
		cs.metrics.RecordReplan(metrics.ReplanSkipped)
		cs.log.Warn("Lost schedule lock before running", "schedule_id", schedule.ID, "error", err)
		return nil
	}

	state := &ScheduleState{
		ID:      schedule.ID,
		LastRun: scheduledAt,
		NextRun: cs.nextRun(schedule, scheduledAt),
	}

	p, err := cs.replanner.Replan(ctx, schedule.UserID, metrics.TriggerSchedule)
	switch {
	case errors.Is(err, service.ErrNoPlan):
		// Nothing to re-plan until the user generates a first plan
		cs.metrics.RecordReplan(metrics.ReplanSkipped)
		cs.log.Info("No plan to re-plan yet", "schedule_id", schedule.ID, "user_id", schedule.UserID)
		state.LastError = err.Error()
	case err != nil:
		cs.metrics.RecordReplan(metrics.ReplanFailure)
		cs.log.Error("Scheduled re-plan failed", "schedule_id", schedule.ID, "user_id", schedule.UserID, "error", err)
		state.LastError = err.Error()
	default:
		cs.metrics.RecordReplan(metrics.ReplanSuccess)
		state.LastSuccess = cs.now()
		cs.log.Info("Scheduled re-plan completed",
			"schedule_id", schedule.ID,
			"user_id", schedule.UserID,
			"plan_id", p.ID,
			"version", p.Version,
			"description", schedule.Description)
	}

	if updateErr := cs.updateState(context.WithoutCancel(ctx), state); updateErr != nil {
		cs.log.Warn("Failed to update schedule state", "schedule_id", schedule.ID, "error", updateErr)
	}
	if err != nil && !errors.Is(err, service.ErrNoPlan) {
		return err
	}
	return nil
}

// discard undoes a dispatch whose job never ran, so the schedule is due again on the next tick.
// State is left alone when the lock has already passed to another instance.
func (cs *CronScheduler) discard(ctx context.Context, schedule *Schedule, lock *Lock, prev *ScheduleState) {
	cs.metrics.RecordReplan(metrics.ReplanSkipped)
	if err := lock.Extend(ctx, cs.lockTTL); err != nil {
		cs.log.Warn("Queued re-plan discarded after its lock expired", "schedule_id", schedule.ID, "error", err)
		return
	}
	defer cs.releaseLock(ctx, schedule, lock)

	if err := cs.restoreDispatch(ctx, prev); err != nil {
		cs.log.Error("Failed to restore schedule state", "schedule_id", schedule.ID, "error", err)
		return
	}
	cs.log.Warn("Queued re-plan discarded", "schedule_id", schedule.ID, "user_id", schedule.UserID)
}

// restoreDispatch puts back the run times recorded before a dispatch
func (cs *CronScheduler) restoreDispatch(ctx context.Context, prev *ScheduleState) error {
	key := stateKey(prev.ID)
	pipe := cs.client.TxPipeline()
	for field, value := range map[string]time.Time{"last_run": prev.LastRun, "next_run": prev.NextRun} {
		if value.IsZero() {
			pipe.HDel(ctx, key, field)
		} else {
			pipe.HSet(ctx, key, field, value.Format(time.RFC3339))
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (cs *CronScheduler) releaseLock(ctx context.Context, schedule *Schedule, lock *Lock) {
	if err := lock.Release(ctx); err != nil {
		cs.log.Error("Failed to release schedule lock", "schedule_id", schedule.ID, "error", err)
	}
}

func (cs *CronScheduler) nextRun(schedule *Schedule, after time.Time) time.Time {
	next, err := cs.registry.NextRun(schedule, after)
	if err != nil {
		cs.log.Error("Failed to calculate next run time", "schedule_id", schedule.ID, "error", err)
		return time.Time{}
	}
	return next
}

func stateKey(scheduleID string) string {
	return "studyplan:schedules:" + scheduleID
}

func lockKey(scheduleID string) string {
	return "studyplan:schedule_lock:" + scheduleID
}

// GetState returns the stored state of a schedule. A schedule that never ran has a zero LastRun.
func (cs *CronScheduler) GetState(ctx context.Context, scheduleID string) (*ScheduleState, error) {
	result, err := cs.client.HGetAll(ctx, stateKey(scheduleID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule state: %w", err)
	}

	state := &ScheduleState{ID: scheduleID, LastError: result["last_error"]}
	state.LastRun = parseStateTime(result["last_run"])
	state.NextRun = parseStateTime(result["next_run"])
	state.LastSuccess = parseStateTime(result["last_success"])
	if count, err := strconv.ParseInt(result["run_count"], 10, 64); err == nil {
		state.RunCount = count
	}
	return state, nil
}

func parseStateTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// updateState writes run state in one transaction. A state with LastSuccess set counts as a
// completed run; a state with neither LastSuccess nor LastError only records a dispatch.
func (cs *CronScheduler) updateState(ctx context.Context, state *ScheduleState) error {
	key := stateKey(state.ID)
	fields := map[string]interface{}{
		"last_run": state.LastRun.Format(time.RFC3339),
	}
	if !state.NextRun.IsZero() {
		fields["next_run"] = state.NextRun.Format(time.RFC3339)
	}
	if !state.LastSuccess.IsZero() {
		fields["last_success"] = state.LastSuccess.Format(time.RFC3339)
	}
	if state.LastError != "" {
		fields["last_error"] = state.LastError
	}

	pipe := cs.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if !state.LastSuccess.IsZero() {
		pipe.HDel(ctx, key, "last_error")
		pipe.HIncrBy(ctx, key, "run_count", 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}
