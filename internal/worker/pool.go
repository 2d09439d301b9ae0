// Package worker runs re-plan jobs on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	perrors "github.com/muaviaUsmani/studyplan/internal/errors"
	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
)

// ErrPoolStopped is returned by Submit after Stop
var ErrPoolStopped = errors.New("worker pool stopped")

// Job is one unit of work
type Job struct {
	ID     string
	Name   string
	UserID string
	Run    func(ctx context.Context) error
	// Discard, when set, is called instead of Run if the pool stops before the job starts
	Discard func()
}

// Pool runs submitted jobs with bounded concurrency and a per-job timeout
type Pool struct {
	concurrency   int
	jobTimeout    time.Duration
	jobs          chan Job
	stopChan      chan struct{}
	stopOnce      sync.Once
	submitMu      sync.RWMutex
	wg            sync.WaitGroup
	activeWorkers atomic.Int64
	log           logger.Logger
	metrics       *metrics.Collector
}

// NewPool creates a new worker pool. queueSize bounds the jobs waiting for a worker.
func NewPool(concurrency int, jobTimeout time.Duration, queueSize int, log logger.Logger, m *metrics.Collector) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = logger.Default()
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Pool{
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		jobs:        make(chan Job, queueSize),
		stopChan:    make(chan struct{}),
		log:         log.WithComponent(logger.ComponentWorker),
		metrics:     m,
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("Starting worker pool", "workers", p.concurrency)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i+1)
	}
}

// Submit queues a job, blocking while the queue is full
func (p *Pool) Submit(ctx context.Context, j Job) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	select {
	case <-p.stopChan:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobs <- j:
		return nil
	case <-p.stopChan:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals workers to exit and waits up to timeout for running jobs to finish.
// Jobs still queued are discarded through their Discard callback.
func (p *Pool) Stop(timeout time.Duration) {
	p.stopOnce.Do(func() {
		p.log.Info("Stopping worker pool")
		close(p.stopChan)
	})
	// Wait out in-flight Submits so nothing lands in the queue after the drain
	p.submitMu.Lock()
	p.submitMu.Unlock()
	defer p.drain()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("Worker pool stopped gracefully")
	case <-time.After(timeout):
		p.log.Warn("Worker pool shutdown timed out", "timeout", timeout)
	}
}

// drain empties the queue, handing each job to its Discard callback
func (p *Pool) drain() {
	discarded := 0
	for {
		select {
		case j := <-p.jobs:
			discarded++
			if j.Discard != nil {
				if err := perrors.SafeCall(func() error { j.Discard(); return nil }); err != nil {
					p.log.Error("Discard callback failed", "job_id", j.ID, "error", err)
				}
			}
		default:
			if discarded > 0 {
				p.log.Warn("Discarded queued jobs", "count", discarded)
			}
			return
		}
	}
}

// Active returns the number of jobs currently running
func (p *Pool) Active() int64 {
	return p.activeWorkers.Load()
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.execute(ctx, workerID, j)
		}
	}
}

// execute runs one job with the configured timeout. Panics are logged and reported as failures.
func (p *Pool) execute(ctx context.Context, workerID int, j Job) {
	active := p.activeWorkers.Add(1)
	p.metrics.RecordWorkerActivity(active, int64(p.concurrency))
	defer func() {
		active := p.activeWorkers.Add(-1)
		p.metrics.RecordWorkerActivity(active, int64(p.concurrency))
	}()

	jobCtx := ctx
	if j.UserID != "" {
		jobCtx = logger.ContextWithUser(jobCtx, j.UserID)
	}
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, p.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	p.log.DebugContext(jobCtx, "Processing job", "worker_id", workerID, "job_id", j.ID, "job_name", j.Name)

	err := perrors.SafeCall(func() error {
		if j.Run == nil {
			return fmt.Errorf("job %s has nothing to run", j.ID)
		}
		return j.Run(jobCtx)
	})

	var panicErr *perrors.PanicError
	switch {
	case errors.As(err, &panicErr):
		p.log.ErrorContext(jobCtx, "Job panicked",
			"worker_id", workerID,
			"job_id", j.ID,
			"job_name", j.Name,
			"panic_value", panicErr.Value,
			"stack_trace", panicErr.Stacktrace)
	case err != nil:
		p.log.ErrorContext(jobCtx, "Job failed", "worker_id", workerID, "job_id", j.ID, "job_name", j.Name, "error", err)
	default:
		p.log.DebugContext(jobCtx, "Job completed", "worker_id", workerID, "job_id", j.ID, "duration", time.Since(start))
	}
}
