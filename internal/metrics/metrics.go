// Package metrics records plan generation, re-planning and worker activity.
// Counters are exported to Prometheus and mirrored in memory for JSON snapshots.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Trigger identifies what caused a plan to be generated
type Trigger string

const (
	TriggerAPI      Trigger = "api"
	TriggerCLI      Trigger = "cli"
	TriggerFeedback Trigger = "feedback"
	TriggerSchedule Trigger = "schedule"
)

// Re-plan outcomes
const (
	ReplanSuccess = "success"
	ReplanFailure = "failure"
	ReplanSkipped = "skipped"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// Collector owns a Prometheus registry with the studyplan metrics
type Collector struct {
	registry *prometheus.Registry

	plansGenerated   *prometheus.CounterVec
	generationTime   prometheus.Histogram
	blocksScheduled  prometheus.Counter
	tasksPartial     prometheus.Counter
	tasksUnscheduled *prometheus.CounterVec
	feedback         *prometheus.CounterVec
	replans          *prometheus.CounterVec
	storeErrors      prometheus.Counter
	workersActive    prometheus.Gauge

	// In-memory mirror for Snapshot
	totalPlans      atomic.Int64
	totalBlocks     atomic.Int64
	replanSucceeded atomic.Int64
	replanFailed    atomic.Int64
	mu              sync.Mutex
	totalDuration   time.Duration
	activeWorkers   int64
	totalWorkers    int64
	startTime       time.Time
}

// Metrics is a point-in-time snapshot
type Metrics struct {
	PlansGenerated    int64         `json:"plans_generated"`
	BlocksScheduled   int64         `json:"blocks_scheduled"`
	ReplansSucceeded  int64         `json:"replans_succeeded"`
	ReplansFailed     int64         `json:"replans_failed"`
	AvgGenerationTime time.Duration `json:"avg_generation_time"`
	WorkerUtilization float64       `json:"worker_utilization"`
	Uptime            time.Duration `json:"uptime"`
}

// Default returns the global metrics collector instance
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		plansGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyplan_plans_generated_total",
			Help: "Total number of plans generated",
		}, []string{"trigger"}),
		generationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studyplan_generation_seconds",
			Help:    "Time spent generating a plan, including storage",
			Buckets: prometheus.DefBuckets,
		}),
		blocksScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studyplan_blocks_scheduled_total",
			Help: "Total number of study blocks placed",
		}),
		tasksPartial: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studyplan_tasks_partial_total",
			Help: "Total number of tasks that were only partially scheduled",
		}),
		tasksUnscheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyplan_tasks_unscheduled_total",
			Help: "Total number of tasks left unscheduled, by reason",
		}, []string{"reason"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyplan_feedback_total",
			Help: "Total number of feedback actions applied",
		}, []string{"action"}),
		replans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyplan_replans_total",
			Help: "Total number of scheduled re-plans, by outcome",
		}, []string{"status"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studyplan_store_errors_total",
			Help: "Total number of plan store failures",
		}),
		workersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studyplan_workers_active",
			Help: "Current number of busy re-plan workers",
		}),
		startTime: time.Now(),
	}

	c.registry.MustRegister(
		c.plansGenerated,
		c.generationTime,
		c.blocksScheduled,
		c.tasksPartial,
		c.tasksUnscheduled,
		c.feedback,
		c.replans,
		c.storeErrors,
		c.workersActive,
	)
	return c
}

// Registry returns the collector's Prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordGeneration records one generated plan
func (c *Collector) RecordGeneration(trigger Trigger, blocks, partial int, unscheduled map[string]int, duration time.Duration) {
	c.plansGenerated.WithLabelValues(string(trigger)).Inc()
	c.generationTime.Observe(duration.Seconds())
	c.blocksScheduled.Add(float64(blocks))
	c.tasksPartial.Add(float64(partial))
	for reason, n := range unscheduled {
		c.tasksUnscheduled.WithLabelValues(reason).Add(float64(n))
	}

	c.totalPlans.Add(1)
	c.totalBlocks.Add(int64(blocks))
	c.mu.Lock()
	c.totalDuration += duration
	c.mu.Unlock()
}

// RecordFeedback records an applied feedback action
func (c *Collector) RecordFeedback(action string) {
	c.feedback.WithLabelValues(action).Inc()
}

// RecordReplan records the outcome of a scheduled re-plan
func (c *Collector) RecordReplan(status string) {
	c.replans.WithLabelValues(status).Inc()
	switch status {
	case ReplanSuccess:
		c.replanSucceeded.Add(1)
	case ReplanFailure:
		c.replanFailed.Add(1)
	}
}

// RecordStoreError records a failed store operation
func (c *Collector) RecordStoreError() {
	c.storeErrors.Inc()
}

// RecordWorkerActivity updates worker utilization metrics
func (c *Collector) RecordWorkerActivity(active, total int64) {
	c.workersActive.Set(float64(active))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeWorkers = active
	c.totalWorkers = total
}

// GetMetrics returns a snapshot of current metrics
func (c *Collector) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	plans := c.totalPlans.Load()
	var avg time.Duration
	if plans > 0 {
		avg = c.totalDuration / time.Duration(plans)
	}

	var utilization float64
	if c.totalWorkers > 0 {
		utilization = float64(c.activeWorkers) / float64(c.totalWorkers) * 100
	}

	return Metrics{
		PlansGenerated:    plans,
		BlocksScheduled:   c.totalBlocks.Load(),
		ReplansSucceeded:  c.replanSucceeded.Load(),
		ReplansFailed:     c.replanFailed.Load(),
		AvgGenerationTime: avg,
		WorkerUtilization: utilization,
		Uptime:            time.Since(c.startTime),
	}
}
