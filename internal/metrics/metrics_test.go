package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()

	require.NotNil(t, c)
	assert.NotNil(t, c.Registry())

	// Two collectors must not collide on registration
	assert.NotPanics(t, func() { NewCollector() })
}

func TestRecordGeneration(t *testing.T) {
	c := NewCollector()

	c.RecordGeneration(TriggerAPI, 6, 1, map[string]int{"overdue": 2}, 200*time.Millisecond)
	c.RecordGeneration(TriggerSchedule, 4, 0, nil, 100*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.plansGenerated.WithLabelValues("api")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.plansGenerated.WithLabelValues("schedule")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.blocksScheduled))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksPartial))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.tasksUnscheduled.WithLabelValues("overdue")))

	snapshot := c.GetMetrics()
	assert.Equal(t, int64(2), snapshot.PlansGenerated)
	assert.Equal(t, int64(10), snapshot.BlocksScheduled)
	assert.Equal(t, 150*time.Millisecond, snapshot.AvgGenerationTime)
}

func TestRecordReplanAndFeedback(t *testing.T) {
	c := NewCollector()

	c.RecordReplan(ReplanSuccess)
	c.RecordReplan(ReplanSuccess)
	c.RecordReplan(ReplanFailure)
	c.RecordReplan(ReplanSkipped)
	c.RecordFeedback("mark_complete")
	c.RecordStoreError()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.replans.WithLabelValues(ReplanSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.replans.WithLabelValues(ReplanSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.feedback.WithLabelValues("mark_complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeErrors))

	snapshot := c.GetMetrics()
	assert.Equal(t, int64(2), snapshot.ReplansSucceeded)
	assert.Equal(t, int64(1), snapshot.ReplansFailed)
}

func TestRecordWorkerActivity(t *testing.T) {
	c := NewCollector()

	c.RecordWorkerActivity(3, 4)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.workersActive))
	assert.Equal(t, 75.0, c.GetMetrics().WorkerUtilization)
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordGeneration(TriggerCLI, 2, 0, nil, time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `studyplan_plans_generated_total{trigger="cli"} 1`))
	assert.True(t, strings.Contains(string(body), "studyplan_generation_seconds_bucket"))
}

func TestGlobalCollector(t *testing.T) {
	assert.Same(t, Default(), Default())
}
