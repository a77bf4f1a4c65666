package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

func TestPromRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorder(reg)
	require.NoError(t, err)

	rec.ObservePlanOperation("add_event", nil)
	rec.ObservePlanOperation("add_event", domain.ErrCapacityExceeded.With("limit", 6))
	rec.ObservePlanOperation("add_event", errors.New("db down"))
	rec.ObserveRetry("add_event")
	rec.ObserveAssignment("assign_crew", domain.ErrScheduleConflict)

	expected := `
# HELP dayplan_operations_total Day-plan operations by outcome
# TYPE dayplan_operations_total counter
dayplan_operations_total{op="add_event",result="capacity_exceeded"} 1
dayplan_operations_total{op="add_event",result="error"} 1
dayplan_operations_total{op="add_event",result="ok"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(rec.planOps, strings.NewReader(expected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.retries.WithLabelValues("add_event")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.assignments.WithLabelValues("assign_crew", "schedule_conflict")))
}

func TestPromRecorderReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromRecorder(reg)
	require.NoError(t, err)
	second, err := NewPromRecorder(reg)
	require.NoError(t, err)

	first.ObserveQuotaRejection("tenant")
	second.ObserveQuotaRejection("tenant")
	assert.Equal(t, 2.0, testutil.ToFloat64(first.quota.WithLabelValues("tenant")))
}
