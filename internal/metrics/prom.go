package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

// PromRecorder records scheduler outcomes in Prometheus metrics.
type PromRecorder struct {
	planOps     *prometheus.CounterVec
	assignments *prometheus.CounterVec
	retries     *prometheus.CounterVec
	quota       *prometheus.CounterVec
}

// NewPromRecorder registers the scheduler metrics on reg. If reg is nil the
// default registerer is used; collectors that are already registered are
// reused.
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	planOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dayplan_operations_total",
		Help: "Day-plan operations by outcome",
	}, []string{"op", "result"})
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crew_assignment_operations_total",
		Help: "Crew assignment operations by outcome",
	}, []string{"op", "result"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_retries_total",
		Help: "Retries after transient write conflicts",
	}, []string{"op"})
	quota := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_rejections_total",
		Help: "Requests rejected by the daily mutation quota",
	}, []string{"scope"})

	var err error
	if planOps, err = register(reg, planOps); err != nil {
		return nil, err
	}
	if assignments, err = register(reg, assignments); err != nil {
		return nil, err
	}
	if retries, err = register(reg, retries); err != nil {
		return nil, err
	}
	if quota, err = register(reg, quota); err != nil {
		return nil, err
	}

	return &PromRecorder{planOps: planOps, assignments: assignments, retries: retries, quota: quota}, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (r *PromRecorder) ObservePlanOperation(op string, err error) {
	r.planOps.WithLabelValues(op, result(err)).Inc()
}

func (r *PromRecorder) ObserveAssignment(op string, err error) {
	r.assignments.WithLabelValues(op, result(err)).Inc()
}

func (r *PromRecorder) ObserveRetry(op string) {
	r.retries.WithLabelValues(op).Inc()
}

func (r *PromRecorder) ObserveQuotaRejection(scope string) {
	r.quota.WithLabelValues(scope).Inc()
}

// result labels an outcome with the error code, so rejections can be told
// apart from infrastructure failures without high-cardinality labels.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	if de, ok := domain.AsError(err); ok {
		return de.Code
	}
	return "error"
}
