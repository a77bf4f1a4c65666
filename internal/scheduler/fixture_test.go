package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"github.com/tophand-tech/dayplan/backend/internal/memstore"
)

var planDay = civil.Date{Year: 2025, Month: time.June, Day: 1}

func at(hour, minute int) time.Time {
	return time.Date(2025, time.June, 1, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	t          *testing.T
	store      *memstore.Store
	sched      *Scheduler
	metrics    *spyRecorder
	tenantID   uuid.UUID
	supervisor uuid.UUID
	tech       uuid.UUID
	jobSeq     int
}

func newFixture(t *testing.T, tune ...func(p *Parameters)) *fixture {
	t.Helper()

	p := DefaultParameters()
	p.RetryInitialInterval = time.Millisecond
	p.RetryMaxInterval = 2 * time.Millisecond
	for _, fn := range tune {
		fn(p)
	}

	f := &fixture{
		t:        t,
		store:    memstore.New(),
		metrics:  newSpyRecorder(),
		tenantID: uuid.New(),
	}
	f.supervisor = f.addUser(domain.RoleSupervisor)
	f.tech = f.addUser(domain.RoleTechnician)

	sched, err := New(p, Dependencies{
		Store:   f.store,
		Jobs:    f.store,
		Users:   f.store,
		Metrics: f.metrics,
		Clock:   func() time.Time { return at(7, 0) },
	})
	require.NoError(t, err)
	f.sched = sched
	return f
}

func (f *fixture) addUser(role domain.Role) uuid.UUID {
	id := uuid.New()
	f.store.PutUser(&domain.User{
		ID:       id,
		TenantID: f.tenantID,
		Email:    id.String()[:8] + "@example.com",
		FullName: "User " + id.String()[:8],
		Role:     role,
		IsActive: true,
	})
	return id
}

// addJob registers a scheduled job starting at start.
func (f *fixture) addJob(start time.Time, minutes int32) *domain.Job {
	f.jobSeq++
	job := &domain.Job{
		ID:              uuid.New(),
		TenantID:        f.tenantID,
		JobNumber:       fmt.Sprintf("JOB-%04d", f.jobSeq),
		Title:           "Service call",
		Status:          domain.JobStatusScheduled,
		ScheduledStart:  &start,
		DurationMinutes: minutes,
	}
	f.store.PutJob(job)
	return job
}

func (f *fixture) newPlan() *domain.DayPlan {
	f.t.Helper()
	plan, err := f.sched.CreatePlan(context.Background(), f.tenantID, f.tech, planDay)
	require.NoError(f.t, err)
	return plan
}

// jobSpec registers a job and returns a spec placing it in a plan.
func (f *fixture) jobSpec(start time.Time, minutes int32) EventSpec {
	job := f.addJob(start, minutes)
	return EventSpec{
		Kind:            domain.EventKindJob,
		JobID:           &job.ID,
		ScheduledStart:  start,
		DurationMinutes: minutes,
	}
}

func breakSpec(start time.Time, minutes int32) EventSpec {
	return EventSpec{
		Kind:            domain.EventKindBreak,
		ScheduledStart:  start,
		DurationMinutes: minutes,
	}
}

func (f *fixture) mustAdd(planID uuid.UUID, spec EventSpec) *domain.ScheduleEvent {
	f.t.Helper()
	_, ev, err := f.sched.AddEvent(context.Background(), f.tenantID, planID, spec)
	require.NoError(f.t, err)
	return ev
}

func requireDense(t *testing.T, plan *domain.DayPlan) {
	t.Helper()
	for i, ev := range plan.Events {
		require.Equal(t, int32(i+1), ev.SequenceOrder, "event %d of %d", i+1, len(plan.Events))
	}
}

func eventIDs(plan *domain.DayPlan) []uuid.UUID {
	ids := make([]uuid.UUID, len(plan.Events))
	for i, ev := range plan.Events {
		ids[i] = ev.ID
	}
	return ids
}

type spyRecorder struct {
	mu      sync.Mutex
	retries map[string]int
	plans   map[string]int
	crew    map[string]int
}

func newSpyRecorder() *spyRecorder {
	return &spyRecorder{
		retries: make(map[string]int),
		plans:   make(map[string]int),
		crew:    make(map[string]int),
	}
}

func (r *spyRecorder) ObservePlanOperation(op string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[op]++
}

func (r *spyRecorder) ObserveAssignment(op string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crew[op]++
}

func (r *spyRecorder) ObserveRetry(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[op]++
}

func (r *spyRecorder) retryCount(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries[op]
}
