package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

func TestCreatePlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plan := f.newPlan()
	assert.Equal(t, domain.PlanStatusDraft, plan.Status)
	assert.Empty(t, plan.Events)
	assert.Equal(t, planDay, plan.PlanDate)

	_, err := f.sched.CreatePlan(ctx, f.tenantID, f.tech, planDay)
	require.ErrorIs(t, err, domain.ErrDuplicatePlan)

	// another day is a separate slot
	_, err = f.sched.CreatePlan(ctx, f.tenantID, f.tech, planDay.AddDays(1))
	require.NoError(t, err)

	_, err = f.sched.CreatePlan(ctx, f.tenantID, uuid.New(), planDay)
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	// tenants are isolated
	_, err = f.sched.GetPlan(ctx, uuid.New(), plan.ID)
	require.ErrorIs(t, err, domain.ErrPlanNotFound)

	found, err := f.sched.FindPlan(ctx, f.tenantID, f.tech, planDay)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, found.ID)
}

func TestAddEventCapacity(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	for i := 0; i < DefaultMaxJobEvents; i++ {
		f.mustAdd(plan.ID, f.jobSpec(at(8+i, 0), 60))
	}

	_, _, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, f.jobSpec(at(15, 0), 60))
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	de, _ := domain.AsError(err)
	assert.Equal(t, DefaultMaxJobEvents, de.Detail["limit"])

	// only job events count against the ceiling
	f.mustAdd(plan.ID, breakSpec(at(12, 0), 30))

	got, err := f.sched.GetPlan(context.Background(), f.tenantID, plan.ID)
	require.NoError(t, err)
	assert.Len(t, got.Events, DefaultMaxJobEvents+1)
	assert.Equal(t, DefaultMaxJobEvents, got.JobEventCount())
	requireDense(t, got)
}

func TestAddEventCustomCeiling(t *testing.T) {
	f := newFixture(t, func(p *Parameters) { p.MaxJobEvents = 2 })
	plan := f.newPlan()

	f.mustAdd(plan.ID, f.jobSpec(at(8, 0), 60))
	f.mustAdd(plan.ID, f.jobSpec(at(9, 0), 60))
	_, _, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, f.jobSpec(at(10, 0), 60))
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestAddEventAtPosition(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	first := f.mustAdd(plan.ID, f.jobSpec(at(8, 0), 60))
	second := f.mustAdd(plan.ID, breakSpec(at(9, 0), 15))
	third := f.mustAdd(plan.ID, f.jobSpec(at(10, 0), 60))

	spec := f.jobSpec(at(11, 0), 60)
	spec.Position = 2
	got, added, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, spec)
	require.NoError(t, err)

	assert.Equal(t, int32(2), added.SequenceOrder)
	assert.Equal(t, []uuid.UUID{first.ID, added.ID, second.ID, third.ID}, eventIDs(got))
	requireDense(t, got)

	spec = breakSpec(at(12, 0), 15)
	spec.Position = 6
	_, _, err = f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, spec)
	assert.ErrorIs(t, err, domain.ErrInvalidPosition)
}

func TestAddEventValidation(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()
	job := f.addJob(at(9, 0), 60)
	unknown := uuid.New()

	tests := []struct {
		name string
		spec EventSpec
		want error
	}{
		{
			name: "job without reference",
			spec: EventSpec{Kind: domain.EventKindJob, ScheduledStart: at(9, 0), DurationMinutes: 60},
			want: domain.ErrInvalidEventSpec,
		},
		{
			name: "break with job reference",
			spec: EventSpec{Kind: domain.EventKindBreak, JobID: &job.ID, ScheduledStart: at(9, 0), DurationMinutes: 15},
			want: domain.ErrInvalidEventSpec,
		},
		{
			name: "unknown kind",
			spec: EventSpec{Kind: "lunch", ScheduledStart: at(9, 0), DurationMinutes: 15},
			want: domain.ErrInvalidEventSpec,
		},
		{
			name: "zero duration",
			spec: breakSpec(at(9, 0), 0),
			want: domain.ErrInvalidEventSpec,
		},
		{
			name: "missing start",
			spec: EventSpec{Kind: domain.EventKindTravel, DurationMinutes: 20},
			want: domain.ErrInvalidEventSpec,
		},
		{
			name: "another day",
			spec: breakSpec(at(9, 0).AddDate(0, 0, 1), 15),
			want: domain.ErrInvalidEventSpec,
		},
		{
			name: "location out of range",
			spec: EventSpec{Kind: domain.EventKindTravel, ScheduledStart: at(9, 0), DurationMinutes: 20, Location: &domain.Location{Latitude: 91}},
			want: domain.ErrInvalidEventSpec,
		},
		{
			name: "negative position",
			spec: EventSpec{Kind: domain.EventKindBreak, ScheduledStart: at(9, 0), DurationMinutes: 15, Position: -1},
			want: domain.ErrInvalidPosition,
		},
		{
			name: "unknown job",
			spec: EventSpec{Kind: domain.EventKindJob, JobID: &unknown, ScheduledStart: at(9, 0), DurationMinutes: 60},
			want: domain.ErrJobNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, tt.spec)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := f.sched.GetPlan(context.Background(), f.tenantID, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Events, "rejected events must not be written")
}

func TestAddEventSameJobTwice(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	spec := f.jobSpec(at(9, 0), 60)
	f.mustAdd(plan.ID, spec)

	spec.ScheduledStart = at(14, 0)
	_, _, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, spec)
	assert.ErrorIs(t, err, domain.ErrInvalidEventSpec)
}

func TestRemoveEvent(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	a := f.mustAdd(plan.ID, f.jobSpec(at(8, 0), 60))
	b := f.mustAdd(plan.ID, breakSpec(at(9, 0), 15))
	c := f.mustAdd(plan.ID, f.jobSpec(at(10, 0), 60))

	got, err := f.sched.RemoveEvent(context.Background(), f.tenantID, plan.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID, c.ID}, eventIDs(got))
	requireDense(t, got)

	_, err = f.sched.RemoveEvent(context.Background(), f.tenantID, plan.ID, b.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestRemoveThenReAddRestoresSequence(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	notes := "bring the ladder"
	specs := []EventSpec{
		f.jobSpec(at(8, 0), 60),
		{Kind: domain.EventKindTravel, ScheduledStart: at(9, 0), DurationMinutes: 20, Notes: &notes},
		f.jobSpec(at(10, 0), 45),
		breakSpec(at(11, 0), 30),
	}
	for _, spec := range specs {
		f.mustAdd(plan.ID, spec)
	}
	before, err := f.sched.GetPlan(context.Background(), f.tenantID, plan.ID)
	require.NoError(t, err)

	for position := 1; position <= len(specs); position++ {
		victim := before.Events[position-1]
		_, err := f.sched.RemoveEvent(context.Background(), f.tenantID, plan.ID, victim.ID)
		require.NoError(t, err)

		spec := specs[position-1]
		spec.Position = position
		_, _, err = f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, spec)
		require.NoError(t, err)

		after, err := f.sched.GetPlan(context.Background(), f.tenantID, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, eventContent(before), eventContent(after), "position %d", position)
		before = after
	}
}

type content struct {
	Kind     domain.EventKind
	JobID    *uuid.UUID
	Start    time.Time
	Duration int32
	Notes    *string
	Order    int32
}

func eventContent(plan *domain.DayPlan) []content {
	out := make([]content, len(plan.Events))
	for i, ev := range plan.Events {
		out[i] = content{
			Kind:     ev.Kind,
			JobID:    ev.JobID,
			Start:    ev.ScheduledStart,
			Duration: ev.DurationMinutes,
			Notes:    ev.Notes,
			Order:    ev.SequenceOrder,
		}
	}
	return out
}

func TestReorderEvent(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	a := f.mustAdd(plan.ID, f.jobSpec(at(8, 0), 60))
	b := f.mustAdd(plan.ID, breakSpec(at(9, 0), 15))
	c := f.mustAdd(plan.ID, f.jobSpec(at(10, 0), 60))
	d := f.mustAdd(plan.ID, breakSpec(at(11, 0), 15))

	got, err := f.sched.ReorderEvent(context.Background(), f.tenantID, plan.ID, a.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID, c.ID, a.ID, d.ID}, eventIDs(got))
	requireDense(t, got)

	_, err = f.sched.ReorderEvent(context.Background(), f.tenantID, plan.ID, a.ID, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidPosition)
	_, err = f.sched.ReorderEvent(context.Background(), f.tenantID, plan.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

// TestSequenceStaysDense drives random add/remove/reorder operations and
// checks the result against a plain slice model after every step.
func TestSequenceStaysDense(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()
	rng := rand.New(rand.NewSource(20250601))

	var model []uuid.UUID
	for step := 0; step < 300; step++ {
		n := len(model)
		var (
			got *domain.DayPlan
			err error
		)

		switch op := rng.Intn(3); {
		case op == 0 || n == 0:
			var spec EventSpec
			if rng.Intn(2) == 0 {
				spec = f.jobSpec(at(6+rng.Intn(12), 0), 30)
			} else {
				spec = breakSpec(at(6+rng.Intn(12), 0), 15)
			}
			spec.Position = rng.Intn(n + 2)

			var ev *domain.ScheduleEvent
			got, ev, err = f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, spec)
			if errors.Is(err, domain.ErrCapacityExceeded) {
				continue
			}
			require.NoError(t, err)
			pos := spec.Position
			if pos == 0 {
				pos = n + 1
			}
			model = append(model[:pos-1], append([]uuid.UUID{ev.ID}, model[pos-1:]...)...)

		case op == 1:
			idx := rng.Intn(n)
			got, err = f.sched.RemoveEvent(context.Background(), f.tenantID, plan.ID, model[idx])
			require.NoError(t, err)
			model = append(model[:idx], model[idx+1:]...)

		default:
			idx, to := rng.Intn(n), 1+rng.Intn(n)
			got, err = f.sched.ReorderEvent(context.Background(), f.tenantID, plan.ID, model[idx], to)
			require.NoError(t, err)
			moved := model[idx]
			model = append(model[:idx], model[idx+1:]...)
			model = append(model[:to-1], append([]uuid.UUID{moved}, model[to-1:]...)...)
		}

		requireDense(t, got)
		require.LessOrEqual(t, got.JobEventCount(), DefaultMaxJobEvents)
		require.Equal(t, model, eventIDs(got), "step %d", step)
	}
}

func TestPlanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan()

	_, err := f.sched.PublishPlan(ctx, f.tenantID, plan.ID)
	require.ErrorIs(t, err, domain.ErrEmptyPlan)

	_, err = f.sched.CompletePlan(ctx, f.tenantID, plan.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	ev := f.mustAdd(plan.ID, f.jobSpec(at(9, 0), 60))
	got, err := f.sched.PublishPlan(ctx, f.tenantID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStatusPublished, got.Status)

	// published plans still take edits
	f.mustAdd(plan.ID, breakSpec(at(10, 0), 15))

	_, err = f.sched.PublishPlan(ctx, f.tenantID, plan.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err = f.sched.CompletePlan(ctx, f.tenantID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStatusCompleted, got.Status)

	_, _, err = f.sched.AddEvent(ctx, f.tenantID, plan.ID, breakSpec(at(12, 0), 15))
	assert.ErrorIs(t, err, domain.ErrPlanNotMutable)
	_, err = f.sched.RemoveEvent(ctx, f.tenantID, plan.ID, ev.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotMutable)
	_, err = f.sched.ReorderEvent(ctx, f.tenantID, plan.ID, ev.ID, 2)
	assert.ErrorIs(t, err, domain.ErrPlanNotMutable)
	_, err = f.sched.CancelPlan(ctx, f.tenantID, plan.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotMutable)
}

func TestCancelDraftPlan(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	got, err := f.sched.CancelPlan(context.Background(), f.tenantID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStatusCancelled, got.Status)

	_, _, err = f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, breakSpec(at(9, 0), 15))
	assert.ErrorIs(t, err, domain.ErrPlanNotMutable)
}

func TestUpdateEventStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.newPlan()
	ev := f.mustAdd(plan.ID, f.jobSpec(at(9, 0), 60))

	_, err := f.sched.UpdateEventStatus(ctx, f.tenantID, plan.ID, ev.ID, domain.EventStatusCompleted)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.sched.UpdateEventStatus(ctx, f.tenantID, plan.ID, ev.ID, domain.EventStatusInProgress)
	require.NoError(t, err)
	got, err := f.sched.UpdateEventStatus(ctx, f.tenantID, plan.ID, ev.ID, domain.EventStatusCompleted)
	require.NoError(t, err)

	updated, _ := got.FindEvent(ev.ID)
	require.NotNil(t, updated)
	assert.Equal(t, domain.EventStatusCompleted, updated.Status)

	_, err = f.sched.UpdateEventStatus(ctx, f.tenantID, plan.ID, ev.ID, "paused")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = f.sched.UpdateEventStatus(ctx, f.tenantID, plan.ID, uuid.New(), domain.EventStatusSkipped)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestMutationRetriesTransientConflicts(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	f.store.FailCommits(domain.ErrTxConflict, domain.ErrOptimisticLock)
	got, ev, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, breakSpec(at(9, 0), 15))
	require.NoError(t, err)
	assert.Len(t, got.Events, 1)
	assert.Equal(t, int32(1), ev.SequenceOrder)
	assert.Equal(t, 2, f.metrics.retryCount("add_event"))
}

func TestMutationGivesUpAfterRetryBudget(t *testing.T) {
	f := newFixture(t, func(p *Parameters) { p.RetryAttempts = 2 })
	plan := f.newPlan()

	f.store.FailCommits(domain.ErrTxConflict, domain.ErrTxConflict, domain.ErrTxConflict)
	_, _, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, breakSpec(at(9, 0), 15))
	require.ErrorIs(t, err, domain.ErrTxConflict)
	assert.Equal(t, 2, f.metrics.retryCount("add_event"))

	got, err := f.sched.GetPlan(context.Background(), f.tenantID, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Events)
}

func TestMutationDoesNotRetryPermanentErrors(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	boom := errors.New("connection reset")
	f.store.FailCommits(boom)
	_, _, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, breakSpec(at(9, 0), 15))
	require.ErrorIs(t, err, boom)
	assert.Zero(t, f.metrics.retryCount("add_event"))
}

func TestConcurrentAddEvent(t *testing.T) {
	f := newFixture(t)
	plan := f.newPlan()

	const workers = 12
	specs := make([]EventSpec, workers)
	for i := range specs {
		specs[i] = f.jobSpec(at(6+i, 0), 45)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(spec EventSpec) {
			defer wg.Done()
			_, _, err := f.sched.AddEvent(context.Background(), f.tenantID, plan.ID, spec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(specs[i])
	}
	wg.Wait()

	assert.Equal(t, DefaultMaxJobEvents, ok)
	assert.Equal(t, workers-DefaultMaxJobEvents, full)

	got, err := f.sched.GetPlan(context.Background(), f.tenantID, plan.ID)
	require.NoError(t, err)
	assert.Len(t, got.Events, DefaultMaxJobEvents)
	requireDense(t, got)
}
