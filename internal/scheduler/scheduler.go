package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"github.com/tophand-tech/dayplan/backend/internal/lock"
	"go.uber.org/zap"
)

// Dependencies are the collaborators of the scheduler. Store, Jobs and Users
// are required; the rest fall back to in-process defaults.
type Dependencies struct {
	Store   Store
	Jobs    JobDirectory
	Users   UserDirectory
	Locker  lock.Locker
	Metrics Recorder
	Logger  *zap.Logger
	Clock   func() time.Time
	NewID   func() uuid.UUID
}

type Scheduler struct {
	parameters *Parameters
	rules      rules

	store   Store
	jobs    JobDirectory
	users   UserDirectory
	locker  lock.Locker
	metrics Recorder
	logger  *zap.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

func New(parameters *Parameters, deps Dependencies) (*Scheduler, error) {
	if parameters == nil {
		parameters = DefaultParameters()
	}
	if deps.Store == nil || deps.Jobs == nil || deps.Users == nil {
		return nil, errors.New("scheduler: store, job directory and user directory are required")
	}
	if parameters.MaxJobEvents <= 0 {
		return nil, fmt.Errorf("scheduler: max job events must be positive, got %d", parameters.MaxJobEvents)
	}
	if parameters.Location == nil {
		parameters.Location = time.UTC
	}
	if parameters.DuplicatePolicy == "" {
		parameters.DuplicatePolicy = DuplicateReject
	}

	s := &Scheduler{
		parameters: parameters,
		rules:      rules{maxJobEvents: parameters.MaxJobEvents, loc: parameters.Location},
		store:      deps.Store,
		jobs:       deps.Jobs,
		users:      deps.Users,
		locker:     deps.Locker,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
		newID:      deps.NewID,
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker()
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.New
	}

	return s, nil
}

func (s *Scheduler) Parameters() Parameters {
	return *s.parameters
}

/**********************************************
 * Day-plan aggregate
 **********************************************/

// CreatePlan opens an empty draft plan for the technician on date.
func (s *Scheduler) CreatePlan(ctx context.Context, tenantID, technicianID uuid.UUID, date civil.Date) (*domain.DayPlan, error) {
	const op = "create_plan"

	plan, err := s.createPlan(ctx, tenantID, technicianID, date)
	s.metrics.ObservePlanOperation(op, err)
	return plan, err
}

func (s *Scheduler) createPlan(ctx context.Context, tenantID, technicianID uuid.UUID, date civil.Date) (*domain.DayPlan, error) {
	if tenantID == uuid.Nil || technicianID == uuid.Nil {
		return nil, domain.ErrInvalidRequest.Withf("tenant and technician are required")
	}
	if !date.IsValid() {
		return nil, domain.ErrInvalidRequest.Withf("invalid plan date %s", date)
	}

	// the technician must belong to the tenant
	if _, err := s.users.GetUser(ctx, tenantID, technicianID); err != nil {
		return nil, err
	}

	now := s.now()
	plan := &domain.DayPlan{
		ID:           s.newID(),
		TenantID:     tenantID,
		TechnicianID: technicianID,
		PlanDate:     date,
		Status:       domain.PlanStatusDraft,
		Events:       []*domain.ScheduleEvent{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateDayPlan(ctx, plan); err != nil {
		if errors.Is(err, domain.ErrDuplicatePlan) {
			return nil, domain.ErrDuplicatePlan.With("technicianID", technicianID, "date", date.String())
		}
		return nil, err
	}

	return plan, nil
}

func (s *Scheduler) GetPlan(ctx context.Context, tenantID, planID uuid.UUID) (*domain.DayPlan, error) {
	return s.store.GetDayPlan(ctx, tenantID, planID)
}

func (s *Scheduler) FindPlan(ctx context.Context, tenantID, technicianID uuid.UUID, date civil.Date) (*domain.DayPlan, error) {
	return s.store.FindDayPlan(ctx, tenantID, technicianID, date)
}

// AddEvent appends the event, or inserts it at spec.Position, and returns the
// updated plan together with the new event.
func (s *Scheduler) AddEvent(ctx context.Context, tenantID, planID uuid.UUID, spec EventSpec) (*domain.DayPlan, *domain.ScheduleEvent, error) {
	const op = "add_event"

	if err := s.rules.validateSpec(spec); err != nil {
		s.metrics.ObservePlanOperation(op, err)
		return nil, nil, err
	}
	if spec.Kind == domain.EventKindJob {
		if _, err := s.jobs.GetJob(ctx, tenantID, *spec.JobID); err != nil {
			s.metrics.ObservePlanOperation(op, err)
			return nil, nil, err
		}
	}

	ev := &domain.ScheduleEvent{
		ID:              s.newID(),
		DayPlanID:       planID,
		TenantID:        tenantID,
		Kind:            spec.Kind,
		JobID:           spec.JobID,
		ScheduledStart:  spec.ScheduledStart,
		DurationMinutes: spec.DurationMinutes,
		Status:          domain.EventStatusPending,
		Location:        spec.Location,
		Notes:           spec.Notes,
		CreatedAt:       s.now(),
	}

	plan, err := s.mutatePlan(ctx, op, tenantID, planID, func(plan *domain.DayPlan) error {
		return s.rules.addEvent(plan, ev.Clone(), spec.Position)
	})
	if err != nil {
		return nil, nil, err
	}

	added, _ := plan.FindEvent(ev.ID)
	return plan, added, nil
}

// RemoveEvent deletes the event and compacts the sequence.
func (s *Scheduler) RemoveEvent(ctx context.Context, tenantID, planID, eventID uuid.UUID) (*domain.DayPlan, error) {
	return s.mutatePlan(ctx, "remove_event", tenantID, planID, func(plan *domain.DayPlan) error {
		return s.rules.removeEvent(plan, eventID)
	})
}

// ReorderEvent moves the event to the 1-based newPosition.
func (s *Scheduler) ReorderEvent(ctx context.Context, tenantID, planID, eventID uuid.UUID, newPosition int) (*domain.DayPlan, error) {
	return s.mutatePlan(ctx, "reorder_event", tenantID, planID, func(plan *domain.DayPlan) error {
		return s.rules.reorderEvent(plan, eventID, newPosition)
	})
}

func (s *Scheduler) UpdateEventStatus(ctx context.Context, tenantID, planID, eventID uuid.UUID, status domain.EventStatus) (*domain.DayPlan, error) {
	return s.mutatePlan(ctx, "update_event_status", tenantID, planID, func(plan *domain.DayPlan) error {
		return s.rules.setEventStatus(plan, eventID, status)
	})
}

// PublishPlan moves a draft to published. Empty plans are rejected.
func (s *Scheduler) PublishPlan(ctx context.Context, tenantID, planID uuid.UUID) (*domain.DayPlan, error) {
	return s.transitionPlan(ctx, "publish_plan", tenantID, planID, domain.PlanStatusPublished)
}

func (s *Scheduler) CompletePlan(ctx context.Context, tenantID, planID uuid.UUID) (*domain.DayPlan, error) {
	return s.transitionPlan(ctx, "complete_plan", tenantID, planID, domain.PlanStatusCompleted)
}

func (s *Scheduler) CancelPlan(ctx context.Context, tenantID, planID uuid.UUID) (*domain.DayPlan, error) {
	return s.transitionPlan(ctx, "cancel_plan", tenantID, planID, domain.PlanStatusCancelled)
}

func (s *Scheduler) transitionPlan(ctx context.Context, op string, tenantID, planID uuid.UUID, to domain.PlanStatus) (*domain.DayPlan, error) {
	return s.mutatePlan(ctx, op, tenantID, planID, func(plan *domain.DayPlan) error {
		return s.rules.transition(plan, to)
	})
}

// mutatePlan is the single write path for day plans: per-plan lock, store
// transaction, sequence check before commit, bounded retry on transient
// conflicts.
func (s *Scheduler) mutatePlan(ctx context.Context, op string, tenantID, planID uuid.UUID, fn func(plan *domain.DayPlan) error) (*domain.DayPlan, error) {
	var out *domain.DayPlan

	err := s.withRetry(ctx, op, func() error {
		release, err := s.locker.Lock(ctx, planLockKey(tenantID, planID))
		if err != nil {
			return domain.ErrLockUnavailable.Wrap(err)
		}
		defer release()

		plan, err := s.store.UpdateDayPlan(ctx, tenantID, planID, func(plan *domain.DayPlan) error {
			if err := fn(plan); err != nil {
				return err
			}
			if err := verifySequence(plan.Events); err != nil {
				return fmt.Errorf("scheduler: broken sequence after %s: %w", op, err)
			}
			plan.UpdatedAt = s.now()
			return nil
		})
		if err != nil {
			return err
		}

		out = plan
		return nil
	})

	s.metrics.ObservePlanOperation(op, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func planLockKey(tenantID, planID uuid.UUID) string {
	return "plan:" + tenantID.String() + ":" + planID.String()
}

func userLockKey(tenantID, userID uuid.UUID) string {
	return "crew:" + tenantID.String() + ":" + userID.String()
}
