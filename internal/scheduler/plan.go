package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

// rules holds the day-plan aggregate invariants. Every method operates on a
// working copy handed out by the store inside one transaction.
type rules struct {
	maxJobEvents int
	loc          *time.Location
}

// validateSpec performs the checks that need no plan state.
func (r rules) validateSpec(spec EventSpec) error {
	if !spec.Kind.Valid() {
		return domain.ErrInvalidEventSpec.Withf("unknown event kind %q", spec.Kind).With("field", "kind")
	}
	if spec.Kind == domain.EventKindJob && (spec.JobID == nil || *spec.JobID == uuid.Nil) {
		return domain.ErrInvalidEventSpec.Withf("job events require a job reference").With("field", "jobID")
	}
	if spec.Kind != domain.EventKindJob && spec.JobID != nil {
		return domain.ErrInvalidEventSpec.Withf("%s events must not reference a job", spec.Kind).With("field", "jobID")
	}
	if spec.DurationMinutes <= 0 {
		return domain.ErrInvalidEventSpec.Withf("duration must be positive").With("field", "durationMinutes")
	}
	if spec.ScheduledStart.IsZero() {
		return domain.ErrInvalidEventSpec.Withf("scheduled start is required").With("field", "scheduledStart")
	}
	if loc := spec.Location; loc != nil {
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return domain.ErrInvalidEventSpec.Withf("location is out of range").With("field", "location")
		}
	}
	if spec.Position < 0 {
		return domain.ErrInvalidPosition.With("position", spec.Position)
	}
	return nil
}

func checkMutable(plan *domain.DayPlan) error {
	if plan.Status.IsTerminal() {
		return domain.ErrPlanNotMutable.With("planID", plan.ID, "status", plan.Status)
	}
	return nil
}

// addEvent enforces the plan-level rules and hands ev to the sequencer.
func (r rules) addEvent(plan *domain.DayPlan, ev *domain.ScheduleEvent, position int) error {
	if err := checkMutable(plan); err != nil {
		return err
	}

	if got := dateIn(ev.ScheduledStart, r.loc); got != plan.PlanDate {
		return domain.ErrInvalidEventSpec.Withf("event starts on %s, plan is for %s", got, plan.PlanDate).With("field", "scheduledStart")
	}

	if ev.Kind == domain.EventKindJob {
		if n := plan.JobEventCount(); n >= r.maxJobEvents {
			return domain.ErrCapacityExceeded.With("limit", r.maxJobEvents, "jobEvents", n)
		}
		for _, other := range plan.Events {
			if other.JobID != nil && *other.JobID == *ev.JobID {
				return domain.ErrInvalidEventSpec.Withf("job is already in this plan").With("field", "jobID", "eventID", other.ID)
			}
		}
	}

	events, err := insertAt(plan.Events, ev, position)
	if err != nil {
		return err
	}
	plan.Events = events
	return nil
}

func (r rules) removeEvent(plan *domain.DayPlan, eventID uuid.UUID) error {
	if err := checkMutable(plan); err != nil {
		return err
	}
	events, _, err := removeByID(plan.Events, eventID)
	if err != nil {
		return err
	}
	plan.Events = events
	return nil
}

func (r rules) reorderEvent(plan *domain.DayPlan, eventID uuid.UUID, newPosition int) error {
	if err := checkMutable(plan); err != nil {
		return err
	}
	events, err := moveTo(plan.Events, eventID, newPosition)
	if err != nil {
		return err
	}
	plan.Events = events
	return nil
}

var planTransitions = map[domain.PlanStatus][]domain.PlanStatus{
	domain.PlanStatusDraft:     {domain.PlanStatusPublished, domain.PlanStatusCancelled},
	domain.PlanStatusPublished: {domain.PlanStatusCompleted, domain.PlanStatusCancelled},
}

// transition moves the plan along draft → published → completed, or to
// cancelled from draft/published.
func (r rules) transition(plan *domain.DayPlan, to domain.PlanStatus) error {
	if plan.Status.IsTerminal() {
		return domain.ErrPlanNotMutable.With("planID", plan.ID, "status", plan.Status)
	}
	allowed := false
	for _, s := range planTransitions[plan.Status] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.ErrInvalidTransition.With("from", plan.Status, "to", to)
	}
	if to == domain.PlanStatusPublished && len(plan.Events) == 0 {
		return domain.ErrEmptyPlan.With("planID", plan.ID)
	}
	plan.Status = to
	return nil
}

var eventTransitions = map[domain.EventStatus][]domain.EventStatus{
	domain.EventStatusPending:    {domain.EventStatusInProgress, domain.EventStatusSkipped},
	domain.EventStatusInProgress: {domain.EventStatusCompleted, domain.EventStatusSkipped},
}

func (r rules) setEventStatus(plan *domain.DayPlan, eventID uuid.UUID, to domain.EventStatus) error {
	if err := checkMutable(plan); err != nil {
		return err
	}
	if !to.Valid() {
		return domain.ErrInvalidRequest.Withf("unknown event status %q", to)
	}
	ev, _ := plan.FindEvent(eventID)
	if ev == nil {
		return domain.ErrEventNotFound.With("eventID", eventID)
	}
	for _, s := range eventTransitions[ev.Status] {
		if s == to {
			ev.Status = to
			return nil
		}
	}
	return domain.ErrInvalidTransition.With("from", ev.Status, "to", to, "eventID", eventID)
}
