package scheduler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"go.uber.org/zap"
)

/**********************************************
 * Assignment validator
 **********************************************/

// ValidateAssignment checks whether userID could be assigned to jobID without
// writing anything. The result is nil or one of ErrJobNotFound,
// ErrUserNotFound, ErrJobNotAssignable, ErrDuplicateAssignment,
// ErrScheduleConflict; any other error comes from the collaborators.
func (s *Scheduler) ValidateAssignment(ctx context.Context, tenantID, jobID, userID uuid.UUID) error {
	job, err := s.jobs.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, tenantID, userID); err != nil {
		return err
	}
	return s.forgiveDuplicate(s.checkAssignment(ctx, job, userID))
}

// ValidateBulkAssignment validates every user independently and partitions
// the outcome the way AssignCrew would. A user listed twice is a duplicate
// on its second occurrence.
func (s *Scheduler) ValidateBulkAssignment(ctx context.Context, tenantID, jobID uuid.UUID, userIDs []uuid.UUID) (*domain.BulkAssignmentResult, error) {
	return s.runBulk(ctx, tenantID, jobID, userIDs, func(job *domain.Job, userID uuid.UUID) error {
		if err := s.requireMember(ctx, tenantID, userID); err != nil {
			return err
		}
		return s.forgiveDuplicate(s.checkAssignment(ctx, job, userID))
	})
}

// requireMember fails with ErrUserNotFound unless userID belongs to the tenant.
func (s *Scheduler) requireMember(ctx context.Context, tenantID, userID uuid.UUID) error {
	_, err := s.users.GetUser(ctx, tenantID, userID)
	return err
}

// forgiveDuplicate drops ErrDuplicateAssignment under DuplicateIgnore.
func (s *Scheduler) forgiveDuplicate(err error) error {
	if s.parameters.DuplicatePolicy == DuplicateIgnore && errors.Is(err, domain.ErrDuplicateAssignment) {
		return nil
	}
	return err
}

// checkAssignment applies the validator rules in order: assignable job,
// duplicate pair, time overlap.
func (s *Scheduler) checkAssignment(ctx context.Context, job *domain.Job, userID uuid.UUID) error {
	if !job.Status.Assignable() {
		return domain.ErrJobNotAssignable.With("jobID", job.ID, "status", job.Status)
	}

	existing, err := s.store.GetCrewAssignment(ctx, job.TenantID, job.ID, userID)
	switch {
	case err == nil && existing != nil:
		return domain.ErrDuplicateAssignment.With("jobID", job.ID, "userID", userID, "assignedAt", existing.AssignedAt)
	case err != nil && !errors.Is(err, domain.ErrAssignmentNotFound):
		return err
	}

	target, ok := jobWindow(job)
	if !ok {
		// unscheduled jobs cannot overlap anything
		return nil
	}

	if err := s.checkDayPlanConflict(ctx, job, userID, target); err != nil {
		return err
	}
	return s.checkAssignmentConflict(ctx, job, userID, target)
}

// checkDayPlanConflict compares the job window against every job event in
// the user's day plan for the job's date.
func (s *Scheduler) checkDayPlanConflict(ctx context.Context, job *domain.Job, userID uuid.UUID, target Window) error {
	date := dateIn(target.Start, s.parameters.Location)

	plan, err := s.store.FindDayPlan(ctx, job.TenantID, userID, date)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			return nil
		}
		return err
	}
	if plan.Status == domain.PlanStatusCancelled {
		return nil
	}

	for _, ev := range plan.Events {
		if ev.Kind != domain.EventKindJob || ev.Status == domain.EventStatusSkipped {
			continue
		}
		if ev.JobID != nil && *ev.JobID == job.ID {
			continue
		}
		w := eventWindow(ev)
		if w.Overlaps(target) {
			return domain.ErrScheduleConflict.With(
				"userID", userID,
				"planID", plan.ID,
				"eventID", ev.ID,
				"conflictingJobID", *ev.JobID,
				"conflictStart", w.Start,
				"conflictEnd", w.End,
			)
		}
	}
	return nil
}

// checkAssignmentConflict compares the job window against the user's other
// crew assignments, so two assignments can collide before either job has
// been placed in a day plan.
func (s *Scheduler) checkAssignmentConflict(ctx context.Context, job *domain.Job, userID uuid.UUID, target Window) error {
	assignments, err := s.store.ListCrewAssignmentsByUser(ctx, job.TenantID, userID)
	if err != nil {
		return err
	}

	for _, a := range assignments {
		if a.JobID == job.ID {
			continue
		}
		other, err := s.jobs.GetJob(ctx, job.TenantID, a.JobID)
		if err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				continue
			}
			return err
		}
		// finished or cancelled jobs no longer occupy the crew member
		if !other.Status.Assignable() {
			continue
		}
		w, ok := jobWindow(other)
		if !ok {
			continue
		}
		if w.Overlaps(target) {
			return domain.ErrScheduleConflict.With(
				"userID", userID,
				"conflictingJobID", other.ID,
				"conflictStart", w.Start,
				"conflictEnd", w.End,
			)
		}
	}
	return nil
}

/**********************************************
 * Crew assignment
 **********************************************/

// AssignCrew assigns every user in userIDs to the job on behalf of a
// supervisor. Each user is validated and written in its own transaction;
// rejected users land in Violations while the rest are still assigned.
func (s *Scheduler) AssignCrew(ctx context.Context, tenantID, jobID, assignedBy uuid.UUID, userIDs []uuid.UUID) (*domain.BulkAssignmentResult, error) {
	if err := s.requireSupervisor(ctx, tenantID, assignedBy); err != nil {
		s.metrics.ObserveAssignment("assign_crew", err)
		return nil, err
	}

	var created []uuid.UUID
	result, err := s.runBulk(ctx, tenantID, jobID, userIDs, func(job *domain.Job, userID uuid.UUID) error {
		if err := s.requireMember(ctx, tenantID, userID); err != nil {
			return err
		}
		_, isNew, err := s.assignOne(ctx, job, userID, assignedBy)
		if err == nil && isNew {
			created = append(created, userID)
		}
		return err
	})
	if result != nil {
		result.Created = created
	}
	return result, err
}

// AssignCrewMember is AssignCrew for a single user; the rejection is
// returned as the error instead of a violation record.
func (s *Scheduler) AssignCrewMember(ctx context.Context, tenantID, jobID, userID, assignedBy uuid.UUID) (*domain.CrewAssignment, error) {
	if err := s.requireSupervisor(ctx, tenantID, assignedBy); err != nil {
		s.metrics.ObserveAssignment("assign_crew", err)
		return nil, err
	}
	job, err := s.jobs.GetJob(ctx, tenantID, jobID)
	if err != nil {
		s.metrics.ObserveAssignment("assign_crew", err)
		return nil, err
	}
	if err := s.requireMember(ctx, tenantID, userID); err != nil {
		s.metrics.ObserveAssignment("assign_crew", err)
		return nil, err
	}
	a, _, err := s.assignOne(ctx, job, userID, assignedBy)
	return a, err
}

// BackfillAssignment writes an assignment that already exists in the job
// record (jobs.assigned_to). It goes through the same validation as a
// supervisor request but skips the role gate, since the assigner is unknown.
func (s *Scheduler) BackfillAssignment(ctx context.Context, job *domain.Job, userID, assignedBy uuid.UUID) (*domain.CrewAssignment, error) {
	a, _, err := s.assignOne(ctx, job, userID, assignedBy)
	return a, err
}

// UnassignCrew removes the assignment. There is no edit operation; callers
// unassign and assign again.
func (s *Scheduler) UnassignCrew(ctx context.Context, tenantID, jobID, userID, removedBy uuid.UUID) error {
	err := s.unassign(ctx, tenantID, jobID, userID, removedBy)
	s.metrics.ObserveAssignment("unassign_crew", err)
	return err
}

func (s *Scheduler) unassign(ctx context.Context, tenantID, jobID, userID, removedBy uuid.UUID) error {
	if err := s.requireSupervisor(ctx, tenantID, removedBy); err != nil {
		return err
	}
	return s.withRetry(ctx, "unassign_crew", func() error {
		release, err := s.locker.Lock(ctx, userLockKey(tenantID, userID))
		if err != nil {
			return domain.ErrLockUnavailable.Wrap(err)
		}
		defer release()
		return s.store.DeleteCrewAssignment(ctx, tenantID, jobID, userID)
	})
}

func (s *Scheduler) ListCrew(ctx context.Context, tenantID, jobID uuid.UUID) ([]*domain.CrewAssignment, error) {
	if _, err := s.jobs.GetJob(ctx, tenantID, jobID); err != nil {
		return nil, err
	}
	return s.store.ListCrewAssignmentsByJob(ctx, tenantID, jobID)
}

// assignOne validates and writes one assignment while holding the user's
// lock, so two concurrent requests for the same user cannot both pass the
// overlap check. created is false when an existing pair was returned under
// DuplicateIgnore.
func (s *Scheduler) assignOne(ctx context.Context, job *domain.Job, userID, assignedBy uuid.UUID) (out *domain.CrewAssignment, created bool, err error) {
	err = s.withRetry(ctx, "assign_crew", func() error {
		release, err := s.locker.Lock(ctx, userLockKey(job.TenantID, userID))
		if err != nil {
			return domain.ErrLockUnavailable.Wrap(err)
		}
		defer release()

		if err := s.checkAssignment(ctx, job, userID); err != nil {
			return err
		}

		a := &domain.CrewAssignment{
			TenantID:   job.TenantID,
			JobID:      job.ID,
			UserID:     userID,
			AssignedAt: s.now(),
			AssignedBy: assignedBy,
		}
		if err := s.store.CreateCrewAssignment(ctx, a); err != nil {
			return err
		}
		out = a
		created = true
		return nil
	})

	if err != nil && s.parameters.DuplicatePolicy == DuplicateIgnore && errors.Is(err, domain.ErrDuplicateAssignment) {
		existing, getErr := s.store.GetCrewAssignment(ctx, job.TenantID, job.ID, userID)
		if getErr == nil {
			err = nil
			out = existing
		}
	}

	s.metrics.ObserveAssignment("assign_crew", err)
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *Scheduler) requireSupervisor(ctx context.Context, tenantID, userID uuid.UUID) error {
	ok, err := s.users.IsSupervisor(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrNotSupervisor.With("userID", userID)
		}
		return err
	}
	if !ok {
		return domain.ErrNotSupervisor.With("userID", userID)
	}
	return nil
}

// runBulk drives a per-user step over userIDs. Every user gets an outcome:
// domain rejections become violations, and so do unexpected store failures
// once retries are spent, reported as ErrInternal. Only a failure to load the
// job aborts, since nothing has been written at that point.
func (s *Scheduler) runBulk(ctx context.Context, tenantID, jobID uuid.UUID, userIDs []uuid.UUID, step func(job *domain.Job, userID uuid.UUID) error) (*domain.BulkAssignmentResult, error) {
	result := &domain.BulkAssignmentResult{
		JobID:      jobID,
		Accepted:   []uuid.UUID{},
		Violations: []domain.Violation{},
	}

	job, jobErr := s.jobs.GetJob(ctx, tenantID, jobID)
	if jobErr != nil && !errors.Is(jobErr, domain.ErrJobNotFound) {
		return nil, jobErr
	}

	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			if s.parameters.DuplicatePolicy == DuplicateIgnore {
				continue
			}
			result.Reject(userID, domain.ErrDuplicateAssignment.With("jobID", jobID, "userID", userID, "reason", "listed more than once"))
			continue
		}
		seen[userID] = struct{}{}

		if jobErr != nil {
			de, _ := domain.AsError(jobErr)
			result.Reject(userID, de.With("jobID", jobID))
			continue
		}

		err := step(job, userID)
		if err == nil {
			result.Accepted = append(result.Accepted, userID)
			continue
		}
		de, ok := domain.AsError(err)
		if !ok {
			s.logger.Error("crew assignment step failed",
				zap.Stringer("jobID", jobID),
				zap.Stringer("userID", userID),
				zap.Error(err),
			)
			de = domain.ErrInternal.Wrap(err)
		}
		result.Reject(userID, de)
	}

	return result, nil
}
