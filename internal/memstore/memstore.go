// Package memstore is an in-process implementation of the scheduler's store
// and directories. It backs SCHEDULER_STORE=memory and the package tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

type planKey struct {
	tenantID     uuid.UUID
	technicianID uuid.UUID
	date         civil.Date
}

type assignmentKey struct {
	tenantID uuid.UUID
	jobID    uuid.UUID
	userID   uuid.UUID
}

type Store struct {
	mu          sync.RWMutex
	plans       map[uuid.UUID]*domain.DayPlan
	planKeys    map[planKey]uuid.UUID
	planLocks   map[uuid.UUID]*sync.Mutex
	assignments map[assignmentKey]*domain.CrewAssignment
	jobs        map[uuid.UUID]*domain.Job
	users       map[uuid.UUID]*domain.User
	tenants     map[uuid.UUID]struct{}

	// commitErrs are returned, one per call, by UpdateDayPlan before it
	// commits; tests use them to simulate lost write races.
	commitErrs []error
}

func New() *Store {
	return &Store{
		plans:       make(map[uuid.UUID]*domain.DayPlan),
		planKeys:    make(map[planKey]uuid.UUID),
		planLocks:   make(map[uuid.UUID]*sync.Mutex),
		assignments: make(map[assignmentKey]*domain.CrewAssignment),
		jobs:        make(map[uuid.UUID]*domain.Job),
		users:       make(map[uuid.UUID]*domain.User),
		tenants:     make(map[uuid.UUID]struct{}),
	}
}

/**********************************************
 * Seeding
 **********************************************/

func (s *Store) PutTenant(tenantID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tenantID] = struct{}{}
}

func (s *Store) PutJob(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
}

func (s *Store) PutUser(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	s.tenants[user.TenantID] = struct{}{}
}

// FailCommits queues errors returned by the next UpdateDayPlan commits.
func (s *Store) FailCommits(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErrs = append(s.commitErrs, errs...)
}

/**********************************************
 * Day plans
 **********************************************/

func (s *Store) CreateDayPlan(_ context.Context, plan *domain.DayPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := planKey{tenantID: plan.TenantID, technicianID: plan.TechnicianID, date: plan.PlanDate}
	if _, exists := s.planKeys[key]; exists {
		return domain.ErrDuplicatePlan
	}

	plan.Version = 1
	s.plans[plan.ID] = plan.Clone()
	s.planKeys[key] = plan.ID
	s.planLocks[plan.ID] = &sync.Mutex{}
	return nil
}

func (s *Store) GetDayPlan(_ context.Context, tenantID, planID uuid.UUID) (*domain.DayPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[planID]
	if !ok || plan.TenantID != tenantID {
		return nil, domain.ErrPlanNotFound.With("planID", planID)
	}
	return plan.Clone(), nil
}

func (s *Store) FindDayPlan(_ context.Context, tenantID, technicianID uuid.UUID, date civil.Date) (*domain.DayPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.planKeys[planKey{tenantID: tenantID, technicianID: technicianID, date: date}]
	if !ok {
		return nil, domain.ErrPlanNotFound.With("technicianID", technicianID, "date", date.String())
	}
	return s.plans[id].Clone(), nil
}

func (s *Store) UpdateDayPlan(_ context.Context, tenantID, planID uuid.UUID, fn func(plan *domain.DayPlan) error) (*domain.DayPlan, error) {
	s.mu.RLock()
	stored, ok := s.plans[planID]
	planLock := s.planLocks[planID]
	s.mu.RUnlock()
	if !ok || stored.TenantID != tenantID {
		return nil, domain.ErrPlanNotFound.With("planID", planID)
	}

	// the per-plan mutex plays the role of SELECT ... FOR UPDATE
	planLock.Lock()
	defer planLock.Unlock()

	s.mu.RLock()
	working := s.plans[planID].Clone()
	s.mu.RUnlock()

	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.commitErrs) > 0 {
		err := s.commitErrs[0]
		s.commitErrs = s.commitErrs[1:]
		return nil, err
	}
	if s.plans[planID].Version != working.Version {
		return nil, domain.ErrOptimisticLock.With("planID", planID)
	}

	working.Version++
	s.plans[planID] = working.Clone()
	return working, nil
}

/**********************************************
 * Crew assignments
 **********************************************/

func (s *Store) CreateCrewAssignment(_ context.Context, a *domain.CrewAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey{tenantID: a.TenantID, jobID: a.JobID, userID: a.UserID}
	if _, exists := s.assignments[key]; exists {
		return domain.ErrDuplicateAssignment.With("jobID", a.JobID, "userID", a.UserID)
	}
	cp := *a
	s.assignments[key] = &cp
	return nil
}

func (s *Store) GetCrewAssignment(_ context.Context, tenantID, jobID, userID uuid.UUID) (*domain.CrewAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[assignmentKey{tenantID: tenantID, jobID: jobID, userID: userID}]
	if !ok {
		return nil, domain.ErrAssignmentNotFound.With("jobID", jobID, "userID", userID)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) DeleteCrewAssignment(_ context.Context, tenantID, jobID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey{tenantID: tenantID, jobID: jobID, userID: userID}
	if _, ok := s.assignments[key]; !ok {
		return domain.ErrAssignmentNotFound.With("jobID", jobID, "userID", userID)
	}
	delete(s.assignments, key)
	return nil
}

func (s *Store) ListCrewAssignmentsByJob(_ context.Context, tenantID, jobID uuid.UUID) ([]*domain.CrewAssignment, error) {
	return s.listAssignments(func(a *domain.CrewAssignment) bool {
		return a.TenantID == tenantID && a.JobID == jobID
	}), nil
}

func (s *Store) ListCrewAssignmentsByUser(_ context.Context, tenantID, userID uuid.UUID) ([]*domain.CrewAssignment, error) {
	return s.listAssignments(func(a *domain.CrewAssignment) bool {
		return a.TenantID == tenantID && a.UserID == userID
	}), nil
}

func (s *Store) listAssignments(match func(a *domain.CrewAssignment) bool) []*domain.CrewAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.CrewAssignment{}
	for _, a := range s.assignments {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AssignedAt.Before(out[j].AssignedAt)
	})
	return out
}

/**********************************************
 * Directories
 **********************************************/

func (s *Store) GetJob(_ context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok || job.TenantID != tenantID {
		return nil, domain.ErrJobNotFound.With("jobID", jobID)
	}
	cp := *job
	return &cp, nil
}

// ListAssignedJobs returns jobs carrying an assigned_to value, ordered by job number.
func (s *Store) ListAssignedJobs(_ context.Context) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.Job{}
	for _, job := range s.jobs {
		if job.AssignedTo != nil {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].JobNumber < out[j].JobNumber
	})
	return out, nil
}

func (s *Store) TenantExists(_ context.Context, tenantID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tenants[tenantID]
	return ok, nil
}

func (s *Store) GetUser(_ context.Context, tenantID, userID uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok || user.TenantID != tenantID {
		return nil, domain.ErrUserNotFound.With("userID", userID)
	}
	cp := *user
	return &cp, nil
}

func (s *Store) IsSupervisor(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	user, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}
	return user.IsActive && user.IsSupervisor(), nil
}
