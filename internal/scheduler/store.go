package scheduler

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

// Store persists day plans and crew assignments. Every call is scoped to a
// tenant; rows of other tenants behave as if they did not exist.
type Store interface {
	// CreateDayPlan fails with domain.ErrDuplicatePlan when the
	// (tenant, technician, date) slot is taken.
	CreateDayPlan(ctx context.Context, plan *domain.DayPlan) error
	GetDayPlan(ctx context.Context, tenantID, planID uuid.UUID) (*domain.DayPlan, error)
	FindDayPlan(ctx context.Context, tenantID, technicianID uuid.UUID, date civil.Date) (*domain.DayPlan, error)
	// UpdateDayPlan runs fn against a working copy of the plan and its full
	// event list inside one transaction. Nothing is written when fn fails.
	// Implementations serialize concurrent updates of the same plan and
	// report a lost race as a retryable domain error.
	UpdateDayPlan(ctx context.Context, tenantID, planID uuid.UUID, fn func(plan *domain.DayPlan) error) (*domain.DayPlan, error)

	// CreateCrewAssignment fails with domain.ErrDuplicateAssignment when the
	// pair already exists.
	CreateCrewAssignment(ctx context.Context, a *domain.CrewAssignment) error
	GetCrewAssignment(ctx context.Context, tenantID, jobID, userID uuid.UUID) (*domain.CrewAssignment, error)
	DeleteCrewAssignment(ctx context.Context, tenantID, jobID, userID uuid.UUID) error
	ListCrewAssignmentsByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]*domain.CrewAssignment, error)
	ListCrewAssignmentsByUser(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.CrewAssignment, error)
}

// JobDirectory is the job domain's read side.
type JobDirectory interface {
	// GetJob fails with domain.ErrJobNotFound.
	GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error)
}

// UserDirectory is the user/auth domain's read side.
type UserDirectory interface {
	// GetUser fails with domain.ErrUserNotFound.
	GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*domain.User, error)
	IsSupervisor(ctx context.Context, tenantID, userID uuid.UUID) (bool, error)
}

// Recorder receives operation outcomes for observability.
type Recorder interface {
	ObservePlanOperation(op string, err error)
	ObserveAssignment(op string, err error)
	ObserveRetry(op string)
}

type nopRecorder struct{}

func (nopRecorder) ObservePlanOperation(string, error) {}
func (nopRecorder) ObserveAssignment(string, error)    {}
func (nopRecorder) ObserveRetry(string)                {}
