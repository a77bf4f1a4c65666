// Package backfill creates crew assignments for jobs that only carry the
// legacy single-technician assigned_to column.
package backfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"go.uber.org/zap"
)

type Source interface {
	ListAssignedJobs(ctx context.Context) ([]*domain.Job, error)
	TenantExists(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

type Assigner interface {
	BackfillAssignment(ctx context.Context, job *domain.Job, userID, assignedBy uuid.UUID) (*domain.CrewAssignment, error)
}

// Failure is a job whose assignment was rejected by validation.
type Failure struct {
	JobID     uuid.UUID `json:"jobID"`
	JobNumber string    `json:"jobNumber"`
	UserID    uuid.UUID `json:"userID"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
}

type Report struct {
	Total    int       `json:"total"`
	Inserted int       `json:"inserted"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures"`
}

// Run walks every job with assigned_to set. Existing pairs and jobs of
// unknown tenants are skipped; validation rejections are collected in the
// report. Any other error stops the run.
func Run(ctx context.Context, src Source, assigner Assigner, logger *zap.Logger) (*Report, error) {
	jobs, err := src.ListAssignedJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("backfill: list jobs: %w", err)
	}

	report := &Report{Total: len(jobs), Failures: []Failure{}}
	tenants := make(map[uuid.UUID]bool)

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		known, seen := tenants[job.TenantID]
		if !seen {
			known, err = src.TenantExists(ctx, job.TenantID)
			if err != nil {
				return report, fmt.Errorf("backfill: check tenant %s: %w", job.TenantID, err)
			}
			tenants[job.TenantID] = known
		}
		if !known {
			logger.Warn("skipping job of unknown tenant", zap.String("job", job.JobNumber), zap.Stringer("tenantID", job.TenantID))
			report.Skipped++
			continue
		}

		userID := *job.AssignedTo
		// the original assigner is unknown, so the technician is recorded as their own assigner
		_, err := assigner.BackfillAssignment(ctx, job, userID, userID)
		switch {
		case err == nil:
			report.Inserted++
		case errors.Is(err, domain.ErrDuplicateAssignment):
			report.Skipped++
		default:
			de, ok := domain.AsError(err)
			if !ok {
				return report, fmt.Errorf("backfill: job %s: %w", job.JobNumber, err)
			}
			logger.Warn("assignment rejected", zap.String("job", job.JobNumber), zap.String("code", de.Code))
			report.Failures = append(report.Failures, Failure{
				JobID:     job.ID,
				JobNumber: job.JobNumber,
				UserID:    userID,
				Code:      de.Code,
				Message:   de.Message,
			})
		}
	}

	logger.Info("backfill finished",
		zap.Int("total", report.Total),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)),
	)
	return report, nil
}
