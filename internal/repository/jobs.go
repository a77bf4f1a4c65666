package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

const selectJob = `
	SELECT id, tenant_id, job_number, title, status, scheduled_start, duration_minutes, assigned_to
	FROM jobs
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job            domain.Job
		scheduledStart sql.NullTime
		assignedTo     uuid.NullUUID
	)
	dst := []any{
		&job.ID,
		&job.TenantID,
		&job.JobNumber,
		&job.Title,
		&job.Status,
		&scheduledStart,
		&job.DurationMinutes,
		&assignedTo,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if scheduledStart.Valid {
		start := scheduledStart.Time
		job.ScheduledStart = &start
	}
	if assignedTo.Valid {
		job.AssignedTo = &assignedTo.UUID
	}
	return &job, nil
}

func (r *Repository) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	job, err := scanJob(r.dbpool.QueryRowContext(ctx, selectJob+` WHERE tenant_id = $1 AND id = $2`, tenantID, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound.With("jobID", jobID)
		}
		return nil, err
	}

	return job, nil
}

// ListAssignedJobs returns every job whose legacy assigned_to column is set,
// oldest first. It spans tenants and is only used by operator tooling.
func (r *Repository) ListAssignedJobs(ctx context.Context) ([]*domain.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, selectJob+` WHERE assigned_to IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}

func (r *Repository) TenantExists(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	var exists bool
	if err := r.dbpool.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}
