package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

func (r *Repository) CreateCrewAssignment(ctx context.Context, a *domain.CrewAssignment) error {
	query := `
		INSERT INTO job_assignments (tenant_id, job_id, user_id, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	params := []any{a.TenantID, a.JobID, a.UserID, a.AssignedBy, a.AssignedAt}
	if _, err := r.dbpool.ExecContext(ctx, query, params...); err != nil {
		err = translate(err)
		if errors.Is(err, domain.ErrDuplicateAssignment) {
			return domain.ErrDuplicateAssignment.With("jobID", a.JobID, "userID", a.UserID)
		}
		return err
	}

	return nil
}

func (r *Repository) GetCrewAssignment(ctx context.Context, tenantID, jobID, userID uuid.UUID) (*domain.CrewAssignment, error) {
	query := `
		SELECT assigned_at, assigned_by
		FROM job_assignments
		WHERE tenant_id = $1 AND job_id = $2 AND user_id = $3
	`

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	a := &domain.CrewAssignment{
		TenantID: tenantID,
		JobID:    jobID,
		UserID:   userID,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, tenantID, jobID, userID).Scan(&a.AssignedAt, &a.AssignedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAssignmentNotFound.With("jobID", jobID, "userID", userID)
		}
		return nil, err
	}

	return a, nil
}

func (r *Repository) DeleteCrewAssignment(ctx context.Context, tenantID, jobID, userID uuid.UUID) error {
	query := `DELETE FROM job_assignments WHERE tenant_id = $1 AND job_id = $2 AND user_id = $3`

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, tenantID, jobID, userID)
	if err != nil {
		return translate(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAssignmentNotFound.With("jobID", jobID, "userID", userID)
	}

	return nil
}

func (r *Repository) ListCrewAssignmentsByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]*domain.CrewAssignment, error) {
	query := `
		SELECT tenant_id, job_id, user_id, assigned_at, assigned_by
		FROM job_assignments
		WHERE tenant_id = $1 AND job_id = $2
		ORDER BY assigned_at
	`
	return r.listCrewAssignments(ctx, query, tenantID, jobID)
}

func (r *Repository) ListCrewAssignmentsByUser(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.CrewAssignment, error) {
	query := `
		SELECT tenant_id, job_id, user_id, assigned_at, assigned_by
		FROM job_assignments
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY assigned_at
	`
	return r.listCrewAssignments(ctx, query, tenantID, userID)
}

func (r *Repository) listCrewAssignments(ctx context.Context, query string, args ...any) ([]*domain.CrewAssignment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []*domain.CrewAssignment{}
	for rows.Next() {
		var a domain.CrewAssignment
		dst := []any{&a.TenantID, &a.JobID, &a.UserID, &a.AssignedAt, &a.AssignedBy}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}
