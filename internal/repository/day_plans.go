package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

const selectDayPlan = `
	SELECT id, tenant_id, technician_id, plan_date, status, created_at, updated_at, version
	FROM day_plans
`

func scanDayPlan(row *sql.Row) (*domain.DayPlan, error) {
	var (
		plan     domain.DayPlan
		planDate time.Time
	)
	dst := []any{
		&plan.ID,
		&plan.TenantID,
		&plan.TechnicianID,
		&planDate,
		&plan.Status,
		&plan.CreatedAt,
		&plan.UpdatedAt,
		&plan.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	plan.PlanDate = civil.DateOf(planDate)
	return &plan, nil
}

func (r *Repository) CreateDayPlan(ctx context.Context, plan *domain.DayPlan) error {
	query := `
		INSERT INTO day_plans (id, tenant_id, technician_id, plan_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7)
		RETURNING version
	`

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	params := []any{
		plan.ID,
		plan.TenantID,
		plan.TechnicianID,
		plan.PlanDate.String(),
		plan.Status,
		plan.CreatedAt,
		plan.UpdatedAt,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&plan.Version); err != nil {
		return translate(err)
	}

	return nil
}

func (r *Repository) GetDayPlan(ctx context.Context, tenantID, planID uuid.UUID) (*domain.DayPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	plan, err := scanDayPlan(r.dbpool.QueryRowContext(ctx, selectDayPlan+` WHERE tenant_id = $1 AND id = $2`, tenantID, planID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlanNotFound.With("planID", planID)
		}
		return nil, err
	}

	if plan.Events, err = loadEvents(ctx, r.dbpool, plan.ID); err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *Repository) FindDayPlan(ctx context.Context, tenantID, technicianID uuid.UUID, date civil.Date) (*domain.DayPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	query := selectDayPlan + ` WHERE tenant_id = $1 AND technician_id = $2 AND plan_date = $3::date`
	plan, err := scanDayPlan(r.dbpool.QueryRowContext(ctx, query, tenantID, technicianID, date.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlanNotFound.With("technicianID", technicianID, "date", date.String())
		}
		return nil, err
	}

	if plan.Events, err = loadEvents(ctx, r.dbpool, plan.ID); err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdateDayPlan locks the plan row, hands the plan with its full event list
// to fn and writes back whatever fn changed. The version check in the final
// UPDATE catches writers that bypassed the row lock.
func (r *Repository) UpdateDayPlan(ctx context.Context, tenantID, planID uuid.UUID, fn func(plan *domain.DayPlan) error) (*domain.DayPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, r.transactionTimeout())
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return nil, translate(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	plan, err := scanDayPlan(tx.QueryRowContext(ctx, selectDayPlan+` WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, planID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlanNotFound.With("planID", planID)
		}
		return nil, translate(err)
	}
	if plan.Events, err = loadEvents(ctx, tx, plan.ID); err != nil {
		return nil, translate(err)
	}

	before := plan.Clone()
	if err := fn(plan); err != nil {
		return nil, err
	}

	if err := syncEvents(ctx, tx, before.Events, plan.Events); err != nil {
		return nil, translate(err)
	}

	query := `
		UPDATE day_plans
		SET
			status = $1,
			updated_at = $2,
			version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, query, plan.Status, plan.UpdatedAt, plan.ID, plan.Version).Scan(&plan.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOptimisticLock.With("planID", planID)
		}
		return nil, translate(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, translate(err)
	}

	return plan, nil
}
