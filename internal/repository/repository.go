package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tophand-tech/dayplan/backend/internal/config"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

// Repository is the PostgreSQL implementation of the scheduler store and of
// the job and user directories.
type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) queryTimeout() time.Duration {
	return time.Duration(r.cfg.Database.QueryTimeout) * time.Second
}

func (r *Repository) transactionTimeout() time.Duration {
	return time.Duration(r.cfg.Database.TransactionTimeout) * time.Second
}

// Ping is used by the health endpoint.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	return r.dbpool.PingContext(ctx)
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

// translate maps PostgreSQL failures onto the domain taxonomy. Errors that
// do not correspond to a rejection are returned unchanged.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return domain.ErrTxConflict.Wrap(err)
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "day_plans_technician_date_key":
			return domain.ErrDuplicatePlan.Wrap(err)
		case "job_assignments_pkey":
			return domain.ErrDuplicateAssignment.Wrap(err)
		case "day_plan_events_sequence_key":
			// a concurrent writer got past the plan lock; retrying rereads the list
			return domain.ErrTxConflict.Wrap(err)
		}
	case pgForeignKeyViolation:
		switch pgErr.ConstraintName {
		case "day_plans_technician_id_fkey", "job_assignments_user_id_fkey", "job_assignments_assigned_by_fkey":
			return domain.ErrUserNotFound.Wrap(err)
		case "job_assignments_job_id_fkey", "day_plan_events_job_id_fkey":
			return domain.ErrJobNotFound.Wrap(err)
		case "day_plans_tenant_id_fkey", "job_assignments_tenant_id_fkey":
			return domain.ErrInvalidRequest.Withf("unknown tenant").Wrap(err)
		}
	}

	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
