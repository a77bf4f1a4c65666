package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

func (r *Repository) GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*domain.User, error) {
	query := `
		SELECT email, full_name, role, is_active
		FROM users WHERE tenant_id = $1 AND id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout())
	defer cancel()

	user := &domain.User{
		ID:       userID,
		TenantID: tenantID,
	}

	dst := []any{&user.Email, &user.FullName, &user.Role, &user.IsActive}
	if err := r.dbpool.QueryRowContext(ctx, query, tenantID, userID).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound.With("userID", userID)
		}
		return nil, err
	}

	return user, nil
}

// IsSupervisor reports whether the user may assign crew. Inactive accounts
// never qualify.
func (r *Repository) IsSupervisor(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	user, err := r.GetUser(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}

	return user.IsActive && user.IsSupervisor(), nil
}
