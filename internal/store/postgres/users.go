package postgres

import (
	"context"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

// GetUserByID is the privileged identity lookup behind the tenant directory.
// It deliberately takes no tenant predicate: role resolution must see the row
// before any tenant scoping exists, and it never consults the access policy.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	query := "SELECT id, tenant_id, role, email, phone, active, created_at FROM users WHERE id = $1"

	var u store.User

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.TenantID,
		&u.Role,
		&u.Email,
		&u.Phone,
		&u.Active,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, tenant_id, role, email, phone, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.TenantID,
		user.Role,
		user.Email,
		user.Phone,
		user.Active,
		user.CreatedAt,
	)
	return err
}

func (s *Store) SetUserRole(ctx context.Context, id uuid.UUID, role store.Role, tenantID *uuid.UUID) error {
	query := "UPDATE users SET role = $1, tenant_id = $2 WHERE id = $3"
	_, err := s.db.ExecContext(ctx, query, role, tenantID, id)
	return err
}

func (s *Store) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	query := "UPDATE users SET active = FALSE WHERE id = $1"
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}
