// Package authz contains the tenant directory and the access policy
// evaluator. The directory is the single source of truth for a principal's
// tenant and role; the policy is a pure function over the directory's result.
package authz

import (
	"context"
	"database/sql"
	"errors"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

// Principal is a resolved acting identity. The zero value carries RoleNone
// and no tenant, which denies every action.
type Principal struct {
	ID       uuid.UUID
	TenantID *uuid.UUID
	Role     store.Role
	Active   bool
}

// Directory resolves principals through a privileged, non-recursive lookup.
// It must never route identity resolution back through the resource-access
// policy: the policy consumes Resolve's result, never re-triggers it.
type Directory struct {
	users store.DirectoryStore
}

func NewDirectory(users store.DirectoryStore) *Directory {
	return &Directory{users: users}
}

// Resolve looks up the principal's tenant and role. An unknown or
// deactivated principal resolves to the weakest identity rather than an
// error; a principal missing from the directory is never silently upgraded.
func (d *Directory) Resolve(ctx context.Context, id uuid.UUID) (Principal, error) {
	u, err := d.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Principal{ID: id, Role: store.RoleNone}, nil
		}
		return Principal{}, err
	}

	if !u.Active {
		return Principal{ID: id, Role: store.RoleNone}, nil
	}

	return Principal{
		ID:       u.ID,
		TenantID: u.TenantID,
		Role:     u.Role,
		Active:   true,
	}, nil
}
