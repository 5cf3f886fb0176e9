// Package middleware contains HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"jobtrack/internal/authz"
	"jobtrack/internal/store"
)

// tenantKey is the context key for the authenticated tenant.
type tenantKey struct{}

// actorKey is the context key for the acting principal's user ID.
type actorKey struct{}

// AuthMiddleware validates the Bearer API key and resolves the calling
// tenant. The acting user is taken from the X-Actor-ID header; the access
// policy decides what that user may do.
func AuthMiddleware(tenants store.TenantStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			tenant, err := tenants.GetTenantByAPIKeyHash(r.Context(), authz.HashAPIKey(parts[1]))
			if err != nil {
				http.Error(w, "authentication failed", http.StatusInternalServerError)
				return
			}
			if tenant == nil {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			actorID, err := uuid.Parse(r.Header.Get("X-Actor-ID"))
			if err != nil {
				http.Error(w, "missing or invalid X-Actor-ID header", http.StatusUnauthorized)
				return
			}

			ctx := WithTenant(r.Context(), tenant)
			ctx = WithActor(ctx, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithTenant returns a context carrying the authenticated tenant.
func WithTenant(ctx context.Context, tenant *store.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// WithActor returns a context carrying the acting user's ID.
func WithActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// TenantFromContext extracts the authenticated tenant from the context.
func TenantFromContext(ctx context.Context) (*store.Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(*store.Tenant)
	return t, ok
}

// ActorIDFromContext extracts the acting user's ID from the context.
func ActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorKey{}).(uuid.UUID)
	return id, ok
}
