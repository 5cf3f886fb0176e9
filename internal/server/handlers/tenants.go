package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jobtrack/internal/authz"
	"jobtrack/internal/server/middleware"
	"jobtrack/internal/store"
	"jobtrack/pkg/api"
)

// CreateTenant handles POST /tenants.
// It provisions the tenant, its first manager, and an API key. The raw key
// is returned exactly once; only the hash is stored.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		h.httpError(w, "Tenant name is required", http.StatusBadRequest)
		return
	}

	// Generate a secure random API key (32 bytes)
	rawKeyBytes := make([]byte, 32)
	if _, err := rand.Read(rawKeyBytes); err != nil {
		h.httpError(w, "Entropy failure", http.StatusInternalServerError)
		return
	}
	apiKey := "jt_" + hex.EncodeToString(rawKeyBytes)

	tenant := &store.Tenant{
		ID:        uuid.New(),
		Name:      req.Name,
		CreatedAt: time.Now(),
	}

	if err := h.store.CreateTenant(ctx, tenant, authz.HashAPIKey(apiKey)); err != nil {
		h.httpError(w, "Failed to create tenant", http.StatusInternalServerError)
		return
	}

	manager := &store.User{
		ID:        uuid.New(),
		TenantID:  &tenant.ID,
		Role:      store.RoleManager,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if req.ManagerEmail != "" {
		manager.Email = &req.ManagerEmail
	}
	if req.ManagerPhone != "" {
		manager.Phone = &req.ManagerPhone
	}
	if err := h.store.CreateUser(ctx, manager); err != nil {
		h.httpError(w, "Failed to create manager", http.StatusInternalServerError)
		return
	}

	// Return the raw key. This is the only time the caller sees it.
	h.respondJson(w, http.StatusCreated, api.CreateTenantResponse{
		TenantID:  tenant.ID.String(),
		Name:      tenant.Name,
		APIKey:    apiKey,
		ManagerID: manager.ID.String(),
	})
}

// CreateUser handles POST /users.
// Only managers may add principals, and only to the tenant the API key
// belongs to. A manager from another tenant holding this tenant's key
// must be denied like any other cross-tenant actor.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req api.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	role := store.Role(req.Role)
	if role != store.RoleMember && role != store.RoleManager {
		h.httpError(w, "Role must be member or manager", http.StatusBadRequest)
		return
	}

	userID := uuid.New()
	if err := authz.Authorize(principal, authz.ActionCreate, authz.Resource{
		Kind:     authz.KindUser,
		ID:       userID,
		TenantID: &tenant.ID,
	}); err != nil {
		h.domainError(w, err)
		return
	}

	user := &store.User{
		ID:        userID,
		TenantID:  &tenant.ID,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if req.Email != "" {
		user.Email = &req.Email
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}

	if err := h.store.CreateUser(ctx, user); err != nil {
		h.httpError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.CreateUserResponse{UserID: user.ID.String()})
}

// caller extracts the authenticated tenant and resolves the acting principal.
// Writes the error response itself when either is missing.
func (h *Handlers) caller(w http.ResponseWriter, r *http.Request) (*store.Tenant, authz.Principal, bool) {
	ctx := r.Context()

	tenant, ok := middleware.TenantFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return nil, authz.Principal{}, false
	}

	actorID, ok := middleware.ActorIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return nil, authz.Principal{}, false
	}

	principal, err := h.directory.Resolve(ctx, actorID)
	if err != nil {
		h.httpError(w, "Failed to resolve principal", http.StatusInternalServerError)
		return nil, authz.Principal{}, false
	}

	return tenant, principal, true
}
