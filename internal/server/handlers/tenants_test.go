package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"jobtrack/internal/store"
	"jobtrack/pkg/api"
)

func TestCreateTenant_ReturnsKeyOnce(t *testing.T) {
	s := &mockStore{}
	h := newTestHandlers(s, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/tenants",
		strings.NewReader(`{"name": "acme", "manager_email": "boss@acme.test"}`))
	rec := httptest.NewRecorder()

	h.CreateTenant(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp api.CreateTenantResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.HasPrefix(resp.APIKey, "jt_") {
		t.Errorf("expected jt_ key prefix, got %q", resp.APIKey)
	}
	if s.capturedUser == nil || s.capturedUser.Role != store.RoleManager {
		t.Errorf("expected a manager user to be provisioned, got %+v", s.capturedUser)
	}
	if s.capturedUser.TenantID == nil || s.capturedUser.TenantID.String() != resp.TenantID {
		t.Errorf("manager not bound to the new tenant")
	}
}

func TestCreateUser_ManagerCreatesMember(t *testing.T) {
	tenant := testTenant()
	principal := managerPrincipal(tenant.ID)

	s := &mockStore{}
	h := newTestHandlers(s, nil, nil, nil, &mockResolver{principal: principal})

	req := authedRequest(http.MethodPost, "/users",
		strings.NewReader(`{"role": "member", "email": "new@acme.test"}`), tenant, principal.ID)
	rec := httptest.NewRecorder()

	h.CreateUser(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if s.capturedUser == nil {
		t.Fatal("expected user to be written")
	}
	if s.capturedUser.TenantID == nil || *s.capturedUser.TenantID != tenant.ID {
		t.Errorf("user bound to wrong tenant: %v", s.capturedUser.TenantID)
	}
	if s.capturedUser.Role != store.RoleMember {
		t.Errorf("expected member role, got %q", s.capturedUser.Role)
	}
}

// A manager of another tenant presenting this tenant's API key must be
// rejected: the key identifies the tenant, but the acting principal's own
// tenant binding decides access.
func TestCreateUser_ForeignTenantManagerDenied(t *testing.T) {
	tenant := testTenant()
	otherTenant := uuid.New()
	foreignManager := managerPrincipal(otherTenant)

	s := &mockStore{}
	h := newTestHandlers(s, nil, nil, nil, &mockResolver{principal: foreignManager})

	req := authedRequest(http.MethodPost, "/users",
		strings.NewReader(`{"role": "manager"}`), tenant, foreignManager.ID)
	rec := httptest.NewRecorder()

	h.CreateUser(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if s.capturedUser != nil {
		t.Error("denied request must not write a user")
	}
}

func TestCreateUser_MemberDenied(t *testing.T) {
	tenant := testTenant()
	principal := memberPrincipal(tenant.ID)

	s := &mockStore{}
	h := newTestHandlers(s, nil, nil, nil, &mockResolver{principal: principal})

	req := authedRequest(http.MethodPost, "/users",
		strings.NewReader(`{"role": "member"}`), tenant, principal.ID)
	rec := httptest.NewRecorder()

	h.CreateUser(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if s.capturedUser != nil {
		t.Error("denied request must not write a user")
	}
}

func TestCreateUser_RejectsAdminRole(t *testing.T) {
	tenant := testTenant()
	principal := managerPrincipal(tenant.ID)
	h := newTestHandlers(nil, nil, nil, nil, &mockResolver{principal: principal})

	req := authedRequest(http.MethodPost, "/users",
		strings.NewReader(`{"role": "cross_tenant_admin"}`), tenant, principal.ID)
	rec := httptest.NewRecorder()

	h.CreateUser(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
