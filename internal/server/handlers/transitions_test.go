package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"jobtrack/internal/authz"
	"jobtrack/internal/store"
	"jobtrack/internal/workflow"
	"jobtrack/pkg/api"
)

func testTenant() *store.Tenant {
	return &store.Tenant{ID: uuid.New(), Name: "acme"}
}

func memberPrincipal(tenantID uuid.UUID) authz.Principal {
	return authz.Principal{ID: uuid.New(), TenantID: &tenantID, Role: store.RoleMember, Active: true}
}

func newTestHandlers(s *mockStore, engine *mockEngine, auditor *mockAuditor, sched *mockScheduler, resolver *mockResolver) *Handlers {
	if s == nil {
		s = &mockStore{}
	}
	if engine == nil {
		engine = &mockEngine{}
	}
	if auditor == nil {
		auditor = &mockAuditor{}
	}
	if sched == nil {
		sched = &mockScheduler{}
	}
	if resolver == nil {
		resolver = &mockResolver{}
	}
	return New(s, engine, auditor, sched, resolver, testLogger())
}

func TestTransitionJob_Success(t *testing.T) {
	tenant := testTenant()
	principal := memberPrincipal(tenant.ID)
	jobID := uuid.New()
	stageID := uuid.New()

	engine := &mockEngine{
		result: &workflow.TransitionResult{
			Job: &store.Job{
				ID:             jobID,
				TenantID:       tenant.ID,
				Name:           "roof repair",
				Status:         store.StatusActive,
				CurrentStageID: &stageID,
				Version:        2,
			},
			Record: &store.TransitionRecord{ID: 41},
		},
	}
	h := newTestHandlers(nil, engine, nil, nil, &mockResolver{principal: principal})

	body := `{"stage_id":"` + stageID.String() + `","notes":"approved"}`
	req := authedRequest(http.MethodPost, "/jobs/"+jobID.String()+"/transitions", strings.NewReader(body), tenant, principal.ID)
	req.SetPathValue("id", jobID.String())
	rr := httptest.NewRecorder()

	h.TransitionJob(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp api.TransitionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RecordID != 41 {
		t.Errorf("got record id %d, want 41", resp.RecordID)
	}
	if resp.Job.Version != 2 {
		t.Errorf("got version %d, want 2", resp.Job.Version)
	}
	if engine.capturedNotes != "approved" {
		t.Errorf("got notes %q, want %q", engine.capturedNotes, "approved")
	}
	if engine.capturedTarget.StageID == nil || *engine.capturedTarget.StageID != stageID {
		t.Errorf("engine did not receive the target stage")
	}
}

func TestTransitionJob_BothStageAndStatus(t *testing.T) {
	tenant := testTenant()
	principal := memberPrincipal(tenant.ID)
	h := newTestHandlers(nil, nil, nil, nil, &mockResolver{principal: principal})

	jobID := uuid.New()
	body := `{"stage_id":"` + uuid.NewString() + `","status":"active"}`
	req := authedRequest(http.MethodPost, "/jobs/"+jobID.String()+"/transitions", strings.NewReader(body), tenant, principal.ID)
	req.SetPathValue("id", jobID.String())
	rr := httptest.NewRecorder()

	h.TransitionJob(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTransitionJob_ErrorMapping(t *testing.T) {
	tenant := testTenant()
	principal := memberPrincipal(tenant.ID)
	jobID := uuid.New()

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"permission denied", &authz.PermissionDenied{Action: authz.ActionUpdate, ResourceID: jobID}, http.StatusForbidden},
		{"not found", &workflow.NotFound{Kind: "job", ID: jobID}, http.StatusNotFound},
		{"invalid transition", &workflow.InvalidTransition{From: "Lead", To: "Closed", Allowed: []string{"Active"}}, http.StatusUnprocessableEntity},
		{"stale conflict", &workflow.ConflictStale{JobID: jobID}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{err: tt.err}
			h := newTestHandlers(nil, engine, nil, nil, &mockResolver{principal: principal})

			body := `{"status":"active"}`
			req := authedRequest(http.MethodPost, "/jobs/"+jobID.String()+"/transitions", strings.NewReader(body), tenant, principal.ID)
			req.SetPathValue("id", jobID.String())
			rr := httptest.NewRecorder()

			h.TransitionJob(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestTransitionJob_InvalidTransitionCarriesAllowedSet(t *testing.T) {
	tenant := testTenant()
	principal := memberPrincipal(tenant.ID)
	jobID := uuid.New()

	engine := &mockEngine{err: &workflow.InvalidTransition{
		From:    "Lead",
		To:      "Closed",
		Allowed: []string{"Quoted", "Active"},
	}}
	h := newTestHandlers(nil, engine, nil, nil, &mockResolver{principal: principal})

	req := authedRequest(http.MethodPost, "/jobs/"+jobID.String()+"/transitions", strings.NewReader(`{"status":"complete"}`), tenant, principal.ID)
	req.SetPathValue("id", jobID.String())
	rr := httptest.NewRecorder()

	h.TransitionJob(rr, req)

	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Allowed) != 2 || resp.Allowed[0] != "Quoted" || resp.Allowed[1] != "Active" {
		t.Errorf("got allowed %v, want [Quoted Active]", resp.Allowed)
	}
}

func TestJobHistory_Pagination(t *testing.T) {
	tenant := testTenant()
	principal := memberPrincipal(tenant.ID)
	jobID := uuid.New()

	records := make([]store.TransitionRecord, 2)
	records[0] = store.TransitionRecord{ID: 11, JobID: jobID, CreatedAt: time.Now()}
	records[1] = store.TransitionRecord{ID: 12, JobID: jobID, CreatedAt: time.Now()}
	auditor := &mockAuditor{records: records}
	h := newTestHandlers(nil, nil, auditor, nil, &mockResolver{principal: principal})

	req := authedRequest(http.MethodGet, "/jobs/"+jobID.String()+"/history?after=10&limit=2", nil, tenant, principal.ID)
	req.SetPathValue("id", jobID.String())
	rr := httptest.NewRecorder()

	h.JobHistory(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if auditor.capturedAfterID != 10 || auditor.capturedLimit != 2 {
		t.Errorf("got after=%d limit=%d, want after=10 limit=2", auditor.capturedAfterID, auditor.capturedLimit)
	}

	var resp api.HistoryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(resp.Records))
	}
	// Page was full, so the last record id becomes the next cursor.
	if resp.NextCursor != 12 {
		t.Errorf("got next cursor %d, want 12", resp.NextCursor)
	}
}

func TestAuditBackfill_ReportsCount(t *testing.T) {
	tenant := testTenant()
	principal := authz.Principal{ID: uuid.New(), TenantID: &tenant.ID, Role: store.RoleManager, Active: true}

	auditor := &mockAuditor{backfilled: 7}
	h := newTestHandlers(nil, nil, auditor, nil, &mockResolver{principal: principal})

	req := authedRequest(http.MethodPost, "/audit/backfill", nil, tenant, principal.ID)
	rr := httptest.NewRecorder()

	h.AuditBackfill(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	var resp api.BackfillResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Records != 7 {
		t.Errorf("got %d records, want 7", resp.Records)
	}
}
