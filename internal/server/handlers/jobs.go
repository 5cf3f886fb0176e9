package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jobtrack/internal/authz"
	"jobtrack/internal/store"
	"jobtrack/pkg/api"
)

// CreateJob handles POST /jobs.
// Jobs start in planning with no stage; the first transition enters the
// workflow.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req api.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		h.httpError(w, "Job name is required", http.StatusBadRequest)
		return
	}

	job := &store.Job{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Name:      req.Name,
		Status:    store.StatusPlanning,
		CreatedBy: principal.ID,
		Version:   1,
		CreatedAt: time.Now(),
	}

	if err := authz.Authorize(principal, authz.ActionCreate, authz.Resource{
		Kind:      authz.KindJob,
		ID:        job.ID,
		TenantID:  &tenant.ID,
		CreatedBy: principal.ID,
	}); err != nil {
		h.domainError(w, err)
		return
	}

	if err := h.store.CreateJob(ctx, nil, job); err != nil {
		h.httpError(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.CreateJobResponse{JobID: job.ID.String()})
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJob(ctx, tenant.ID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.httpError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{
		Kind:      authz.KindJob,
		ID:        job.ID,
		TenantID:  &job.TenantID,
		CreatedBy: job.CreatedBy,
	}); err != nil {
		h.domainError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, jobResponse(job))
}
