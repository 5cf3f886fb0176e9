package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jobtrack/internal/authz"
	"jobtrack/internal/store"
	"jobtrack/pkg/api"
)

// CreateStage handles POST /stages.
// Stage definitions are manager-only; the policy enforces that through the
// stage resource kind.
func (h *Handlers) CreateStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req api.CreateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	entityType, ok := parseEntityType(req.EntityType)
	if !ok {
		h.httpError(w, "Unknown entity type", http.StatusBadRequest)
		return
	}
	category := store.StatusCategory(req.Category)
	switch category {
	case store.StatusPlanning, store.StatusActive, store.StatusOnHold, store.StatusComplete:
	default:
		h.httpError(w, "Unknown status category", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Sequence < 1 {
		h.httpError(w, "Name and a positive sequence are required", http.StatusBadRequest)
		return
	}

	stage := &store.Stage{
		ID:         uuid.New(),
		TenantID:   &tenant.ID,
		EntityType: entityType,
		Name:       req.Name,
		Sequence:   req.Sequence,
		Category:   category,
		Color:      req.Color,
		Active:     true,
		CreatedAt:  time.Now(),
	}

	if err := authz.Authorize(principal, authz.ActionUpdate, authz.Resource{
		Kind:     authz.KindStage,
		ID:       stage.ID,
		TenantID: &tenant.ID,
	}); err != nil {
		h.domainError(w, err)
		return
	}

	if err := h.store.CreateStage(ctx, nil, stage); err != nil {
		h.httpError(w, "Failed to create stage", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.CreateStageResponse{StageID: stage.ID.String()})
}

// CreateStageEdge handles POST /stages/edges.
func (h *Handlers) CreateStageEdge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req api.CreateStageEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	entityType, ok := parseEntityType(req.EntityType)
	if !ok {
		h.httpError(w, "Unknown entity type", http.StatusBadRequest)
		return
	}
	fromID, err := uuid.Parse(req.FromStageID)
	if err != nil {
		h.httpError(w, "Invalid from_stage_id", http.StatusBadRequest)
		return
	}
	toID, err := uuid.Parse(req.ToStageID)
	if err != nil {
		h.httpError(w, "Invalid to_stage_id", http.StatusBadRequest)
		return
	}

	if err := authz.Authorize(principal, authz.ActionUpdate, authz.Resource{
		Kind:     authz.KindStage,
		ID:       fromID,
		TenantID: &tenant.ID,
	}); err != nil {
		h.domainError(w, err)
		return
	}

	edge := &store.StageEdge{
		TenantID:   &tenant.ID,
		EntityType: entityType,
		FromStage:  fromID,
		ToStage:    toID,
	}
	if err := h.store.CreateEdge(ctx, nil, edge); err != nil {
		h.httpError(w, "Failed to create edge", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// ListStages handles GET /stages.
// Returns the tenant's stages, falling back to the shared system set when
// the tenant has not customized its workflow.
func (h *Handlers) ListStages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	entityType := store.EntityType(r.URL.Query().Get("entity_type"))
	if entityType == "" {
		entityType = store.EntityJob
	}

	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{
		Kind:     authz.KindStage,
		TenantID: &tenant.ID,
	}); err != nil {
		h.domainError(w, err)
		return
	}

	stages, err := h.store.ListStages(ctx, &tenant.ID, entityType)
	if err != nil {
		h.httpError(w, "Failed to list stages", http.StatusInternalServerError)
		return
	}
	if len(stages) == 0 {
		stages, err = h.store.ListStages(ctx, nil, entityType)
		if err != nil {
			h.httpError(w, "Failed to list stages", http.StatusInternalServerError)
			return
		}
	}

	resp := make([]api.StageResponse, 0, len(stages))
	for _, s := range stages {
		resp = append(resp, api.StageResponse{
			ID:       s.ID.String(),
			Name:     s.Name,
			Sequence: s.Sequence,
			Category: string(s.Category),
			Color:    s.Color,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}

// DeactivateStage handles DELETE /stages/{id}.
// Stages referenced by history are retired, never deleted; stages still
// referenced by live jobs are refused.
func (h *Handlers) DeactivateStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	stageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid stage id", http.StatusBadRequest)
		return
	}

	stage, err := h.store.GetStageByID(ctx, stageID)
	if err != nil {
		h.httpError(w, "Stage not found", http.StatusNotFound)
		return
	}

	if err := authz.Authorize(principal, authz.ActionDelete, authz.Resource{
		Kind:     authz.KindStage,
		ID:       stage.ID,
		TenantID: stage.TenantID,
	}); err != nil {
		h.domainError(w, err)
		return
	}

	if err := h.store.DeactivateStage(ctx, stageID); err != nil {
		h.domainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseEntityType(s string) (store.EntityType, bool) {
	switch store.EntityType(s) {
	case store.EntityJob:
		return store.EntityJob, true
	case store.EntityProject:
		return store.EntityProject, true
	}
	return "", false
}
