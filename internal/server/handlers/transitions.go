package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"jobtrack/internal/store"
	"jobtrack/internal/workflow"
	"jobtrack/pkg/api"
)

// TransitionJob handles POST /jobs/{id}/transitions.
// Exactly one of stage_id and status must be set.
func (h *Handlers) TransitionJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	var req api.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if (req.StageID == nil) == (req.Status == nil) {
		h.httpError(w, "Exactly one of stage_id and status is required", http.StatusBadRequest)
		return
	}

	var target workflow.Target
	if req.StageID != nil {
		stageID, err := uuid.Parse(*req.StageID)
		if err != nil {
			h.httpError(w, "Invalid stage id", http.StatusBadRequest)
			return
		}
		target.StageID = &stageID
	}
	if req.Status != nil {
		status := store.StatusCategory(*req.Status)
		switch status {
		case store.StatusPlanning, store.StatusActive, store.StatusOnHold, store.StatusComplete:
		default:
			h.httpError(w, "Unknown status", http.StatusBadRequest)
			return
		}
		target.Status = &status
	}

	result, err := h.engine.Apply(ctx, principal.ID, jobID, target, req.Notes)
	if err != nil {
		h.domainError(w, err)
		return
	}

	resp := api.TransitionResponse{
		Job:  jobResponse(result.Job),
		NoOp: result.NoOp,
	}
	if result.Record != nil {
		resp.RecordID = result.Record.ID
	}
	h.respondJson(w, http.StatusOK, resp)
}

// JobHistory handles GET /jobs/{id}/history.
// Pages forward with ?after=<record id>&limit=<n>.
func (h *Handlers) JobHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	afterID := int64(0)
	if s := r.URL.Query().Get("after"); s != "" {
		afterID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.httpError(w, "Invalid after cursor", http.StatusBadRequest)
			return
		}
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 || limit > 500 {
			h.httpError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
	}

	records, err := h.audit.History(ctx, principal.ID, jobID, afterID, limit)
	if err != nil {
		h.domainError(w, err)
		return
	}

	resp := api.HistoryResponse{Records: make([]api.TransitionRecordResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, recordResponse(rec))
	}
	if len(records) == limit {
		resp.NextCursor = records[len(records)-1].ID
	}
	h.respondJson(w, http.StatusOK, resp)
}

// StageRollup handles GET /rollup.
// Returns the historical per-stage aggregate for the calling tenant.
func (h *Handlers) StageRollup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	entityType := store.EntityType(r.URL.Query().Get("entity_type"))
	if entityType == "" {
		entityType = store.EntityJob
	}

	rows, err := h.audit.Rollup(ctx, principal.ID, tenant.ID, entityType)
	if err != nil {
		h.domainError(w, err)
		return
	}

	resp := api.StageRollupResponse{Rows: make([]api.StageRollupRow, 0, len(rows))}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, api.StageRollupRow{
			StageID:        row.StageID.String(),
			StageName:      row.StageName,
			JobCount:       row.JobCount,
			AvgDurationSec: row.AvgDurationSec,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}

// AuditBackfill handles POST /audit/backfill.
// Writes synthetic creation records for jobs that predate the audit log.
// Manager only; safe to run repeatedly.
func (h *Handlers) AuditBackfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	n, err := h.audit.Backfill(ctx, principal.ID, tenant.ID)
	if err != nil {
		h.domainError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.BackfillResponse{Records: n})
}

func recordResponse(rec store.TransitionRecord) api.TransitionRecordResponse {
	resp := api.TransitionRecordResponse{
		ID:         rec.ID,
		FromStatus: string(rec.FromStatus),
		ToStatus:   string(rec.ToStatus),
		ActorID:    rec.ActorID.String(),
		Notes:      rec.Notes,
		Backfill:   rec.Backfill,
		CreatedAt:  rec.CreatedAt,
	}
	if rec.FromStageID != nil {
		s := rec.FromStageID.String()
		resp.FromStageID = &s
	}
	if rec.ToStageID != nil {
		s := rec.ToStageID.String()
		resp.ToStageID = &s
	}
	return resp
}
