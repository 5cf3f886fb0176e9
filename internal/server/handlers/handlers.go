// Package handlers contains HTTP handlers for the jobtrack API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"jobtrack/internal/authz"
	"jobtrack/internal/reminder"
	"jobtrack/internal/store"
	"jobtrack/internal/workflow"
	"jobtrack/pkg/api"
)

// StoreFactory combines the store interfaces the API server needs.
type StoreFactory interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	Ping(ctx context.Context) error
	store.TenantStore
	store.DirectoryStore
	store.StageStore
	store.JobStore
}

// Transitioner applies stage/status changes. Implemented by workflow.Engine.
type Transitioner interface {
	Apply(ctx context.Context, principalID, jobID uuid.UUID, target workflow.Target, notes string) (*workflow.TransitionResult, error)
}

// Auditor serves transition history and rollups. Implemented by audit.Log.
type Auditor interface {
	History(ctx context.Context, principalID, jobID uuid.UUID, afterID int64, limit int) ([]store.TransitionRecord, error)
	Rollup(ctx context.Context, principalID, tenantID uuid.UUID, entityType store.EntityType) ([]store.StageRollupRow, error)
	Backfill(ctx context.Context, principalID, tenantID uuid.UUID) (int64, error)
}

// ReminderScheduler creates and dispatches reminders. Implemented by
// reminder.Scheduler.
type ReminderScheduler interface {
	Schedule(ctx context.Context, principalID, jobID uuid.UUID, resp reminder.Response, offsetHours int) (*store.Reminder, error)
	DispatchDue(ctx context.Context, now time.Time) (int, error)
}

// Resolver looks up acting principals. Implemented by authz.Directory.
type Resolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (authz.Principal, error)
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store     StoreFactory
	engine    Transitioner
	audit     Auditor
	reminders ReminderScheduler
	directory Resolver
	logger    *slog.Logger
}

// New creates a new Handlers instance.
func New(s StoreFactory, engine Transitioner, auditor Auditor, reminders ReminderScheduler, directory Resolver, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:     s,
		engine:    engine,
		audit:     auditor,
		reminders: reminders,
		directory: directory,
		logger:    logger,
	}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// domainError maps domain errors onto HTTP responses. Invalid transitions
// carry the allowed set so clients can present the valid options.
func (h *Handlers) domainError(w http.ResponseWriter, err error) {
	var denied *authz.PermissionDenied
	var notFound *workflow.NotFound
	var invalid *workflow.InvalidTransition
	var stale *workflow.ConflictStale

	switch {
	case errors.As(err, &denied):
		h.httpError(w, "Forbidden", http.StatusForbidden)
	case errors.As(err, &notFound):
		h.httpError(w, notFound.Error(), http.StatusNotFound)
	case errors.As(err, &invalid):
		h.respondJson(w, http.StatusUnprocessableEntity, api.ErrorResponse{
			Error:   "Invalid transition",
			Code:    strconv.Itoa(http.StatusUnprocessableEntity),
			Details: invalid.Error(),
			Allowed: invalid.Allowed,
		})
	case errors.As(err, &stale):
		h.httpError(w, stale.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrStageInUse):
		h.httpError(w, "Stage is still referenced by jobs", http.StatusConflict)
	default:
		h.logger.Error("request failed", "error", err)
		h.httpError(w, "Internal error", http.StatusInternalServerError)
	}
}

func jobResponse(job *store.Job) api.JobResponse {
	resp := api.JobResponse{
		ID:        job.ID.String(),
		Name:      job.Name,
		Status:    string(job.Status),
		Version:   job.Version,
		CreatedAt: job.CreatedAt,
	}
	if job.CurrentStageID != nil {
		s := job.CurrentStageID.String()
		resp.CurrentStageID = &s
	}
	resp.StageEnteredAt = job.StageEnteredAt
	return resp
}
