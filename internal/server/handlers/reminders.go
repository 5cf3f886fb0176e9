package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jobtrack/internal/reminder"
	"jobtrack/pkg/api"
)

// ScheduleReminder handles POST /jobs/{id}/reminders.
// Non-date responses, disabled reminders, and past fire times are silent
// no-ops reported with scheduled=false.
func (h *Handlers) ScheduleReminder(w http.ResponseWriter, r *http.Request) {
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

	var req api.ScheduleReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		h.httpError(w, "Invalid question id", http.StatusBadRequest)
		return
	}
	responseID, err := uuid.Parse(req.ResponseID)
	if err != nil {
		h.httpError(w, "Invalid response id", http.StatusBadRequest)
		return
	}

	resp := reminder.Response{
		QuestionID: questionID,
		ResponseID: responseID,
		IsDate:     req.ResponseIsDate,
		Enabled:    req.DefaultEnabled,
		Override:   req.EnabledOverride,
	}
	if req.ResponseDate != nil {
		resp.Date = *req.ResponseDate
	}

	rem, err := h.reminders.Schedule(ctx, principal.ID, jobID, resp, req.OffsetHours)
	if err != nil {
		h.domainError(w, err)
		return
	}

	if rem == nil {
		h.respondJson(w, http.StatusOK, api.ScheduleReminderResponse{Scheduled: false})
		return
	}
	h.respondJson(w, http.StatusCreated, api.ScheduleReminderResponse{
		Scheduled:  true,
		ReminderID: rem.ID.String(),
		FireAt:     &rem.FireAt,
	})
}

// InternalDispatchDue handles POST /internal/reminders/dispatch.
// Called by ops tooling to fan out due reminders outside the notifier's
// regular scan. Guarded by the system secret, not tenant auth.
func (h *Handlers) InternalDispatchDue(w http.ResponseWriter, r *http.Request) {
	n, err := h.reminders.DispatchDue(r.Context(), time.Now())
	if err != nil {
		h.httpError(w, "Dispatch failed", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, api.DispatchResponse{Dispatched: n})
}
