// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

import "time"

// CreateTenantRequest is the request body for provisioning a tenant.
// The manager fields seed the tenant's first principal.
type CreateTenantRequest struct {
	Name         string `json:"name"`
	ManagerEmail string `json:"manager_email,omitempty"`
	ManagerPhone string `json:"manager_phone,omitempty"`
}

// CreateTenantResponse returns the new tenant and its API key. The key is
// shown exactly once; only its hash is stored.
type CreateTenantResponse struct {
	TenantID  string `json:"tenant_id"`
	Name      string `json:"name"`
	APIKey    string `json:"api_key"`
	ManagerID string `json:"manager_id"`
}

// CreateUserRequest adds a principal to the calling tenant.
type CreateUserRequest struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CreateUserResponse struct {
	UserID string `json:"user_id"`
}

// CreateJobRequest is the request body for creating a job. Jobs start in
// planning with no stage; the first transition enters the workflow.
type CreateJobRequest struct {
	Name string `json:"name"`
}

type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	CurrentStageID *string    `json:"current_stage_id,omitempty"`
	StageEnteredAt *time.Time `json:"stage_entered_at,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TransitionRequest asks for a stage or status change. Exactly one of
// StageID and Status must be set.
type TransitionRequest struct {
	StageID *string `json:"stage_id,omitempty"`
	Status  *string `json:"status,omitempty"`
	Notes   string  `json:"notes,omitempty"`
}

type TransitionResponse struct {
	Job      JobResponse `json:"job"`
	RecordID int64       `json:"record_id,omitempty"`
	NoOp     bool        `json:"no_op"`
}

// TransitionRecordResponse is one audit history entry.
type TransitionRecordResponse struct {
	ID          int64     `json:"id"`
	FromStageID *string   `json:"from_stage_id,omitempty"`
	ToStageID   *string   `json:"to_stage_id,omitempty"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	ActorID     string    `json:"actor_id"`
	Notes       string    `json:"notes,omitempty"`
	Backfill    bool      `json:"backfill,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryResponse is one page of a job's transition history. NextCursor is
// the id to pass as ?after= for the next page; 0 means no more pages.
type HistoryResponse struct {
	Records    []TransitionRecordResponse `json:"records"`
	NextCursor int64                      `json:"next_cursor,omitempty"`
}

// StageRollupResponse is the historical per-stage aggregate.
type StageRollupResponse struct {
	Rows []StageRollupRow `json:"rows"`
}

type StageRollupRow struct {
	StageID        string  `json:"stage_id"`
	StageName      string  `json:"stage_name"`
	JobCount       int64   `json:"job_count"`
	AvgDurationSec float64 `json:"avg_duration_seconds"`
}

// CreateStageRequest defines a workflow stage for the calling tenant.
type CreateStageRequest struct {
	EntityType string `json:"entity_type"`
	Name       string `json:"name"`
	Sequence   int    `json:"sequence"`
	Category   string `json:"category"`
	Color      string `json:"color,omitempty"`
}

type CreateStageResponse struct {
	StageID string `json:"stage_id"`
}

// CreateStageEdgeRequest adds one allowed transition to the tenant's graph.
type CreateStageEdgeRequest struct {
	EntityType  string `json:"entity_type"`
	FromStageID string `json:"from_stage_id"`
	ToStageID   string `json:"to_stage_id"`
}

// StageResponse represents a stage in API responses.
type StageResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
	Category string `json:"category"`
	Color    string `json:"color,omitempty"`
}

// ScheduleReminderRequest derives a reminder from a dated response.
type ScheduleReminderRequest struct {
	QuestionID      string     `json:"question_id"`
	ResponseID      string     `json:"response_id"`
	ResponseIsDate  bool       `json:"response_is_date"`
	ResponseDate    *time.Time `json:"response_date,omitempty"`
	DefaultEnabled  bool       `json:"default_enabled"`
	EnabledOverride *bool      `json:"enabled_override,omitempty"`
	OffsetHours     int        `json:"offset_hours"`
}

// ScheduleReminderResponse reports the outcome. Scheduled is false when the
// request was a silent no-op (past date, non-date response, disabled).
type ScheduleReminderResponse struct {
	Scheduled  bool       `json:"scheduled"`
	ReminderID string     `json:"reminder_id,omitempty"`
	FireAt     *time.Time `json:"fire_at,omitempty"`
}

// BackfillResponse reports how many synthetic records a backfill wrote.
type BackfillResponse struct {
	Records int64 `json:"records"`
}

// DispatchResponse reports how many due reminders were fanned out.
type DispatchResponse struct {
	Dispatched int `json:"dispatched"`
}

// ErrorResponse is the standard error response format. Allowed carries the
// valid next stages when a transition is rejected.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
}
