// Package store contains the database layer for jobtrack.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an isolated company boundary.
// Every dependent record carries exactly one TenantID, set at creation.
type Tenant struct {
	ID             uuid.UUID
	Name           string
	RateLimit      int
	RateLimitBurst int
	CreatedAt      time.Time
}

// Role is the enumerated permission level of a principal.
type Role string

const (
	// RoleNone is the role assigned to unresolvable principals.
	// It grants no access anywhere.
	RoleNone Role = "none"

	RoleMember  Role = "member"
	RoleManager Role = "manager"

	// RoleCrossTenantAdmin may act on any tenant's records.
	RoleCrossTenantAdmin Role = "cross_tenant_admin"
)

// User is an acting principal. TenantID is nil only for cross-tenant admins.
// Users are never deleted, only deactivated.
type User struct {
	ID        uuid.UUID
	TenantID  *uuid.UUID
	Role      Role
	Email     *string
	Phone     *string
	Active    bool
	CreatedAt time.Time
}

// StatusCategory is the coarse status a stage maps to.
type StatusCategory string

const (
	StatusPlanning StatusCategory = "planning"
	StatusActive   StatusCategory = "active"
	StatusOnHold   StatusCategory = "on_hold"
	StatusComplete StatusCategory = "complete"
)

// EntityType identifies which workflow a stage graph applies to.
type EntityType string

const (
	EntityJob     EntityType = "job"
	EntityProject EntityType = "project"
)

// Stage is a named, ordered workflow step. A nil TenantID marks a shared
// system stage usable by every tenant. Sequence is unique per tenant+type.
type Stage struct {
	ID         uuid.UUID
	TenantID   *uuid.UUID
	EntityType EntityType
	Name       string
	Sequence   int
	Category   StatusCategory
	Color      string
	Active     bool
	CreatedAt  time.Time
}

// StageEdge is one allowed directed transition in a stage graph.
// Back-edges (e.g. active -> on_hold -> active) are explicit rows.
type StageEdge struct {
	TenantID   *uuid.UUID
	EntityType EntityType
	FromStage  uuid.UUID
	ToStage    uuid.UUID
}

// Job is the tracked work item. CurrentStageID, when set, must reference an
// active stage of the same tenant or a shared system stage. Version is the
// optimistic-concurrency token bumped on every stage change.
type Job struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Name           string
	Status         StatusCategory
	CurrentStageID *uuid.UUID
	StageEnteredAt *time.Time
	CreatedBy      uuid.UUID
	Version        int64
	CreatedAt      time.Time
}

// TransitionRecord is an immutable audit entry for one stage/status change.
// Records for a job form a total order by CreatedAt and are never mutated.
type TransitionRecord struct {
	ID          int64
	JobID       uuid.UUID
	TenantID    uuid.UUID
	FromStageID *uuid.UUID
	ToStageID   *uuid.UUID
	FromStatus  StatusCategory
	ToStatus    StatusCategory
	ActorID     uuid.UUID
	Notes       string
	Backfill    bool
	CreatedAt   time.Time
}

// StageMetric is one (job, stage) residency row. ExitedAt stays nil while the
// job occupies the stage; DurationSeconds is computed when the row closes.
type StageMetric struct {
	ID              int64
	JobID           uuid.UUID
	TenantID        uuid.UUID
	StageID         uuid.UUID
	EnteredAt       time.Time
	ExitedAt        *time.Time
	DurationSeconds *int64
}

// StageRollupRow is one line of the historical per-stage rollup. It is
// derived from closed StageMetric rows only, so it stays stable as live
// jobs keep moving.
type StageRollupRow struct {
	StageID        uuid.UUID
	StageName      string
	JobCount       int64
	AvgDurationSec float64
}

// Reminder is a scheduled future notification derived from a date-typed
// response. The (JobID, QuestionID, ResponseID) triple is the idempotency
// key; the only permitted mutation is flipping Sent to true.
type Reminder struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	TenantID    uuid.UUID
	QuestionID  uuid.UUID
	ResponseID  uuid.UUID
	RecipientID uuid.UUID
	FireAt      time.Time
	Sent        bool
	CreatedAt   time.Time
}

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// NotificationStatus is the lifecycle state of a queue entry.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

// NotificationEntry is one queued delivery attempt target. Entries are
// created by the reminder scheduler and terminated by the delivery worker.
type NotificationEntry struct {
	ID         int64
	ReminderID uuid.UUID
	TenantID   uuid.UUID
	Channel    Channel
	Recipient  string
	Message    string
	Status     NotificationStatus
	Attempt    int
	LastError  *string
	CreatedAt  time.Time
}
