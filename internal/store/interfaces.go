package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows passing either a connection pool or an active transaction
// to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// TenantStore handles tenant provisioning and lookup.
type TenantStore interface {
	CreateTenant(ctx context.Context, tenant *Tenant, hashedKey string) error
	GetTenantByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetTenantByAPIKeyHash(ctx context.Context, hash string) (*Tenant, error)
}

// DirectoryStore is the privileged identity lookup used by the tenant
// directory. It must never apply resource-access policy: the access policy
// consumes its result and must not be re-entered while resolving it.
type DirectoryStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	SetUserRole(ctx context.Context, id uuid.UUID, role Role, tenantID *uuid.UUID) error
	DeactivateUser(ctx context.Context, id uuid.UUID) error
}

// StageStore handles workflow stage definitions and graph edges.
type StageStore interface {
	CreateStage(ctx context.Context, tx DBTransaction, stage *Stage) error
	GetStageByID(ctx context.Context, id uuid.UUID) (*Stage, error)

	// ListStages returns the active stages for a tenant and entity type,
	// ordered by sequence. A nil tenantID lists the shared system stages.
	ListStages(ctx context.Context, tenantID *uuid.UUID, entityType EntityType) ([]Stage, error)

	// ListEdges returns the transition edges for a tenant's graph.
	// A nil tenantID returns the shared system graph.
	ListEdges(ctx context.Context, tenantID *uuid.UUID, entityType EntityType) ([]StageEdge, error)

	CreateEdge(ctx context.Context, tx DBTransaction, edge *StageEdge) error

	// DeactivateStage retires a stage. It fails when any job still
	// references the stage; stages referenced by history are never deleted.
	DeactivateStage(ctx context.Context, id uuid.UUID) error
}

// JobStore handles job records. Every method filters by tenant as a hard
// predicate; the version column backs the transition engine's CAS.
type JobStore interface {
	CreateJob(ctx context.Context, tx DBTransaction, job *Job) error

	// GetJob reads a job scoped to a tenant.
	GetJob(ctx context.Context, tenantID, id uuid.UUID) (*Job, error)

	// GetJobByID is the engine's privileged read without a tenant
	// predicate; the access policy decides what happens next.
	GetJobByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// GetJobForUpdate re-reads a job inside tx with a row lock, so the
	// engine acts on current state rather than what the caller saw.
	GetJobForUpdate(ctx context.Context, tx DBTransaction, tenantID, id uuid.UUID) (*Job, error)

	// UpdateJobStage applies the stage/status change only when the stored
	// version still equals expectedVersion. Returns ErrStaleVersion when a
	// concurrent transition got there first.
	UpdateJobStage(ctx context.Context, tx DBTransaction, job *Job, expectedVersion int64) error
}

// AuditStore is the append-only transition history plus stage residency
// metrics.
type AuditStore interface {
	AppendTransition(ctx context.Context, tx DBTransaction, rec *TransitionRecord) (int64, error)

	// ListTransitions pages through a job's history in commit order using
	// the record id as the keyset cursor.
	ListTransitions(ctx context.Context, tenantID, jobID uuid.UUID, afterID int64, limit int) ([]TransitionRecord, error)

	// CloseStageMetric sets the exit time and duration on the open metric
	// row for the job, if one exists.
	CloseStageMetric(ctx context.Context, tx DBTransaction, jobID uuid.UUID, exitedAt time.Time) error

	OpenStageMetric(ctx context.Context, tx DBTransaction, metric *StageMetric) error

	// StageRollup aggregates closed metric rows per stage.
	StageRollup(ctx context.Context, tenantID uuid.UUID, entityType EntityType) ([]StageRollupRow, error)

	// BackfillInitialRecords writes a synthetic transition record for every
	// job of the tenant that lacks one. Safe to run repeatedly.
	BackfillInitialRecords(ctx context.Context, tenantID, actorID uuid.UUID) (int64, error)
}

// ReminderStore persists reminders and their due-scan.
type ReminderStore interface {
	// CreateReminder inserts the reminder unless the idempotency triple
	// already exists, in which case the existing row is returned.
	CreateReminder(ctx context.Context, reminder *Reminder) (*Reminder, error)

	// DueReminders returns unsent reminders with fire_at <= now.
	DueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)

	// MarkSent flips the sent flag inside tx, after queue entries exist.
	MarkSent(ctx context.Context, tx DBTransaction, id uuid.UUID) error
}

// NotificationQueue is the outbox consumed by the delivery worker.
// Claiming must use SELECT ... FOR UPDATE SKIP LOCKED semantics.
type NotificationQueue interface {
	EnqueueNotification(ctx context.Context, tx DBTransaction, entry *NotificationEntry) (int64, error)

	// ClaimBatch claims up to limit pending entries and extends their
	// visibility window.
	ClaimBatch(ctx context.Context, limit int) ([]NotificationEntry, error)

	MarkDelivered(ctx context.Context, id int64) error

	// MarkFailed reschedules the entry with backoff, or marks it terminally
	// failed when the retry budget is exhausted or terminal is set.
	MarkFailed(ctx context.Context, id int64, attempt int, errMsg string, terminal bool) error

	CountPendingNotifications(ctx context.Context) (int64, error)
}
