package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jobtrack/internal/authz"
	"jobtrack/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Store is the persistence surface the engine needs. The batch in Apply
// commits as one transaction; no other code path mutates a job's stage.
type Store interface {
	BeginTx(ctx context.Context) (store.Tx, error)

	// GetJobByID is a privileged read without a tenant predicate. The
	// engine uses it to learn the job's tenant before the policy decides;
	// a cross-tenant caller gets PermissionDenied, not a fake NotFound.
	GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error)

	GetJobForUpdate(ctx context.Context, tx store.DBTransaction, tenantID, id uuid.UUID) (*store.Job, error)
	UpdateJobStage(ctx context.Context, tx store.DBTransaction, job *store.Job, expectedVersion int64) error
	AppendTransition(ctx context.Context, tx store.DBTransaction, rec *store.TransitionRecord) (int64, error)
	CloseStageMetric(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, exitedAt time.Time) error
	OpenStageMetric(ctx context.Context, tx store.DBTransaction, metric *store.StageMetric) error
}

// Resolver resolves an acting principal. Satisfied by authz.Directory.
type Resolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (authz.Principal, error)
}

// GraphSource loads the stage graph for a tenant. Satisfied by GraphLoader.
type GraphSource interface {
	Load(ctx context.Context, tenantID *uuid.UUID, entityType store.EntityType) (*Graph, error)
}

// Target is the requested destination of a transition: either a stage or a
// bare coarse status (used for hold/resume). Exactly one field is set.
type Target struct {
	StageID *uuid.UUID
	Status  *store.StatusCategory
}

// TransitionResult reports the outcome of Apply. NoOp is true when the
// target equals the current state; nothing was written in that case.
type TransitionResult struct {
	Job    *store.Job
	Record *store.TransitionRecord
	NoOp   bool
}

// Engine validates and applies stage/status changes. It is the single entry
// point for mutating a job's stage; everything else reads.
type Engine struct {
	store     Store
	directory Resolver
	graphs    GraphSource
	refresher *Refresher
	logger    *slog.Logger
	applied   metric.Int64Counter
}

// NewEngine creates a transition engine. refresher may be nil to disable
// derived-aggregate updates.
func NewEngine(s Store, directory Resolver, graphs GraphSource, refresher *Refresher, logger *slog.Logger) *Engine {
	e := &Engine{
		store:     s,
		directory: directory,
		graphs:    graphs,
		refresher: refresher,
		logger:    logger,
	}

	counter, err := otel.Meter("jobtrack/workflow").Int64Counter(
		"jobtrack.transitions.applied",
		metric.WithDescription("Number of stage transitions committed"),
	)
	if err != nil {
		logger.Warn("failed to register transition counter", "error", err)
	} else {
		e.applied = counter
	}

	return e
}

// Apply validates and commits one transition.
//
// Order matters: authorization first, then a re-read of current state inside
// the transaction, then graph validation, then the job update + metric close/
// open + history append as one atomic batch. A denied or invalid request
// performs zero persisted side effects.
func (e *Engine) Apply(ctx context.Context, principalID, jobID uuid.UUID, target Target, notes string) (*TransitionResult, error) {
	p, err := e.directory.Resolve(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}

	job, err := e.store.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFound{Kind: "job", ID: jobID}
		}
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	res := authz.Resource{
		Kind:      authz.KindJob,
		ID:        job.ID,
		TenantID:  &job.TenantID,
		CreatedBy: job.CreatedBy,
	}
	if err := authz.Authorize(p, authz.ActionUpdate, res); err != nil {
		return nil, err
	}

	graph, err := e.graphs.Load(ctx, &job.TenantID, store.EntityJob)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage graph: %w", err)
	}

	// The version the caller acted on. A concurrent transition that commits
	// before ours bumps it, which we surface as ConflictStale.
	readVersion := job.Version

	if isNoOp(job, target) {
		return &TransitionResult{Job: job, NoOp: true}, nil
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := e.store.GetJobForUpdate(ctx, tx, job.TenantID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFound{Kind: "job", ID: jobID}
		}
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}
	if cur.Version != readVersion {
		return nil, &ConflictStale{JobID: jobID}
	}

	newStageID, newStatus, stageChanged, err := e.resolveTarget(graph, cur, target)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	updated := *cur
	updated.Status = newStatus
	updated.CurrentStageID = newStageID
	if stageChanged {
		entered := now
		updated.StageEnteredAt = &entered
	}

	if err := e.store.UpdateJobStage(ctx, tx, &updated, cur.Version); err != nil {
		if errors.Is(err, store.ErrStaleVersion) {
			return nil, &ConflictStale{JobID: jobID}
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	if stageChanged {
		if err := e.store.CloseStageMetric(ctx, tx, jobID, now); err != nil {
			return nil, fmt.Errorf("failed to close stage metric: %w", err)
		}
		if newStageID != nil {
			m := &store.StageMetric{
				JobID:     jobID,
				TenantID:  cur.TenantID,
				StageID:   *newStageID,
				EnteredAt: now,
			}
			if err := e.store.OpenStageMetric(ctx, tx, m); err != nil {
				return nil, fmt.Errorf("failed to open stage metric: %w", err)
			}
		}
	}

	rec := &store.TransitionRecord{
		JobID:       jobID,
		TenantID:    cur.TenantID,
		FromStageID: cur.CurrentStageID,
		ToStageID:   newStageID,
		FromStatus:  cur.Status,
		ToStatus:    newStatus,
		ActorID:     p.ID,
		Notes:       notes,
		CreatedAt:   now,
	}
	if _, err := e.store.AppendTransition(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("failed to append transition record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	if e.applied != nil {
		e.applied.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tenant", cur.TenantID.String()),
		))
	}

	// Derived aggregates are best effort: a failure here is logged and
	// retried by the refresher, never surfaced as a transition failure.
	if e.refresher != nil {
		e.refresher.Enqueue(cur.TenantID, store.EntityJob)
	}

	return &TransitionResult{Job: &updated, Record: rec}, nil
}

// resolveTarget turns the requested target into the new (stage, status)
// pair, validating against the graph and the hold/resume rules.
//
// Hold policy: a job placed on hold retains its current stage; only the
// coarse status changes. Stage moves are rejected while on hold, and
// resuming returns the job to its retained stage's category.
func (e *Engine) resolveTarget(graph *Graph, cur *store.Job, target Target) (*uuid.UUID, store.StatusCategory, bool, error) {
	switch {
	case target.StageID != nil:
		if cur.Status == store.StatusOnHold {
			return nil, "", false, &InvalidTransition{
				From:    "on_hold",
				To:      graph.stageName(target.StageID),
				Allowed: []string{string(resumeStatus(graph, cur))},
			}
		}

		to := *target.StageID
		if !graph.CanTransition(cur.CurrentStageID, to) {
			return nil, "", false, &InvalidTransition{
				From:    graph.stageName(cur.CurrentStageID),
				To:      graph.stageName(target.StageID),
				Allowed: graph.allowedNames(cur.CurrentStageID),
			}
		}

		stage, _ := graph.Stage(to)
		return &to, stage.Category, true, nil

	case target.Status != nil:
		want := *target.Status

		if want == store.StatusOnHold {
			if cur.Status != store.StatusPlanning && cur.Status != store.StatusActive {
				return nil, "", false, &InvalidTransition{
					From:    string(cur.Status),
					To:      string(store.StatusOnHold),
					Allowed: nil,
				}
			}
			return cur.CurrentStageID, store.StatusOnHold, false, nil
		}

		if cur.Status == store.StatusOnHold {
			resume := resumeStatus(graph, cur)
			if want != resume {
				return nil, "", false, &InvalidTransition{
					From:    string(store.StatusOnHold),
					To:      string(want),
					Allowed: []string{string(resume)},
				}
			}
			return cur.CurrentStageID, resume, false, nil
		}

		return nil, "", false, &InvalidTransition{
			From:    string(cur.Status),
			To:      string(want),
			Allowed: graph.allowedNames(cur.CurrentStageID),
		}

	default:
		return nil, "", false, &InvalidTransition{From: string(cur.Status), To: "(none)"}
	}
}

// resumeStatus is the status a held job returns to: its retained stage's
// category, or planning when it never entered the workflow.
func resumeStatus(graph *Graph, cur *store.Job) store.StatusCategory {
	if cur.CurrentStageID != nil {
		if s, ok := graph.Stage(*cur.CurrentStageID); ok {
			return s.Category
		}
	}
	return store.StatusPlanning
}

func isNoOp(job *store.Job, target Target) bool {
	if target.StageID != nil {
		return job.CurrentStageID != nil && *job.CurrentStageID == *target.StageID
	}
	if target.Status != nil {
		return job.Status == *target.Status
	}
	return false
}
