// Package audit exposes the append-only transition history and the derived
// stage rollups.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"jobtrack/internal/authz"
	"jobtrack/internal/store"
	"jobtrack/internal/workflow"

	"github.com/google/uuid"
)

// Store is the persistence surface for history reads and the backfill.
type Store interface {
	GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error)
	ListTransitions(ctx context.Context, tenantID, jobID uuid.UUID, afterID int64, limit int) ([]store.TransitionRecord, error)
	StageRollup(ctx context.Context, tenantID uuid.UUID, entityType store.EntityType) ([]store.StageRollupRow, error)
	BackfillInitialRecords(ctx context.Context, tenantID, actorID uuid.UUID) (int64, error)
}

// Resolver resolves an acting principal. Satisfied by authz.Directory.
type Resolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (authz.Principal, error)
}

// Log serves transition history, rollups, and the idempotent backfill.
// All access goes through the policy evaluator; history rows themselves are
// written only by the transition engine.
type Log struct {
	store     Store
	directory Resolver
	logger    *slog.Logger
}

func NewLog(s Store, directory Resolver, logger *slog.Logger) *Log {
	return &Log{store: s, directory: directory, logger: logger}
}

// History returns one page of a job's transition records in commit order.
// afterID is the keyset cursor from the previous page; 0 starts at the top.
func (l *Log) History(ctx context.Context, principalID, jobID uuid.UUID, afterID int64, limit int) ([]store.TransitionRecord, error) {
	p, err := l.directory.Resolve(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}

	job, err := l.store.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &workflow.NotFound{Kind: "job", ID: jobID}
		}
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	res := authz.Resource{Kind: authz.KindJob, ID: job.ID, TenantID: &job.TenantID, CreatedBy: job.CreatedBy}
	if err := authz.Authorize(p, authz.ActionRead, res); err != nil {
		return nil, err
	}

	return l.store.ListTransitions(ctx, job.TenantID, jobID, afterID, limit)
}

// Rollup returns the historical per-stage aggregate for a tenant. The
// numbers come from closed metric rows only, so they do not drift as live
// jobs keep moving.
func (l *Log) Rollup(ctx context.Context, principalID, tenantID uuid.UUID, entityType store.EntityType) ([]store.StageRollupRow, error) {
	p, err := l.directory.Resolve(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}

	res := authz.Resource{Kind: authz.KindAudit, TenantID: &tenantID}
	if err := authz.Authorize(p, authz.ActionRead, res); err != nil {
		return nil, err
	}

	return l.store.StageRollup(ctx, tenantID, entityType)
}

// Backfill writes a synthetic initial record for every job of the tenant
// lacking history. Requires a manager; safe to run repeatedly because jobs
// already carrying a record are skipped.
func (l *Log) Backfill(ctx context.Context, principalID, tenantID uuid.UUID) (int64, error) {
	p, err := l.directory.Resolve(ctx, principalID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve principal: %w", err)
	}

	res := authz.Resource{Kind: authz.KindAudit, TenantID: &tenantID}
	if err := authz.Authorize(p, authz.ActionUpdate, res); err != nil {
		return 0, err
	}

	n, err := l.store.BackfillInitialRecords(ctx, tenantID, p.ID)
	if err != nil {
		return 0, err
	}

	l.logger.Info("audit backfill complete", "tenant_id", tenantID, "records", n)
	return n, nil
}
