package postgres

import (
	"context"
	"fmt"
	"time"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

// AppendTransition writes one immutable history row. There is no update or
// delete path for transition_records anywhere in this package.
func (s *Store) AppendTransition(ctx context.Context, tx store.DBTransaction, rec *store.TransitionRecord) (int64, error) {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO transition_records
			(job_id, tenant_id, from_stage_id, to_stage_id, from_status, to_status, actor_id, notes, backfill, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := executor.QueryRowContext(ctx, query,
		rec.JobID,
		rec.TenantID,
		rec.FromStageID,
		rec.ToStageID,
		rec.FromStatus,
		rec.ToStatus,
		rec.ActorID,
		rec.Notes,
		rec.Backfill,
		rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append transition for job %s: %w", rec.JobID, err)
	}

	rec.ID = id
	return id, nil
}

// ListTransitions pages a job's history in commit order. The record id is
// the keyset cursor; pass afterID=0 for the first page.
func (s *Store) ListTransitions(ctx context.Context, tenantID, jobID uuid.UUID, afterID int64, limit int) ([]store.TransitionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, job_id, tenant_id, from_stage_id, to_stage_id, from_status, to_status, actor_id, notes, backfill, created_at
		FROM transition_records
		WHERE job_id = $1 AND tenant_id = $2 AND id > $3
		ORDER BY id ASC
		LIMIT $4
	`

	rows, err := s.db.QueryContext(ctx, query, jobID, tenantID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transitions query failed: %w", err)
	}
	defer rows.Close()

	var records []store.TransitionRecord
	for rows.Next() {
		var r store.TransitionRecord
		if err := rows.Scan(
			&r.ID, &r.JobID, &r.TenantID, &r.FromStageID, &r.ToStageID,
			&r.FromStatus, &r.ToStatus, &r.ActorID, &r.Notes, &r.Backfill, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list transitions scan failed: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// CloseStageMetric stamps the exit time and duration on the job's open
// residency row, if any. Closing an already-closed history is a no-op.
func (s *Store) CloseStageMetric(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, exitedAt time.Time) error {
	executor := s.getExecutor(tx)

	query := `
		UPDATE stage_metrics
		SET exited_at = $1,
		    duration_seconds = EXTRACT(EPOCH FROM ($1 - entered_at))::BIGINT
		WHERE job_id = $2 AND exited_at IS NULL
	`

	_, err := executor.ExecContext(ctx, query, exitedAt, jobID)
	return err
}

func (s *Store) OpenStageMetric(ctx context.Context, tx store.DBTransaction, metric *store.StageMetric) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO stage_metrics (job_id, tenant_id, stage_id, entered_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := executor.ExecContext(ctx, query,
		metric.JobID,
		metric.TenantID,
		metric.StageID,
		metric.EnteredAt,
	)
	return err
}

// StageRollup aggregates closed metric rows only, so historical numbers stay
// put while live jobs keep moving through the graph.
func (s *Store) StageRollup(ctx context.Context, tenantID uuid.UUID, entityType store.EntityType) ([]store.StageRollupRow, error) {
	query := `
		SELECT m.stage_id, s.name, COUNT(DISTINCT m.job_id), COALESCE(AVG(m.duration_seconds), 0)
		FROM stage_metrics m
		JOIN stages s ON s.id = m.stage_id
		WHERE m.tenant_id = $1 AND s.entity_type = $2 AND m.exited_at IS NOT NULL
		GROUP BY m.stage_id, s.name, s.sequence
		ORDER BY s.sequence ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, entityType)
	if err != nil {
		return nil, fmt.Errorf("stage rollup query failed: %w", err)
	}
	defer rows.Close()

	var rollup []store.StageRollupRow
	for rows.Next() {
		var r store.StageRollupRow
		if err := rows.Scan(&r.StageID, &r.StageName, &r.JobCount, &r.AvgDurationSec); err != nil {
			return nil, fmt.Errorf("stage rollup scan failed: %w", err)
		}
		rollup = append(rollup, r)
	}

	return rollup, rows.Err()
}

// BackfillInitialRecords manufactures a synthetic first history row for every
// job of the tenant that has none. The backfill marker makes re-runs skip
// jobs already covered, so the operation is safe to repeat.
func (s *Store) BackfillInitialRecords(ctx context.Context, tenantID, actorID uuid.UUID) (int64, error) {
	query := `
		INSERT INTO transition_records
			(job_id, tenant_id, from_stage_id, to_stage_id, from_status, to_status, actor_id, notes, backfill, created_at)
		SELECT j.id, j.tenant_id, NULL, j.current_stage_id, j.status, j.status, $2, 'historical backfill', TRUE, NOW()
		FROM jobs j
		WHERE j.tenant_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM transition_records r WHERE r.job_id = j.id
		  )
	`

	res, err := s.db.ExecContext(ctx, query, tenantID, actorID)
	if err != nil {
		return 0, fmt.Errorf("backfill failed for tenant %s: %w", tenantID, err)
	}

	return res.RowsAffected()
}
