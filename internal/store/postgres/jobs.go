package postgres

import (
	"context"
	"fmt"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

const jobColumns = "id, tenant_id, name, status, current_stage_id, stage_entered_at, created_by, version, created_at"

func (s *Store) CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO jobs (id, tenant_id, name, status, current_stage_id, stage_entered_at, created_by, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := executor.ExecContext(ctx, query,
		job.ID,
		job.TenantID,
		job.Name,
		job.Status,
		job.CurrentStageID,
		job.StageEnteredAt,
		job.CreatedBy,
		job.Version,
		job.CreatedAt,
	)
	return err
}

// GetJob reads a job with the tenant as a hard predicate. A job from another
// tenant comes back as sql.ErrNoRows, never as data.
func (s *Store) GetJob(ctx context.Context, tenantID, id uuid.UUID) (*store.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1 AND tenant_id = $2", jobColumns)
	return s.scanJob(s.db.QueryRowContext(ctx, query, id, tenantID))
}

// GetJobByID reads a job without a tenant predicate. Used only by the
// transition engine, which authorizes the caller against the job's own
// tenant before touching anything.
func (s *Store) GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1", jobColumns)
	return s.scanJob(s.db.QueryRowContext(ctx, query, id))
}

// GetJobForUpdate re-reads the job inside tx with a row lock so the engine
// validates against current state, not the caller's stale copy.
func (s *Store) GetJobForUpdate(ctx context.Context, tx store.DBTransaction, tenantID, id uuid.UUID) (*store.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1 AND tenant_id = $2 FOR UPDATE", jobColumns)
	return s.scanJob(tx.QueryRowContext(ctx, query, id, tenantID))
}

// UpdateJobStage applies the stage change only when the stored version still
// matches expectedVersion. Zero rows affected means a concurrent transition
// won the race.
func (s *Store) UpdateJobStage(ctx context.Context, tx store.DBTransaction, job *store.Job, expectedVersion int64) error {
	executor := s.getExecutor(tx)

	query := `
		UPDATE jobs
		SET status = $1, current_stage_id = $2, stage_entered_at = $3, version = version + 1
		WHERE id = $4 AND tenant_id = $5 AND version = $6
	`

	res, err := executor.ExecContext(ctx, query,
		job.Status,
		job.CurrentStageID,
		job.StageEnteredAt,
		job.ID,
		job.TenantID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrStaleVersion
	}

	job.Version = expectedVersion + 1
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanJob(row rowScanner) (*store.Job, error) {
	var j store.Job
	err := row.Scan(
		&j.ID, &j.TenantID, &j.Name, &j.Status,
		&j.CurrentStageID, &j.StageEnteredAt, &j.CreatedBy, &j.Version, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
