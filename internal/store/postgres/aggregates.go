package postgres

import (
	"context"
	"fmt"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

// RefreshStageCompletion recomputes the tenant's completion rollup from the
// live jobs table. Called off the transition path by the workflow refresher;
// a failure here never blocks a transition.
func (s *Store) RefreshStageCompletion(ctx context.Context, tenantID uuid.UUID, entityType store.EntityType) error {
	query := `
		INSERT INTO stage_completion (tenant_id, entity_type, total_jobs, complete_jobs, completion_pct, refreshed_at)
		SELECT
			$1,
			$2,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'complete'),
			CASE WHEN COUNT(*) = 0 THEN 0
			     ELSE COUNT(*) FILTER (WHERE status = 'complete')::DOUBLE PRECISION / COUNT(*) * 100
			END,
			NOW()
		FROM jobs
		WHERE tenant_id = $1
		ON CONFLICT (tenant_id, entity_type) DO UPDATE SET
			total_jobs = EXCLUDED.total_jobs,
			complete_jobs = EXCLUDED.complete_jobs,
			completion_pct = EXCLUDED.completion_pct,
			refreshed_at = EXCLUDED.refreshed_at
	`

	_, err := s.db.ExecContext(ctx, query, tenantID, entityType)
	if err != nil {
		return fmt.Errorf("failed to refresh stage completion for tenant %s: %w", tenantID, err)
	}
	return nil
}
