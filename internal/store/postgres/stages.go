package postgres

import (
	"context"
	"fmt"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

func (s *Store) CreateStage(ctx context.Context, tx store.DBTransaction, stage *store.Stage) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO stages (id, tenant_id, entity_type, name, sequence, category, color, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := executor.ExecContext(ctx, query,
		stage.ID,
		stage.TenantID,
		stage.EntityType,
		stage.Name,
		stage.Sequence,
		stage.Category,
		stage.Color,
		stage.Active,
		stage.CreatedAt,
	)
	return err
}

func (s *Store) GetStageByID(ctx context.Context, id uuid.UUID) (*store.Stage, error) {
	query := `
		SELECT id, tenant_id, entity_type, name, sequence, category, color, active, created_at
		FROM stages
		WHERE id = $1
	`

	var st store.Stage
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&st.ID, &st.TenantID, &st.EntityType, &st.Name,
		&st.Sequence, &st.Category, &st.Color, &st.Active, &st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &st, nil
}

// ListStages returns active stages ordered by sequence. A nil tenantID
// selects the shared system stages.
func (s *Store) ListStages(ctx context.Context, tenantID *uuid.UUID, entityType store.EntityType) ([]store.Stage, error) {
	query := `
		SELECT id, tenant_id, entity_type, name, sequence, category, color, active, created_at
		FROM stages
		WHERE tenant_id IS NOT DISTINCT FROM $1 AND entity_type = $2 AND active = TRUE
		ORDER BY sequence ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, entityType)
	if err != nil {
		return nil, fmt.Errorf("list stages query failed: %w", err)
	}
	defer rows.Close()

	var stages []store.Stage
	for rows.Next() {
		var st store.Stage
		if err := rows.Scan(
			&st.ID, &st.TenantID, &st.EntityType, &st.Name,
			&st.Sequence, &st.Category, &st.Color, &st.Active, &st.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list stages scan failed: %w", err)
		}
		stages = append(stages, st)
	}

	return stages, rows.Err()
}

func (s *Store) ListEdges(ctx context.Context, tenantID *uuid.UUID, entityType store.EntityType) ([]store.StageEdge, error) {
	query := `
		SELECT tenant_id, entity_type, from_stage_id, to_stage_id
		FROM stage_transitions
		WHERE tenant_id IS NOT DISTINCT FROM $1 AND entity_type = $2
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, entityType)
	if err != nil {
		return nil, fmt.Errorf("list edges query failed: %w", err)
	}
	defer rows.Close()

	var edges []store.StageEdge
	for rows.Next() {
		var e store.StageEdge
		if err := rows.Scan(&e.TenantID, &e.EntityType, &e.FromStage, &e.ToStage); err != nil {
			return nil, fmt.Errorf("list edges scan failed: %w", err)
		}
		edges = append(edges, e)
	}

	return edges, rows.Err()
}

func (s *Store) CreateEdge(ctx context.Context, tx store.DBTransaction, edge *store.StageEdge) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO stage_transitions (tenant_id, entity_type, from_stage_id, to_stage_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_stage_id, to_stage_id) DO NOTHING
	`

	_, err := executor.ExecContext(ctx, query, edge.TenantID, edge.EntityType, edge.FromStage, edge.ToStage)
	return err
}

// DeactivateStage retires a stage unless a job still occupies it. Stages are
// never deleted; history keeps referencing them.
func (s *Store) DeactivateStage(ctx context.Context, id uuid.UUID) error {
	var inUse int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs WHERE current_stage_id = $1", id,
	).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return store.ErrStageInUse
	}

	_, err = s.db.ExecContext(ctx, "UPDATE stages SET active = FALSE WHERE id = $1", id)
	return err
}
