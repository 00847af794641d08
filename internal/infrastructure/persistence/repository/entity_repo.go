package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crmkit/pipeline-engine/internal/application/port"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
	"go.uber.org/zap"
)

// EntityRepository is the sqlite-backed EntityGateway. Stage writes are
// optimistic: the UPDATE is guarded on the stage that was read, so a
// concurrent transition surfaces as ErrStageConflict instead of a silent
// last-write-wins.
type EntityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntityRepository creates an entity repository
func NewEntityRepository(db *sql.DB, logger *zap.Logger) port.EntityGateway {
	return &EntityRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pipeline entity
func (r *EntityRepository) Create(ctx context.Context, ent *entity.PipelineEntity) error {
	query := `
		INSERT INTO pipeline_entities (tenant_id, kind, id, name, stage, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		ent.TenantID, ent.Kind, ent.ID, ent.Name, ent.Stage, ent.Status)
	if err != nil {
		r.logger.Error("Failed to create entity",
			zap.String("kind", ent.Kind), zap.String("id", ent.ID), zap.Error(err))
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

// Find returns the entity for the tenant, or nil when absent
func (r *EntityRepository) Find(ctx context.Context, tenantID, kind, id string) (*entity.PipelineEntity, error) {
	query := `
		SELECT tenant_id, kind, id, name, stage, status, created_at, updated_at
		FROM pipeline_entities
		WHERE tenant_id = ? AND kind = ? AND id = ?
	`

	var ent entity.PipelineEntity
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID, kind, id).Scan(
		&ent.TenantID, &ent.Kind, &ent.ID, &ent.Name,
		&ent.Stage, &ent.Status, &ent.CreatedAt, &ent.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find entity",
			zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to find entity: %w", err)
	}

	return &ent, nil
}

// SetStage writes the new stage, guarded on the stage that was read. An
// empty fromStage matches entities that were never moved.
func (r *EntityRepository) SetStage(ctx context.Context, tenantID, kind, id, fromStage, toStage string) error {
	query := `
		UPDATE pipeline_entities
		SET stage = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ? AND kind = ? AND id = ? AND (stage = ? OR stage = '')
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, toStage, tenantID, kind, id, fromStage)
	if err != nil {
		r.logger.Error("Failed to set stage",
			zap.String("kind", kind), zap.String("id", id),
			zap.String("to_stage", toStage), zap.Error(err))
		return fmt.Errorf("failed to set stage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a concurrent stage change
		ent, findErr := r.Find(ctx, tenantID, kind, id)
		if findErr != nil {
			return findErr
		}
		if ent == nil {
			return fmt.Errorf("%w: %s/%s", pipeline.ErrEntityNotFound, kind, id)
		}
		return fmt.Errorf("%w: %s/%s is now %q, expected %q",
			pipeline.ErrStageConflict, kind, id, ent.Stage, fromStage)
	}

	return nil
}

// SetStatus writes the secondary status attribute
func (r *EntityRepository) SetStatus(ctx context.Context, tenantID, kind, id, status string) error {
	query := `
		UPDATE pipeline_entities
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ? AND kind = ? AND id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, status, tenantID, kind, id)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", pipeline.ErrEntityNotFound, kind, id)
	}
	return nil
}

// CountByStage returns entity counts grouped by stage
func (r *EntityRepository) CountByStage(ctx context.Context, tenantID, kind string) (map[string]int, error) {
	query := `
		SELECT stage, COUNT(*)
		FROM pipeline_entities
		WHERE tenant_id = ? AND kind = ?
		GROUP BY stage
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, kind)
	if err != nil {
		r.logger.Error("Failed to count by stage",
			zap.String("kind", kind), zap.Error(err))
		return nil, fmt.Errorf("failed to count by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stage count: %w", err)
		}
		counts[stage] = count
	}
	return counts, rows.Err()
}

// ListByStage returns up to limit entities in the stage, most recently
// updated first
func (r *EntityRepository) ListByStage(ctx context.Context, tenantID, kind, stage string, limit int) ([]*entity.PipelineEntity, error) {
	query := `
		SELECT tenant_id, kind, id, name, stage, status, created_at, updated_at
		FROM pipeline_entities
		WHERE tenant_id = ? AND kind = ? AND stage = ?
		ORDER BY updated_at DESC
		LIMIT ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, kind, stage, limit)
	if err != nil {
		r.logger.Error("Failed to list by stage",
			zap.String("kind", kind), zap.String("stage", stage), zap.Error(err))
		return nil, fmt.Errorf("failed to list by stage: %w", err)
	}
	defer rows.Close()

	var entities []*entity.PipelineEntity
	for rows.Next() {
		var ent entity.PipelineEntity
		if err := rows.Scan(
			&ent.TenantID, &ent.Kind, &ent.ID, &ent.Name,
			&ent.Stage, &ent.Status, &ent.CreatedAt, &ent.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, &ent)
	}
	return entities, rows.Err()
}

// Verify interface compliance
var _ port.EntityGateway = (*EntityRepository)(nil)
