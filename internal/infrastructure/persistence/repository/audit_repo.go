package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crmkit/pipeline-engine/internal/application/port"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// AuditRepository is the sqlite-backed append-only audit sink
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates an audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditSink {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends an audit record
func (r *AuditRepository) Record(ctx context.Context, rec *entity.AuditRecord) error {
	query := `
		INSERT INTO audit_records (
			tenant_id, kind, entity_id, from_stage, to_stage,
			actor_id, notes, gated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		rec.TenantID, rec.Kind, rec.EntityID, rec.FromStage, rec.ToStage,
		rec.ActorID, rec.Notes, rec.Gated, rec.Timestamp)
	if err != nil {
		r.logger.Error("Failed to record audit entry",
			zap.String("kind", rec.Kind),
			zap.String("entity_id", rec.EntityID),
			zap.Error(err))
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListByEntity returns up to limit audit records for the entity, newest first
func (r *AuditRepository) ListByEntity(ctx context.Context, tenantID, kind, entityID string, limit int) ([]*entity.AuditRecord, error) {
	query := `
		SELECT id, tenant_id, kind, entity_id, from_stage, to_stage,
			actor_id, notes, gated, created_at
		FROM audit_records
		WHERE tenant_id = ? AND kind = ? AND entity_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, kind, entityID, limit)
	if err != nil {
		r.logger.Error("Failed to list audit records",
			zap.String("kind", kind),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []*entity.AuditRecord
	for rows.Next() {
		var rec entity.AuditRecord
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.Kind, &rec.EntityID,
			&rec.FromStage, &rec.ToStage, &rec.ActorID, &rec.Notes,
			&rec.Gated, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.AuditSink = (*AuditRepository)(nil)
