package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crmkit/pipeline-engine/internal/application/port"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// ApprovalRepository is the sqlite-backed ApprovalStore. Resolution is a
// conditional UPDATE guarded on status = 'pending', so a double resolution
// loses deterministically.
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates an approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalStore {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending approval entry
func (r *ApprovalRepository) Create(ctx context.Context, e *entity.ApprovalEntry) error {
	query := `
		INSERT INTO approval_entries (
			id, tenant_id, kind, entity_id, from_stage, to_stage,
			requested_by, notes, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		e.ID, e.TenantID, e.Kind, e.EntityID, e.FromStage, e.ToStage,
		e.RequestedBy, e.Notes, e.Status)
	if err != nil {
		r.logger.Error("Failed to create approval entry",
			zap.String("approval_id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to create approval entry: %w", err)
	}
	return nil
}

// GetByID returns the entry, or nil when absent
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalEntry, error) {
	query := `
		SELECT id, tenant_id, kind, entity_id, from_stage, to_stage,
			requested_by, notes, status, processed_by, processed_at, reason, created_at
		FROM approval_entries
		WHERE id = ?
	`

	var e entity.ApprovalEntry
	var processedAt sql.NullTime

	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.TenantID, &e.Kind, &e.EntityID, &e.FromStage, &e.ToStage,
		&e.RequestedBy, &e.Notes, &e.Status, &e.ProcessedBy, &processedAt,
		&e.Reason, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval entry",
			zap.String("approval_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval entry: %w", err)
	}

	if processedAt.Valid {
		e.ProcessedAt = &processedAt.Time
	}
	return &e, nil
}

// ListPending returns the tenant's pending entries, oldest first
func (r *ApprovalRepository) ListPending(ctx context.Context, tenantID string) ([]*entity.ApprovalEntry, error) {
	query := `
		SELECT id, tenant_id, kind, entity_id, from_stage, to_stage,
			requested_by, notes, status, processed_by, processed_at, reason, created_at
		FROM approval_entries
		WHERE tenant_id = ? AND status = 'pending'
		ORDER BY created_at ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("Failed to list pending approvals",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ApprovalEntry
	for rows.Next() {
		var e entity.ApprovalEntry
		var processedAt sql.NullTime
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.Kind, &e.EntityID, &e.FromStage, &e.ToStage,
			&e.RequestedBy, &e.Notes, &e.Status, &e.ProcessedBy, &processedAt,
			&e.Reason, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approval entry: %w", err)
		}
		if processedAt.Valid {
			e.ProcessedAt = &processedAt.Time
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// MarkResolved sets the terminal status iff the entry is still pending
func (r *ApprovalRepository) MarkResolved(ctx context.Context, id, status, processedBy, reason string) (bool, error) {
	query := `
		UPDATE approval_entries
		SET status = ?, processed_by = ?, processed_at = CURRENT_TIMESTAMP, reason = ?
		WHERE id = ? AND status = 'pending'
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, status, processedBy, reason, id)
	if err != nil {
		r.logger.Error("Failed to resolve approval entry",
			zap.String("approval_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to resolve approval entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Verify interface compliance
var _ port.ApprovalStore = (*ApprovalRepository)(nil)
