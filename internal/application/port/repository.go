package port

import (
	"context"

	"github.com/crmkit/pipeline-engine/internal/domain/entity"
)

// EntityGateway is the narrow read/write interface to wherever entities are
// actually persisted. The engine reads and writes the stage attribute only
// through this boundary.
type EntityGateway interface {
	// Create inserts an entity. Used by seeding and the host application's
	// CRUD layer, not by the engine itself.
	Create(ctx context.Context, ent *entity.PipelineEntity) error

	// Find returns the entity for the tenant, or nil when absent
	Find(ctx context.Context, tenantID, kind, id string) (*entity.PipelineEntity, error)

	// SetStage writes the new stage with an optimistic check against the
	// stage that was read. Returns pipeline.ErrStageConflict when the row no
	// longer carries fromStage, pipeline.ErrEntityNotFound when absent.
	SetStage(ctx context.Context, tenantID, kind, id, fromStage, toStage string) error

	// SetStatus writes the secondary status attribute (post-transition hooks)
	SetStatus(ctx context.Context, tenantID, kind, id, status string) error

	// CountByStage returns entity counts grouped by stage for the tenant/kind
	CountByStage(ctx context.Context, tenantID, kind string) (map[string]int, error)

	// ListByStage returns up to limit entities in the stage, most recently
	// updated first
	ListByStage(ctx context.Context, tenantID, kind, stage string, limit int) ([]*entity.PipelineEntity, error)
}

// ApprovalStore persists pending transition requests so they survive restarts
// and stay consistent across instances.
type ApprovalStore interface {
	Create(ctx context.Context, e *entity.ApprovalEntry) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalEntry, error)
	ListPending(ctx context.Context, tenantID string) ([]*entity.ApprovalEntry, error)

	// MarkResolved sets the terminal status if and only if the entry is still
	// pending. Returns false when the entry was already resolved.
	MarkResolved(ctx context.Context, id, status, processedBy, reason string) (bool, error)
}

// AuditSink is the append-only log of who moved what from where to where.
// Record failures fail the transition; the trail is authoritative.
type AuditSink interface {
	Record(ctx context.Context, rec *entity.AuditRecord) error
	ListByEntity(ctx context.Context, tenantID, kind, entityID string, limit int) ([]*entity.AuditRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
