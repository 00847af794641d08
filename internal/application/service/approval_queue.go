package service

import (
	"context"
	"fmt"
	"time"

	"github.com/crmkit/pipeline-engine/internal/application/port"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApprovalQueue tracks pending two-phase transition requests. It is pure
// bookkeeping: resolving an entry never applies the transition, that is the
// StageMover's responsibility.
type ApprovalQueue struct {
	store  port.ApprovalStore
	logger *zap.Logger
}

// NewApprovalQueue creates an approval queue over the given store
func NewApprovalQueue(store port.ApprovalStore, logger *zap.Logger) *ApprovalQueue {
	return &ApprovalQueue{
		store:  store,
		logger: logger,
	}
}

// Enqueue stores a pending approval entry with a generated id. The caller
// must have already validated the transition.
func (q *ApprovalQueue) Enqueue(ctx context.Context, e *entity.ApprovalEntry) (*entity.ApprovalEntry, error) {
	e.ID = uuid.NewString()
	e.Status = entity.ApprovalPending
	e.CreatedAt = time.Now()

	if err := q.store.Create(ctx, e); err != nil {
		q.logger.Error("Failed to enqueue approval entry",
			zap.String("tenant_id", e.TenantID),
			zap.String("entity_id", e.EntityID),
			zap.Error(err))
		return nil, fmt.Errorf("enqueue approval: %w", err)
	}

	q.logger.Info("Approval entry enqueued",
		zap.String("approval_id", e.ID),
		zap.String("tenant_id", e.TenantID),
		zap.String("entity_id", e.EntityID),
		zap.String("to_stage", e.ToStage))
	return e, nil
}

// ListPending returns the tenant's pending entries
func (q *ApprovalQueue) ListPending(ctx context.Context, tenantID string) ([]*entity.ApprovalEntry, error) {
	entries, err := q.store.ListPending(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return entries, nil
}

// Resolve transitions a pending entry to approved or rejected, exactly once.
// Fails with ErrApprovalNotFound when absent, ErrTenantMismatch when the
// entry belongs to another tenant, ErrAlreadyProcessed when already resolved.
func (q *ApprovalQueue) Resolve(ctx context.Context, id, tenantID string, approved bool, reason, processedBy string) (*entity.ApprovalEntry, error) {
	e, err := q.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get approval entry: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrApprovalNotFound, id)
	}
	if e.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrTenantMismatch, id)
	}
	if e.Status != entity.ApprovalPending {
		return nil, fmt.Errorf("%w: %s is %s", pipeline.ErrAlreadyProcessed, id, e.Status)
	}

	status := entity.ApprovalRejected
	if approved {
		status = entity.ApprovalApproved
	}

	resolved, err := q.store.MarkResolved(ctx, id, status, processedBy, reason)
	if err != nil {
		return nil, fmt.Errorf("resolve approval: %w", err)
	}
	if !resolved {
		// Lost a resolution race since the read above
		return nil, fmt.Errorf("%w: %s", pipeline.ErrAlreadyProcessed, id)
	}

	now := time.Now()
	e.Status = status
	e.ProcessedBy = processedBy
	e.ProcessedAt = &now
	e.Reason = reason

	q.logger.Info("Approval entry resolved",
		zap.String("approval_id", id),
		zap.String("status", status),
		zap.String("processed_by", processedBy))
	return e, nil
}
