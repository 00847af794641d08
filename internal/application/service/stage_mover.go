package service

import (
	"context"
	"fmt"
	"time"

	"github.com/crmkit/pipeline-engine/internal/application/port"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/event"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
	"go.uber.org/zap"
)

// MoveRequest is one transition attempt. Role checks beyond the admin
// distinction happen before the request reaches the engine.
type MoveRequest struct {
	Kind        string
	EntityID    string
	TenantID    string
	TargetStage string
	ActorID     string
	ActorRole   string
	Notes       string
}

// MoveResult is either an applied transition or a pending-approval receipt
type MoveResult struct {
	Pending    bool   `json:"pending"`
	ApprovalID string `json:"approval_id,omitempty"`
	FromStage  string `json:"from_stage"`
	ToStage    string `json:"to_stage"`
}

// ApprovalDecision resolves a pending approval entry
type ApprovalDecision struct {
	ApprovalID string
	TenantID   string
	ActorID    string
	Approved   bool
	Reason     string
}

// ApprovalResult is the outcome of processing an approval entry
type ApprovalResult struct {
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
	FromStage string `json:"from_stage,omitempty"`
	ToStage   string `json:"to_stage,omitempty"`
}

// StageMover orchestrates stage transitions: validate, gate on approval,
// write the stage optimistically, audit, notify. It is the single entry point
// for both the direct move flow and the admin approval flow.
type StageMover struct {
	registry *pipeline.Registry
	gateway  port.EntityGateway
	queue    *ApprovalQueue
	audit    port.AuditSink
	notifier port.EventNotifier
	tx       port.TransactionManager
	hooks    *Hooks
	logger   *zap.Logger
}

// NewStageMover creates a stage mover
func NewStageMover(
	registry *pipeline.Registry,
	gateway port.EntityGateway,
	queue *ApprovalQueue,
	audit port.AuditSink,
	notifier port.EventNotifier,
	tx port.TransactionManager,
	hooks *Hooks,
	logger *zap.Logger,
) *StageMover {
	return &StageMover{
		registry: registry,
		gateway:  gateway,
		queue:    queue,
		audit:    audit,
		notifier: notifier,
		tx:       tx,
		hooks:    hooks,
		logger:   logger,
	}
}

// MoveToStage validates and executes one transition attempt. A transition
// into an approval-gated stage by a non-admin actor is enqueued instead of
// applied; the entity is not touched until the entry is approved.
func (m *StageMover) MoveToStage(ctx context.Context, req MoveRequest) (*MoveResult, error) {
	def, err := m.registry.Definition(pipeline.Kind(req.Kind))
	if err != nil {
		return nil, err
	}

	ent, err := m.gateway.Find(ctx, req.TenantID, req.Kind, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("find entity %s/%s: %w", req.Kind, req.EntityID, err)
	}
	if ent == nil {
		return nil, fmt.Errorf("%w: %s/%s", pipeline.ErrEntityNotFound, req.Kind, req.EntityID)
	}

	// An entity that has never been moved sits in the graph's first stage
	current := pipeline.Stage(ent.Stage)
	if ent.Stage == "" {
		current = def.FirstStage()
	}
	target := pipeline.Stage(req.TargetStage)

	decision, err := pipeline.Validate(def, current, target)
	if err != nil {
		return nil, err
	}

	if decision.RequiresApproval && req.ActorRole != entity.RoleAdmin {
		entry, err := m.queue.Enqueue(ctx, &entity.ApprovalEntry{
			TenantID:    req.TenantID,
			Kind:        req.Kind,
			EntityID:    req.EntityID,
			FromStage:   current.String(),
			ToStage:     target.String(),
			RequestedBy: req.ActorID,
			Notes:       req.Notes,
		})
		if err != nil {
			return nil, err
		}

		m.notifier.Publish(ctx, event.New(event.TypeApprovalRequested, req.TenantID, req.Kind, req.EntityID,
			map[string]interface{}{
				"approval_id":  entry.ID,
				"from_stage":   entry.FromStage,
				"to_stage":     entry.ToStage,
				"requested_by": entry.RequestedBy,
			}))

		return &MoveResult{
			Pending:    true,
			ApprovalID: entry.ID,
			FromStage:  entry.FromStage,
			ToStage:    entry.ToStage,
		}, nil
	}

	if err := m.apply(ctx, req.TenantID, req.Kind, req.EntityID,
		current.String(), target.String(), req.ActorID, req.Notes, decision.RequiresApproval); err != nil {
		return nil, err
	}

	return &MoveResult{
		FromStage: current.String(),
		ToStage:   target.String(),
	}, nil
}

// ProcessApproval resolves a pending entry and, on approval, applies the
// stored transition attributed to the resolving admin.
func (m *StageMover) ProcessApproval(ctx context.Context, dec ApprovalDecision) (*ApprovalResult, error) {
	entry, err := m.queue.Resolve(ctx, dec.ApprovalID, dec.TenantID, dec.Approved, dec.Reason, dec.ActorID)
	if err != nil {
		return nil, err
	}

	if !dec.Approved {
		m.notifier.Publish(ctx, event.New(event.TypeApprovalRejected, entry.TenantID, entry.Kind, entry.EntityID,
			map[string]interface{}{
				"approval_id": entry.ID,
				"to_stage":    entry.ToStage,
				"reason":      dec.Reason,
			}))
		return &ApprovalResult{Approved: false, Reason: dec.Reason}, nil
	}

	if err := m.apply(ctx, entry.TenantID, entry.Kind, entry.EntityID,
		entry.FromStage, entry.ToStage, dec.ActorID, dec.Reason, true); err != nil {
		return nil, err
	}

	m.notifier.Publish(ctx, event.New(event.TypeApprovalApproved, entry.TenantID, entry.Kind, entry.EntityID,
		map[string]interface{}{
			"approval_id": entry.ID,
			"from_stage":  entry.FromStage,
			"to_stage":    entry.ToStage,
		}))

	return &ApprovalResult{
		Approved:  true,
		Reason:    dec.Reason,
		FromStage: entry.FromStage,
		ToStage:   entry.ToStage,
	}, nil
}

// apply writes the stage with an optimistic check, records the audit entry,
// and runs the post-transition hook, all inside one transaction. The
// stage-change event is published after commit; notification is advisory and
// never part of the transactional boundary.
func (m *StageMover) apply(ctx context.Context, tenantID, kind, entityID, fromStage, toStage, actorID, notes string, gated bool) error {
	err := m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := m.gateway.SetStage(txCtx, tenantID, kind, entityID, fromStage, toStage); err != nil {
			return fmt.Errorf("set stage %s -> %s on %s/%s: %w", fromStage, toStage, kind, entityID, err)
		}

		if err := m.audit.Record(txCtx, &entity.AuditRecord{
			TenantID:  tenantID,
			Kind:      kind,
			EntityID:  entityID,
			FromStage: fromStage,
			ToStage:   toStage,
			ActorID:   actorID,
			Notes:     notes,
			Gated:     gated,
			Timestamp: time.Now(),
		}); err != nil {
			return fmt.Errorf("audit transition %s -> %s on %s/%s: %w", fromStage, toStage, kind, entityID, err)
		}

		return m.hooks.Run(txCtx, &entity.PipelineEntity{
			ID:       entityID,
			TenantID: tenantID,
			Kind:     kind,
			Stage:    toStage,
		})
	})
	if err != nil {
		return err
	}

	m.logger.Info("Stage transition applied",
		zap.String("tenant_id", tenantID),
		zap.String("kind", kind),
		zap.String("entity_id", entityID),
		zap.String("from_stage", fromStage),
		zap.String("to_stage", toStage),
		zap.Bool("gated", gated))

	m.notifier.Publish(ctx, event.StageChanged(tenantID, kind, entityID, fromStage, toStage))
	return nil
}
