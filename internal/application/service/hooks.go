package service

import (
	"context"
	"fmt"

	"github.com/crmkit/pipeline-engine/internal/domain/entity"
)

// HookFunc is an entity-kind-specific side effect that runs after a stage
// write. The entity carries the post-transition stage. Hook failures fail the
// transition: they run inside the same transactional boundary as the stage
// write.
type HookFunc func(ctx context.Context, ent *entity.PipelineEntity) error

// Hooks is the registered table of post-transition side effects keyed by
// (kind, target stage). It keeps the StageMover kind-agnostic: the one
// pipeline-specific rule (a won lead becomes a customer) is registered here
// at wiring time instead of branching inside the mover.
type Hooks struct {
	table map[string]map[string]HookFunc
}

// NewHooks creates an empty hook table
func NewHooks() *Hooks {
	return &Hooks{
		table: make(map[string]map[string]HookFunc),
	}
}

// Register installs a hook for the kind and target stage. Registration
// happens at startup, before the mover serves requests; the table is
// read-only afterwards.
func (h *Hooks) Register(kind, stage string, fn HookFunc) {
	byStage, ok := h.table[kind]
	if !ok {
		byStage = make(map[string]HookFunc)
		h.table[kind] = byStage
	}
	byStage[stage] = fn
}

// Run executes the hook for the kind/stage pair, if any
func (h *Hooks) Run(ctx context.Context, ent *entity.PipelineEntity) error {
	fn, ok := h.table[ent.Kind][ent.Stage]
	if !ok {
		return nil
	}
	if err := fn(ctx, ent); err != nil {
		return fmt.Errorf("post-transition hook for %s/%s: %w", ent.Kind, ent.Stage, err)
	}
	return nil
}
