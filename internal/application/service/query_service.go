package service

import (
	"context"
	"fmt"

	"github.com/crmkit/pipeline-engine/internal/application/port"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
)

const defaultStageListLimit = 50

// QueryService is the read side of the engine: per-stage counts and the
// entities currently sitting in a stage.
type QueryService struct {
	registry *pipeline.Registry
	gateway  port.EntityGateway
}

// NewQueryService creates a query service
func NewQueryService(registry *pipeline.Registry, gateway port.EntityGateway) *QueryService {
	return &QueryService{
		registry: registry,
		gateway:  gateway,
	}
}

// Definition returns the pipeline definition for the kind
func (s *QueryService) Definition(kind string) (*pipeline.Definition, error) {
	return s.registry.Definition(pipeline.Kind(kind))
}

// Summary returns entity counts for every stage of the kind's pipeline.
// Stages with no entities map to zero so consumers can render empty columns.
func (s *QueryService) Summary(ctx context.Context, tenantID, kind string) (map[string]int, error) {
	def, err := s.registry.Definition(pipeline.Kind(kind))
	if err != nil {
		return nil, err
	}

	counts, err := s.gateway.CountByStage(ctx, tenantID, kind)
	if err != nil {
		return nil, fmt.Errorf("count by stage for %s: %w", kind, err)
	}

	summary := make(map[string]int, len(def.Stages))
	for _, stage := range def.Stages {
		summary[stage.String()] = counts[stage.String()]
	}
	return summary, nil
}

// EntitiesInStage returns up to limit entities currently in the stage, most
// recently updated first. Fails when the stage is not part of the definition.
func (s *QueryService) EntitiesInStage(ctx context.Context, tenantID, kind, stage string, limit int) ([]*entity.PipelineEntity, error) {
	def, err := s.registry.Definition(pipeline.Kind(kind))
	if err != nil {
		return nil, err
	}
	if !def.HasStage(pipeline.Stage(stage)) {
		return nil, fmt.Errorf("%w: %s has no stage %q", pipeline.ErrUnknownStage, kind, stage)
	}

	if limit <= 0 || limit > 200 {
		limit = defaultStageListLimit
	}

	entities, err := s.gateway.ListByStage(ctx, tenantID, kind, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("list entities in %s/%s: %w", kind, stage, err)
	}
	return entities, nil
}
