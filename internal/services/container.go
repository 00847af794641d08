package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/crmkit/pipeline-engine/internal/application/service"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
	"github.com/crmkit/pipeline-engine/internal/interfaces/websocket"
	"github.com/crmkit/pipeline-engine/internal/report"
)

// Container holds the application-layer components built on top of the
// infrastructure: registry, queue, mover, read side, and transport bridges.
type Container struct {
	Registry *pipeline.Registry
	Queue    *service.ApprovalQueue
	Mover    *service.StageMover
	Query    *service.QueryService
	Exporter *report.SummaryExporter
	EventHub *websocket.Hub

	logger *zap.Logger
}

// NewContainer wires the engine services. The post-transition hook table is
// populated here: the engine core stays kind-agnostic and wiring owns the
// kind-specific rules.
func NewContainer(infra *Infrastructure, logger *zap.Logger) (*Container, error) {
	registry, err := pipeline.NewRegistry(pipeline.DefaultDefinitions()...)
	if err != nil {
		return nil, err
	}

	hooks := service.NewHooks()
	// A won lead becomes a customer
	hooks.Register(pipeline.KindLead.String(), pipeline.StageWon.String(),
		func(ctx context.Context, ent *entity.PipelineEntity) error {
			return infra.Repositories.Entities.SetStatus(ctx, ent.TenantID, ent.Kind, ent.ID, entity.StatusCustomer)
		})

	queue := service.NewApprovalQueue(infra.Repositories.Approvals, logger)
	mover := service.NewStageMover(
		registry,
		infra.Repositories.Entities,
		queue,
		infra.Repositories.Audit,
		infra.Dispatcher,
		infra.TxManager,
		hooks,
		logger,
	)

	c := &Container{
		Registry: registry,
		Queue:    queue,
		Mover:    mover,
		Query:    service.NewQueryService(registry, infra.Repositories.Entities),
		Exporter: report.NewSummaryExporter(logger),
		EventHub: websocket.NewHub(infra.Dispatcher, logger),
		logger:   logger,
	}

	logger.Info("Service container initialized",
		zap.Int("pipeline_kinds", len(registry.Kinds())))
	return c, nil
}

// Close releases container resources
func (c *Container) Close() {
	c.EventHub.Close()
}
