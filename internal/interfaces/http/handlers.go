package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crmkit/pipeline-engine/internal/application/service"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
)

// Mover is the write side of the engine consumed by the handlers
type Mover interface {
	MoveToStage(ctx context.Context, req service.MoveRequest) (*service.MoveResult, error)
	ProcessApproval(ctx context.Context, dec service.ApprovalDecision) (*service.ApprovalResult, error)
}

// Query is the read side of the engine consumed by the handlers
type Query interface {
	Definition(kind string) (*pipeline.Definition, error)
	Summary(ctx context.Context, tenantID, kind string) (map[string]int, error)
	EntitiesInStage(ctx context.Context, tenantID, kind, stage string, limit int) ([]*entity.PipelineEntity, error)
}

// ApprovalLister lists a tenant's pending approval entries
type ApprovalLister interface {
	ListPending(ctx context.Context, tenantID string) ([]*entity.ApprovalEntry, error)
}

// AuditReader reads the transition audit trail
type AuditReader interface {
	ListByEntity(ctx context.Context, tenantID, kind, entityID string, limit int) ([]*entity.AuditRecord, error)
}

// SummaryWriter streams a summary workbook
type SummaryWriter interface {
	Write(def *pipeline.Definition, tenantID string, counts map[string]int, w io.Writer) error
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	mover     Mover
	query     Query
	approvals ApprovalLister
	audit     AuditReader
	exporter  SummaryWriter
	logger    *zap.Logger
}

// NewHandlers creates a Handlers instance
func NewHandlers(mover Mover, query Query, approvals ApprovalLister, audit AuditReader, exporter SummaryWriter, logger *zap.Logger) *Handlers {
	return &Handlers{
		mover:     mover,
		query:     query,
		approvals: approvals,
		audit:     audit,
		exporter:  exporter,
		logger:    logger,
	}
}

// Response is the standard JSON envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Allowed []string    `json:"allowed_stages,omitempty"`
}

// DefinitionResponse describes a pipeline definition in API responses
type DefinitionResponse struct {
	Kind          string              `json:"kind"`
	Stages        []string            `json:"stages"`
	Transitions   map[string][]string `json:"transitions"`
	ApprovalGated []string            `json:"approval_gated"`
}

// MoveStageRequest is the request body for a transition attempt
type MoveStageRequest struct {
	TargetStage string `json:"target_stage" binding:"required"`
	ActorID     string `json:"actor_id" binding:"required"`
	ActorRole   string `json:"actor_role" binding:"required"`
	Notes       string `json:"notes"`
}

// ResolveApprovalRequest is the request body for resolving a pending entry
type ResolveApprovalRequest struct {
	Approved bool   `json:"approved"`
	ActorID  string `json:"actor_id" binding:"required"`
	Reason   string `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// GetDefinition handles GET /api/v1/pipelines/:kind
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.query.Definition(c.Param("kind"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := DefinitionResponse{
		Kind:          def.Kind.String(),
		Stages:        stageNames(def.Stages),
		Transitions:   make(map[string][]string, len(def.Transitions)),
		ApprovalGated: stageNames(def.ApprovalGated),
	}
	for from, targets := range def.Transitions {
		resp.Transitions[from.String()] = stageNames(targets)
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// GetSummary handles GET /api/v1/tenants/:tenant/pipelines/:kind/summary
func (h *Handlers) GetSummary(c *gin.Context) {
	summary, err := h.query.Summary(c.Request.Context(), c.Param("tenant"), c.Param("kind"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// ExportSummary handles GET /api/v1/tenants/:tenant/pipelines/:kind/summary/export
func (h *Handlers) ExportSummary(c *gin.Context) {
	tenantID := c.Param("tenant")
	kind := c.Param("kind")

	def, err := h.query.Definition(kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	summary, err := h.query.Summary(c.Request.Context(), tenantID, kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	filename := fmt.Sprintf("%s-pipeline-%s.xlsx", kind, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.exporter.Write(def, tenantID, summary, c.Writer); err != nil {
		h.logger.Error("Summary export failed",
			zap.String("kind", kind), zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}

// ListEntitiesInStage handles GET /api/v1/tenants/:tenant/pipelines/:kind/stages/:stage/entities
func (h *Handlers) ListEntitiesInStage(c *gin.Context) {
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}

	entities, err := h.query.EntitiesInStage(c.Request.Context(),
		c.Param("tenant"), c.Param("kind"), c.Param("stage"), query.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entities})
}

// MoveStage handles POST /api/v1/tenants/:tenant/pipelines/:kind/entities/:id/move
func (h *Handlers) MoveStage(c *gin.Context) {
	var req MoveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.mover.MoveToStage(c.Request.Context(), service.MoveRequest{
		Kind:        c.Param("kind"),
		EntityID:    c.Param("id"),
		TenantID:    c.Param("tenant"),
		TargetStage: req.TargetStage,
		ActorID:     req.ActorID,
		ActorRole:   req.ActorRole,
		Notes:       req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	if result.Pending {
		status = http.StatusAccepted
	}
	c.JSON(status, Response{Success: true, Data: result})
}

// ListPendingApprovals handles GET /api/v1/tenants/:tenant/approvals
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	entries, err := h.approvals.ListPending(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ResolveApproval handles POST /api/v1/tenants/:tenant/approvals/:id
func (h *Handlers) ResolveApproval(c *gin.Context) {
	var req ResolveApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.mover.ProcessApproval(c.Request.Context(), service.ApprovalDecision{
		ApprovalID: c.Param("id"),
		TenantID:   c.Param("tenant"),
		ActorID:    req.ActorID,
		Approved:   req.Approved,
		Reason:     req.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListAuditTrail handles GET /api/v1/tenants/:tenant/pipelines/:kind/entities/:id/audit
func (h *Handlers) ListAuditTrail(c *gin.Context) {
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	if query.Limit <= 0 || query.Limit > 200 {
		query.Limit = 50
	}

	records, err := h.audit.ListByEntity(c.Request.Context(),
		c.Param("tenant"), c.Param("kind"), c.Param("id"), query.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// fail maps engine errors to HTTP status codes. A rejected transition always
// carries the legal next stages so a UI can present the real options.
func (h *Handlers) fail(c *gin.Context, err error) {
	resp := Response{Success: false, Error: err.Error()}

	var invalid *pipeline.InvalidTransitionError
	if errors.As(err, &invalid) {
		resp.Allowed = make([]string, len(invalid.Allowed))
		for i, s := range invalid.Allowed {
			resp.Allowed[i] = s.String()
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}

	switch {
	case errors.Is(err, pipeline.ErrUnknownKind), errors.Is(err, pipeline.ErrUnknownStage):
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, pipeline.ErrEntityNotFound),
		errors.Is(err, pipeline.ErrApprovalNotFound),
		errors.Is(err, pipeline.ErrTenantMismatch):
		c.JSON(http.StatusNotFound, resp)
	case errors.Is(err, pipeline.ErrAlreadyProcessed), errors.Is(err, pipeline.ErrStageConflict):
		c.JSON(http.StatusConflict, resp)
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func stageNames(stages []pipeline.Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.String()
	}
	return names
}
