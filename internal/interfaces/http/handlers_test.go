package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crmkit/pipeline-engine/internal/application/service"
	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
)

type stubMover struct {
	moveResult     *service.MoveResult
	moveErr        error
	lastMove       service.MoveRequest
	approvalResult *service.ApprovalResult
	approvalErr    error
	lastDecision   service.ApprovalDecision
}

func (m *stubMover) MoveToStage(ctx context.Context, req service.MoveRequest) (*service.MoveResult, error) {
	m.lastMove = req
	return m.moveResult, m.moveErr
}

func (m *stubMover) ProcessApproval(ctx context.Context, dec service.ApprovalDecision) (*service.ApprovalResult, error) {
	m.lastDecision = dec
	return m.approvalResult, m.approvalErr
}

type stubQuery struct {
	registry   *pipeline.Registry
	summary    map[string]int
	summaryErr error
	entities   []*entity.PipelineEntity
	listErr    error
}

func (q *stubQuery) Definition(kind string) (*pipeline.Definition, error) {
	return q.registry.Definition(pipeline.Kind(kind))
}

func (q *stubQuery) Summary(ctx context.Context, tenantID, kind string) (map[string]int, error) {
	return q.summary, q.summaryErr
}

func (q *stubQuery) EntitiesInStage(ctx context.Context, tenantID, kind, stage string, limit int) ([]*entity.PipelineEntity, error) {
	return q.entities, q.listErr
}

type stubApprovals struct {
	entries []*entity.ApprovalEntry
	err     error
}

func (a *stubApprovals) ListPending(ctx context.Context, tenantID string) ([]*entity.ApprovalEntry, error) {
	return a.entries, a.err
}

type stubAudit struct {
	records   []*entity.AuditRecord
	lastLimit int
}

func (a *stubAudit) ListByEntity(ctx context.Context, tenantID, kind, entityID string, limit int) ([]*entity.AuditRecord, error) {
	a.lastLimit = limit
	return a.records, nil
}

type stubExporter struct{}

func (stubExporter) Write(def *pipeline.Definition, tenantID string, counts map[string]int, w io.Writer) error {
	_, err := w.Write([]byte("workbook"))
	return err
}

type fixture struct {
	mover     *stubMover
	query     *stubQuery
	approvals *stubApprovals
	audit     *stubAudit
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry, err := pipeline.NewRegistry(pipeline.DefaultDefinitions()...)
	require.NoError(t, err)

	f := &fixture{
		mover:     &stubMover{},
		query:     &stubQuery{registry: registry},
		approvals: &stubApprovals{},
		audit:     &stubAudit{},
	}

	handlers := NewHandlers(f.mover, f.query, f.approvals, f.audit, stubExporter{}, zap.NewNop())
	server := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, handlers, nil, zap.NewNop())
	f.router = server.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestGetDefinition(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/pipelines/lead", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var def DefinitionResponse
	require.NoError(t, json.Unmarshal(data, &def))
	assert.Equal(t, "lead", def.Kind)
	assert.Contains(t, def.Stages, "won")
	assert.Equal(t, []string{"won"}, def.ApprovalGated)
}

func TestGetDefinitionUnknownKind(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/pipelines/invoice", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestGetSummary(t *testing.T) {
	f := newFixture(t)
	f.query.summary = map[string]int{"prospect": 2, "won": 0}

	w := f.do(t, http.MethodGet, "/api/v1/tenants/tenant-1/pipelines/lead/summary", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
	assert.Contains(t, w.Body.String(), `"prospect":2`)
}

func TestExportSummaryHeaders(t *testing.T) {
	f := newFixture(t)
	f.query.summary = map[string]int{"prospect": 1}

	w := f.do(t, http.MethodGet, "/api/v1/tenants/tenant-1/pipelines/lead/summary/export", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "lead-pipeline-")
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Equal(t, "workbook", w.Body.String())
}

func TestMoveStageApplied(t *testing.T) {
	f := newFixture(t)
	f.mover.moveResult = &service.MoveResult{FromStage: "prospect", ToStage: "contacted"}

	w := f.do(t, http.MethodPost, "/api/v1/tenants/tenant-1/pipelines/lead/entities/lead-1/move",
		MoveStageRequest{TargetStage: "contacted", ActorID: "user-1", ActorRole: "employee"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)

	assert.Equal(t, "tenant-1", f.mover.lastMove.TenantID)
	assert.Equal(t, "lead", f.mover.lastMove.Kind)
	assert.Equal(t, "lead-1", f.mover.lastMove.EntityID)
	assert.Equal(t, "contacted", f.mover.lastMove.TargetStage)
}

func TestMoveStagePending(t *testing.T) {
	f := newFixture(t)
	f.mover.moveResult = &service.MoveResult{
		Pending:    true,
		ApprovalID: "ap-1",
		FromStage:  "negotiation",
		ToStage:    "won",
	}

	w := f.do(t, http.MethodPost, "/api/v1/tenants/tenant-1/pipelines/lead/entities/lead-1/move",
		MoveStageRequest{TargetStage: "won", ActorID: "user-1", ActorRole: "employee"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"approval_id":"ap-1"`)
}

func TestMoveStageInvalidBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/tenants/tenant-1/pipelines/lead/entities/lead-1/move",
		strings.NewReader(`{"target_stage": "contacted"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMoveStageErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown kind", fmt.Errorf("%w: invoice", pipeline.ErrUnknownKind), http.StatusBadRequest},
		{"entity not found", fmt.Errorf("%w: lead/x", pipeline.ErrEntityNotFound), http.StatusNotFound},
		{"stage conflict", fmt.Errorf("%w: lead/x", pipeline.ErrStageConflict), http.StatusConflict},
		{"internal", fmt.Errorf("database exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mover.moveErr = tt.err

			w := f.do(t, http.MethodPost, "/api/v1/tenants/tenant-1/pipelines/lead/entities/lead-1/move",
				MoveStageRequest{TargetStage: "contacted", ActorID: "user-1", ActorRole: "employee"})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, decode(t, w).Success)
		})
	}
}

func TestMoveStageInvalidTransitionCarriesAllowed(t *testing.T) {
	f := newFixture(t)
	f.mover.moveErr = &pipeline.InvalidTransitionError{
		Kind:    pipeline.KindLead,
		From:    pipeline.StageProspect,
		To:      "archived",
		Allowed: []pipeline.Stage{pipeline.StageContacted, pipeline.StageLost},
	}

	w := f.do(t, http.MethodPost, "/api/v1/tenants/tenant-1/pipelines/lead/entities/lead-1/move",
		MoveStageRequest{TargetStage: "archived", ActorID: "user-1", ActorRole: "employee"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, []string{"contacted", "lost"}, resp.Allowed)
}

func TestListEntitiesInStage(t *testing.T) {
	f := newFixture(t)
	f.query.entities = []*entity.PipelineEntity{
		{ID: "lead-1", TenantID: "tenant-1", Kind: "lead", Stage: "contacted"},
	}

	w := f.do(t, http.MethodGet, "/api/v1/tenants/tenant-1/pipelines/lead/stages/contacted/entities", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"lead-1"`)
}

func TestListPendingApprovals(t *testing.T) {
	f := newFixture(t)
	f.approvals.entries = []*entity.ApprovalEntry{
		{ID: "ap-1", TenantID: "tenant-1", ToStage: "won", Status: entity.ApprovalPending},
	}

	w := f.do(t, http.MethodGet, "/api/v1/tenants/tenant-1/approvals", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ap-1"`)
}

func TestResolveApproval(t *testing.T) {
	f := newFixture(t)
	f.mover.approvalResult = &service.ApprovalResult{
		Approved:  true,
		FromStage: "negotiation",
		ToStage:   "won",
	}

	w := f.do(t, http.MethodPost, "/api/v1/tenants/tenant-1/approvals/ap-1",
		ResolveApprovalRequest{Approved: true, ActorID: "admin-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ap-1", f.mover.lastDecision.ApprovalID)
	assert.Equal(t, "tenant-1", f.mover.lastDecision.TenantID)
	assert.True(t, f.mover.lastDecision.Approved)
}

func TestResolveApprovalErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", fmt.Errorf("%w: ap-1", pipeline.ErrApprovalNotFound), http.StatusNotFound},
		{"tenant mismatch", fmt.Errorf("%w: ap-1", pipeline.ErrTenantMismatch), http.StatusNotFound},
		{"already processed", fmt.Errorf("%w: ap-1", pipeline.ErrAlreadyProcessed), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mover.approvalErr = tt.err

			w := f.do(t, http.MethodPost, "/api/v1/tenants/tenant-1/approvals/ap-1",
				ResolveApprovalRequest{Approved: false, ActorID: "admin-1"})

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestListAuditTrail(t *testing.T) {
	f := newFixture(t)
	f.audit.records = []*entity.AuditRecord{
		{ID: 1, TenantID: "tenant-1", Kind: "lead", EntityID: "lead-1",
			FromStage: "prospect", ToStage: "contacted", ActorID: "user-1",
			Timestamp: time.Now()},
	}

	w := f.do(t, http.MethodGet, "/api/v1/tenants/tenant-1/pipelines/lead/entities/lead-1/audit", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"contacted"`)
	assert.Equal(t, 50, f.audit.lastLimit)
}
