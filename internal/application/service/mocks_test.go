package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/event"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
)

func entityKey(tenantID, kind, id string) string {
	return tenantID + "|" + kind + "|" + id
}

// mockGateway is an in-memory EntityGateway with the same optimistic-write
// semantics as the SQL implementation.
type mockGateway struct {
	mu          sync.Mutex
	entities    map[string]*entity.PipelineEntity
	setStageErr error
	lastLimit   int
}

func newMockGateway() *mockGateway {
	return &mockGateway{entities: make(map[string]*entity.PipelineEntity)}
}

func (g *mockGateway) Create(ctx context.Context, ent *entity.PipelineEntity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	clone := *ent
	g.entities[entityKey(ent.TenantID, ent.Kind, ent.ID)] = &clone
	return nil
}

func (g *mockGateway) Find(ctx context.Context, tenantID, kind, id string) (*entity.PipelineEntity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ent, ok := g.entities[entityKey(tenantID, kind, id)]
	if !ok {
		return nil, nil
	}
	clone := *ent
	return &clone, nil
}

func (g *mockGateway) SetStage(ctx context.Context, tenantID, kind, id, fromStage, toStage string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.setStageErr != nil {
		return g.setStageErr
	}
	ent, ok := g.entities[entityKey(tenantID, kind, id)]
	if !ok {
		return fmt.Errorf("%w: %s/%s", pipeline.ErrEntityNotFound, kind, id)
	}
	if ent.Stage != fromStage && ent.Stage != "" {
		return fmt.Errorf("%w: %s/%s is %s", pipeline.ErrStageConflict, kind, id, ent.Stage)
	}
	ent.Stage = toStage
	return nil
}

func (g *mockGateway) SetStatus(ctx context.Context, tenantID, kind, id, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ent, ok := g.entities[entityKey(tenantID, kind, id)]
	if !ok {
		return fmt.Errorf("%w: %s/%s", pipeline.ErrEntityNotFound, kind, id)
	}
	ent.Status = status
	return nil
}

func (g *mockGateway) CountByStage(ctx context.Context, tenantID, kind string) (map[string]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	counts := make(map[string]int)
	for _, ent := range g.entities {
		if ent.TenantID == tenantID && ent.Kind == kind {
			counts[ent.Stage]++
		}
	}
	return counts, nil
}

func (g *mockGateway) ListByStage(ctx context.Context, tenantID, kind, stage string, limit int) ([]*entity.PipelineEntity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastLimit = limit
	var out []*entity.PipelineEntity
	for _, ent := range g.entities {
		if ent.TenantID == tenantID && ent.Kind == kind && ent.Stage == stage {
			clone := *ent
			out = append(out, &clone)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// mockApprovalStore is an in-memory ApprovalStore. Resolved entries are kept
// so double resolution can be exercised.
type mockApprovalStore struct {
	mu        sync.Mutex
	entries   map[string]*entity.ApprovalEntry
	createErr error
	// loseRace makes MarkResolved report already-resolved despite a pending read
	loseRace bool
}

func newMockApprovalStore() *mockApprovalStore {
	return &mockApprovalStore{entries: make(map[string]*entity.ApprovalEntry)}
}

func (s *mockApprovalStore) Create(ctx context.Context, e *entity.ApprovalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	clone := *e
	s.entries[e.ID] = &clone
	return nil
}

func (s *mockApprovalStore) GetByID(ctx context.Context, id string) (*entity.ApprovalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	clone := *e
	return &clone, nil
}

func (s *mockApprovalStore) ListPending(ctx context.Context, tenantID string) ([]*entity.ApprovalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.ApprovalEntry
	for _, e := range s.entries {
		if e.TenantID == tenantID && e.Status == entity.ApprovalPending {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *mockApprovalStore) MarkResolved(ctx context.Context, id, status, processedBy, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loseRace {
		return false, nil
	}
	e, ok := s.entries[id]
	if !ok || e.Status != entity.ApprovalPending {
		return false, nil
	}
	e.Status = status
	e.ProcessedBy = processedBy
	e.Reason = reason
	return true, nil
}

// mockAuditSink collects audit records in memory
type mockAuditSink struct {
	mu        sync.Mutex
	records   []*entity.AuditRecord
	recordErr error
}

func (s *mockAuditSink) Record(ctx context.Context, rec *entity.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	clone := *rec
	s.records = append(s.records, &clone)
	return nil
}

func (s *mockAuditSink) ListByEntity(ctx context.Context, tenantID, kind, entityID string, limit int) ([]*entity.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.AuditRecord
	for _, rec := range s.records {
		if rec.TenantID == tenantID && rec.Kind == kind && rec.EntityID == entityID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

// mockNotifier records published events synchronously
type mockNotifier struct {
	mu     sync.Mutex
	events []*event.Event
}

func (n *mockNotifier) Publish(ctx context.Context, e *event.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *mockNotifier) byType(eventType event.Type) []*event.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*event.Event
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// mockTxManager runs the function without a real transaction
type mockTxManager struct{}

func (mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
