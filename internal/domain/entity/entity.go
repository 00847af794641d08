package entity

import "time"

// PipelineEntity is the engine's view of a business entity: identity,
// tenancy, kind, and the single current-stage attribute the engine owns.
// Everything else about the entity lives with its CRUD controllers.
type PipelineEntity struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApprovalEntry is a queued two-phase transition request awaiting admin
// resolution. Created as pending; resolved exactly once.
type ApprovalEntry struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Kind        string     `json:"kind"`
	EntityID    string     `json:"entity_id"`
	FromStage   string     `json:"from_stage"`
	ToStage     string     `json:"to_stage"`
	RequestedBy string     `json:"requested_by"`
	Notes       string     `json:"notes,omitempty"`
	Status      string     `json:"status"`
	ProcessedBy string     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AuditRecord is one append-only entry in the transition audit trail
type AuditRecord struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Kind      string    `json:"kind"`
	EntityID  string    `json:"entity_id"`
	FromStage string    `json:"from_stage"`
	ToStage   string    `json:"to_stage"`
	ActorID   string    `json:"actor_id"`
	Notes     string    `json:"notes,omitempty"`
	Gated     bool      `json:"gated"`
	Timestamp time.Time `json:"timestamp"`
}
