package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a tenant-scoped domain event describing a stage change or an
// approval lifecycle step. Events are advisory: delivery is best-effort and
// never part of the transition's transactional boundary.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	TenantID  string                 `json:"tenant_id"`
	Kind      string                 `json:"kind"`
	EntityID  string                 `json:"entity_id"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// New creates an event with a generated id and current timestamp
func New(eventType Type, tenantID, kind, entityID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TenantID:  tenantID,
		Kind:      kind,
		EntityID:  entityID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// StageChanged builds the event published after an applied transition
func StageChanged(tenantID, kind, entityID, fromStage, toStage string) *Event {
	return New(TypeStageChanged, tenantID, kind, entityID, map[string]interface{}{
		"from_stage": fromStage,
		"to_stage":   toStage,
	})
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
}
