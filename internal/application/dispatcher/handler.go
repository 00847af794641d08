package dispatcher

import (
	"context"

	"github.com/crmkit/pipeline-engine/internal/domain/event"
)

// Handler processes a published event for one subscriber
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name     string
	TenantID string
	Handler  Handler
}
