package port

import (
	"context"

	"github.com/crmkit/pipeline-engine/internal/domain/event"
)

// EventNotifier publishes domain events to subscribers of a tenant channel.
// Publication is fire-and-forget: a failed delivery must never fail or roll
// back the transition that produced the event.
type EventNotifier interface {
	Publish(ctx context.Context, evt *event.Event)
}
