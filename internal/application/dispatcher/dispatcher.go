package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/crmkit/pipeline-engine/internal/application/port"
	"github.com/crmkit/pipeline-engine/internal/domain/event"
	"go.uber.org/zap"
)

// TenantWildcard subscribes a handler to every tenant's channel. Used by
// transport bridges (the websocket hub) that fan events out themselves.
const TenantWildcard = "*"

// Dispatcher routes events to handlers subscribed on tenant channels. It is
// the in-process implementation of the EventNotifier port: publication is
// asynchronous and best-effort, handler errors are logged and swallowed.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerInfo
	logger   *zap.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a dispatcher
func New(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]HandlerInfo),
		logger:   logger,
	}
}

// Subscribe registers a named handler on a tenant channel. Use TenantWildcard
// to receive events for all tenants.
func (d *Dispatcher) Subscribe(tenantID, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[tenantID] = append(d.handlers[tenantID], HandlerInfo{
		Name:     name,
		TenantID: tenantID,
		Handler:  handler,
	})

	d.logger.Info("Handler subscribed",
		zap.String("tenant_id", tenantID),
		zap.String("handler_name", name))
}

// Unsubscribe removes a handler by name from a tenant channel
func (d *Dispatcher) Unsubscribe(tenantID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers := d.handlers[tenantID]
	filtered := make([]HandlerInfo, 0, len(handlers))
	for _, h := range handlers {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	d.handlers[tenantID] = filtered
}

// Publish delivers the event to the tenant's handlers and to wildcard
// handlers, asynchronously. Implements port.EventNotifier.
func (d *Dispatcher) Publish(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logger.Warn("Dropping event, dispatcher is closed",
			zap.String("event_type", evt.Type.String()),
			zap.String("event_id", evt.ID))
		return
	}

	d.mu.RLock()
	handlers := make([]HandlerInfo, 0, len(d.handlers[evt.TenantID])+len(d.handlers[TenantWildcard]))
	handlers = append(handlers, d.handlers[evt.TenantID]...)
	handlers = append(handlers, d.handlers[TenantWildcard]...)
	d.mu.RUnlock()

	d.logger.Debug("Publishing event",
		zap.String("event_type", evt.Type.String()),
		zap.String("tenant_id", evt.TenantID),
		zap.Int("handler_count", len(handlers)))

	for _, info := range handlers {
		d.wg.Add(1)
		go func(h HandlerInfo) {
			defer d.wg.Done()

			if err := d.safeExecute(ctx, evt, h); err != nil {
				d.logger.Error("Event handler error",
					zap.String("event_type", evt.Type.String()),
					zap.String("event_id", evt.ID),
					zap.String("handler_name", h.Name),
					zap.Error(err))
			}
		}(info)
	}
}

// Close shuts down the dispatcher and waits for in-flight handlers
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}
	d.wg.Wait()
	return nil
}

// safeExecute runs a handler with panic recovery
func (d *Dispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return info.Handler(ctx, evt)
}

// Verify interface compliance
var _ port.EventNotifier = (*Dispatcher)(nil)
