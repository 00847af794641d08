// Package websocket bridges the application dispatcher to per-tenant
// websocket subscribers. It is a transport adapter: delivery is best-effort
// and a dead connection is dropped, never retried.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"

	"github.com/crmkit/pipeline-engine/internal/application/dispatcher"
	"github.com/crmkit/pipeline-engine/internal/domain/event"
	"go.uber.org/zap"
)

// Hub fans domain events out to the websocket connections subscribed to each
// tenant channel.
type Hub struct {
	upgrader gws.Upgrader
	logger   *zap.Logger

	mu    sync.Mutex
	conns map[string]map[*gws.Conn]bool
}

// NewHub creates a hub and subscribes it to all tenant channels on the
// dispatcher.
func NewHub(d *dispatcher.Dispatcher, logger *zap.Logger) *Hub {
	h := &Hub{
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Access control happens upstream of the engine
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[string]map[*gws.Conn]bool),
	}

	d.Subscribe(dispatcher.TenantWildcard, "websocket-hub", h.handleEvent)
	return h
}

// Serve upgrades the request and keeps the connection registered on the
// tenant channel until the peer disconnects.
func (h *Hub) Serve(c *gin.Context) {
	tenantID := c.Param("tenant")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}

	h.register(tenantID, conn)
	h.logger.Info("Websocket subscriber connected", zap.String("tenant_id", tenantID))

	// Read loop exists only to detect the peer closing
	go func() {
		defer func() {
			h.unregister(tenantID, conn)
			conn.Close()
			h.logger.Info("Websocket subscriber disconnected", zap.String("tenant_id", tenantID))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// handleEvent is the dispatcher handler: marshal once, write to every
// connection on the event's tenant channel.
func (h *Hub) handleEvent(_ context.Context, evt *event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[evt.TenantID] {
		if err := conn.WriteMessage(gws.TextMessage, payload); err != nil {
			h.logger.Warn("Dropping dead websocket connection",
				zap.String("tenant_id", evt.TenantID), zap.Error(err))
			delete(h.conns[evt.TenantID], conn)
			conn.Close()
		}
	}
	return nil
}

func (h *Hub) register(tenantID string, conn *gws.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[tenantID] == nil {
		h.conns[tenantID] = make(map[*gws.Conn]bool)
	}
	h.conns[tenantID][conn] = true
}

func (h *Hub) unregister(tenantID string, conn *gws.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns[tenantID], conn)
	if len(h.conns[tenantID]) == 0 {
		delete(h.conns, tenantID)
	}
}

// Close drops all connections
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for tenantID, conns := range h.conns {
		for conn := range conns {
			conn.Close()
		}
		delete(h.conns, tenantID)
	}
}
