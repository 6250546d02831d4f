package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"social-sync/internal/observability"
	"social-sync/internal/realtime"
)

// StateSource yields the current reconciled state.
type StateSource interface {
	Snapshot() realtime.State
}

// StateWebSocketHandler serves GET /ws/state.
type StateWebSocketHandler struct {
	hub   *Hub
	state StateSource
}

// NewStateWebSocketHandler constructs a StateWebSocketHandler.
func NewStateWebSocketHandler(hub *Hub, state StateSource) *StateWebSocketHandler {
	return &StateWebSocketHandler{hub: hub, state: state}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers it with the hub, sends the
// current snapshot and keeps the subscriber registered until it disconnects.
func (h *StateWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("social-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := observability.ClientFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		ViewerID:    h.state.Snapshot().ViewerID,
		DeviceID:    client.DeviceID,
		IP:          client.IP,
		RequestID:   client.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	// Register before snapshotting so no broadcast falls in between.
	h.hub.AddClient(conn, info)
	h.hub.SendSnapshot(conn, h.state)

	observability.IncWSActive()
	publishWSEvent(ctx, "ws_connect", info, "")

	// Subscribers only listen; reads detect the close.
	go func() {
		closeReason := ""
		defer func() {
			h.hub.RemoveClient(conn)
			observability.DecWSActive()
			publishWSEvent(ctx, "ws_disconnect", info, closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(ctx, "ws_error", info, closeReason)
				}
				return
			}
		}
	}()
}
