package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-sync/internal/observability"
	"social-sync/internal/realtime"
)

const writeWait = 5 * time.Second

// StateEvent is the frame pushed to UI subscribers.
type StateEvent struct {
	Type  string         `json:"type"`
	State realtime.State `json:"state"`
}

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
	// seq is the hub sequence of the newest frame written.
	seq uint64
}

// write sends payload unless a frame with a later sequence already went out.
func (c *client) write(seq uint64, payload []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.seq || (seq == c.seq && seq != 0) {
		return false, nil
	}
	c.seq = seq
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return true, c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub fans reconciled state snapshots out to local websocket subscribers.
// Every broadcast takes the next sequence number so that a subscriber never
// receives an older frame after a newer one.
type Hub struct {
	clients map[*websocket.Conn]*client
	seq     uint64
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// AddClient registers a subscriber connection.
func (h *Hub) AddClient(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{conn: conn, info: info}
}

// RemoveClient forgets a subscriber connection.
func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends st to every subscriber. It has the listener signature
// expected by realtime.Supervisor.OnChange.
func (h *Hub) Broadcast(st realtime.State) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(StateEvent{Type: "state", State: st})
	if err != nil {
		slog.Error("encode state event", "error", err)
		return
	}
	for _, c := range clients {
		h.send(c, seq, payload)
	}
}

// SendSnapshot writes the current state of src to a registered connection.
// The connection must be added first: a broadcast that reaches it while the
// snapshot is taken supersedes the snapshot, which is then skipped.
func (h *Hub) SendSnapshot(conn *websocket.Conn, src StateSource) (realtime.State, bool) {
	h.mu.RLock()
	c, ok := h.clients[conn]
	seq := h.seq
	h.mu.RUnlock()
	st := src.Snapshot()
	if !ok {
		return st, false
	}
	payload, err := json.Marshal(StateEvent{Type: "state", State: st})
	if err != nil {
		slog.Error("encode state event", "error", err)
		return st, false
	}
	return st, h.send(c, seq, payload)
}

func (h *Hub) send(c *client, seq uint64, payload []byte) bool {
	sent, err := c.write(seq, payload)
	if err != nil {
		slog.Warn("websocket write error", "conn_id", c.info.ConnID, "error", err)
		c.conn.Close()
		h.RemoveClient(c.conn)
		publishWSEvent(context.Background(), "ws_error", c.info, err.Error())
		return false
	}
	if !sent {
		slog.Debug("websocket snapshot superseded", "conn_id", c.info.ConnID)
	}
	return sent
}

func publishWSEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"viewer_id": info.ViewerID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	_ = observability.PublishEvent(ctx, observability.RoutingKeyWSEvents,
		observability.NewEnvelope("ws_events", event, payload),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
