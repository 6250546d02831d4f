package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-sync/internal/models"
	"social-sync/internal/realtime"
)

type staticState realtime.State

func (s staticState) Snapshot() realtime.State { return realtime.State(s) }

func setupStateServer(t *testing.T, hub *Hub, st realtime.State) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/state", NewStateWebSocketHandler(hub, staticState(st)).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) StateEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, body, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev StateEvent
	require.NoError(t, json.Unmarshal(body, &ev))
	return ev
}

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub()

	hub.AddClient(nil, ConnInfo{ConnID: "c1"})
	assert.Equal(t, 1, hub.Len())

	hub.RemoveClient(nil)
	assert.Equal(t, 0, hub.Len())
}

func TestBroadcastWithoutClientsIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(realtime.SignedOutState())
	assert.Equal(t, 0, hub.Len())
}

func TestStateSocketSendsSnapshotThenBroadcasts(t *testing.T) {
	hub := NewHub()
	initial := realtime.State{
		ViewerID:      "u1",
		Stream:        realtime.StreamOpen,
		Conversations: []models.Conversation{{ID: "A", UnreadCount: 1}},
		UnreadTotal:   1,
	}
	srv := setupStateServer(t, hub, initial)
	conn := dial(t, srv)

	first := readState(t, conn)
	assert.Equal(t, "state", first.Type)
	assert.Equal(t, "u1", first.State.ViewerID)
	assert.Equal(t, 1, first.State.UnreadTotal)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(realtime.State{ViewerID: "u1", Stream: realtime.StreamErrored, FallbackArmed: true, Version: 4})
	next := readState(t, conn)
	assert.Equal(t, realtime.StreamErrored, next.State.Stream)
	assert.True(t, next.State.FallbackArmed)
	assert.EqualValues(t, 4, next.State.Version)
}

// racingState broadcasts a newer state the first time it is read while a
// subscriber is registered, then still returns the older one.
type racingState struct {
	hub   *Hub
	stale realtime.State
	fresh realtime.State
	once  sync.Once
}

func (s *racingState) Snapshot() realtime.State {
	if s.hub.Len() > 0 {
		s.once.Do(func() { s.hub.Broadcast(s.fresh) })
	}
	return s.stale
}

func TestStateSocketSkipsSnapshotSupersededByBroadcast(t *testing.T) {
	hub := NewHub()
	src := &racingState{
		hub:   hub,
		stale: realtime.State{ViewerID: "u1", Stream: realtime.StreamConnecting, Version: 3},
		fresh: realtime.State{ViewerID: "u1", Stream: realtime.StreamOpen, Version: 4},
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/state", NewStateWebSocketHandler(hub, src).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	conn := dial(t, srv)

	first := readState(t, conn)
	assert.EqualValues(t, 4, first.State.Version)
	assert.Equal(t, realtime.StreamOpen, first.State.Stream)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "stale snapshot must not follow the broadcast")
}

func TestClientWriteOrdering(t *testing.T) {
	c := &client{seq: 5}

	sent, err := c.write(5, nil)
	require.NoError(t, err)
	assert.False(t, sent)

	sent, err = c.write(2, nil)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.EqualValues(t, 5, c.seq)
}

func TestStateSocketUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	srv := setupStateServer(t, hub, realtime.SignedOutState())
	conn := dial(t, srv)
	readState(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}
