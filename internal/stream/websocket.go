package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-sync/internal/session"
)

// WebSocketSource subscribes over a websocket; frames are JSON envelopes.
type WebSocketSource struct {
	urls   URLResolver
	dialer *websocket.Dialer
	retry  time.Duration
	logger *slog.Logger
}

func NewWebSocketSource(urls URLResolver, retry time.Duration, logger *slog.Logger) *WebSocketSource {
	return &WebSocketSource{
		urls:   urls,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		retry:  retry,
		logger: logger,
	}
}

func (s *WebSocketSource) Open(ctx context.Context, _ session.Session) (EventStream, error) {
	target, err := s.urls.StreamURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve stream url: %w", err)
	}
	wsURL, err := toWebSocketURL(target)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	return &wsStream{
		url:    wsURL,
		dialer: s.dialer,
		retry:  s.retry,
		logger: s.logger,
		ctx:    streamCtx,
		cancel: cancel,
	}, nil
}

func toWebSocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported stream url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

type wsStream struct {
	emitter

	url    string
	dialer *websocket.Dialer
	retry  time.Duration
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsStream) Start() {
	s.once.Do(func() {
		go runWithReconnect(s.ctx, "websocket", func() time.Duration { return s.retry }, s.logger, s.connect, s.fail)
	})
}

func (s *wsStream) Close() error {
	if !s.markClosed() {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

func (s *wsStream) connect(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return permanent(fmt.Errorf("websocket: handshake rejected with status %d", resp.StatusCode))
		}
		return err
	}

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		conn.Close()
		return ctx.Err()
	}
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		conn.Close()
	}()

	s.opened()
	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrStreamEnded
			}
			return err
		}
		ev, err := decodeFrame("", body)
		if err != nil {
			s.logger.Warn("websocket: dropping frame", "error", err)
			continue
		}
		s.dispatch(ev)
	}
}
