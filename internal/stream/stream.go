// Package stream abstracts the server-push channel. The sync controller is
// written against EventStream only; each transport has its own adapter.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"social-sync/internal/models"
	"social-sync/internal/session"
)

var (
	ErrClosed      = errors.New("stream closed")
	ErrStreamEnded = errors.New("stream ended by server")
)

// EventHandler receives the raw payload of one event.
type EventHandler func(data json.RawMessage)

// ErrorHandler receives push channel failures.
type ErrorHandler func(err error)

// EventStream is a server-push subscription. Handlers must be registered
// before Start; delivery stops once Close returns.
type EventStream interface {
	OnEvent(eventType string, handler EventHandler)
	OnError(handler ErrorHandler)
	OnOpen(handler func())
	Start()
	Close() error
}

// Source opens a stream scoped to the session's viewer.
type Source interface {
	Open(ctx context.Context, s session.Session) (EventStream, error)
}

// URLResolver yields the subscription URL (token and tenant in the query).
type URLResolver interface {
	StreamURL(ctx context.Context) (string, error)
}

// emitter is the handler registry shared by every adapter.
type emitter struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	onError  []ErrorHandler
	onOpen   []func()
	closed   bool
}

func (e *emitter) OnEvent(eventType string, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[string][]EventHandler)
	}
	e.handlers[eventType] = append(e.handlers[eventType], handler)
}

func (e *emitter) OnError(handler ErrorHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = append(e.onError, handler)
}

func (e *emitter) OnOpen(handler func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOpen = append(e.onOpen, handler)
}

func (e *emitter) markClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.closed = true
	return true
}

func (e *emitter) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

func (e *emitter) dispatch(ev models.Event) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return
	}
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev.Data)
	}
}

func (e *emitter) fail(err error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return
	}
	handlers := e.onError
	e.mu.RUnlock()

	for _, h := range handlers {
		h(err)
	}
}

func (e *emitter) opened() {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return
	}
	handlers := e.onOpen
	e.mu.RUnlock()

	for _, h := range handlers {
		h()
	}
}

// decodeFrame parses a JSON envelope {type, data} (or {type, payload}).
// When eventType is non-empty the whole body is taken as the payload.
func decodeFrame(eventType string, body []byte) (models.Event, error) {
	if eventType != "" && eventType != "message" {
		return models.Event{Type: eventType, Data: json.RawMessage(body)}, nil
	}

	var frame struct {
		Type    string          `json:"type"`
		Data    json.RawMessage `json:"data"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &frame); err != nil {
		return models.Event{}, fmt.Errorf("decode frame: %w", err)
	}
	if frame.Type == "" {
		return models.Event{}, fmt.Errorf("decode frame: missing type")
	}
	data := frame.Data
	if len(data) == 0 {
		data = frame.Payload
	}
	return models.Event{Type: frame.Type, Data: data}, nil
}

// topicFor names the per-viewer channel on broker transports.
func topicFor(s session.Session) string {
	tenant := s.Tenant
	if tenant == "" {
		tenant = "default"
	}
	return "events." + sanitizeToken(tenant) + "." + sanitizeToken(s.ViewerID)
}

func sanitizeToken(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '#':
			return '_'
		}
		return r
	}, v)
}
