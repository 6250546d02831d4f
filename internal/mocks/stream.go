package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"social-sync/internal/session"
	"social-sync/internal/stream"
)

var (
	_ stream.Source      = (*StreamSourceMock)(nil)
	_ stream.EventStream = (*FakeStream)(nil)
)

type StreamSourceMock struct {
	mock.Mock
}

func (m *StreamSourceMock) Open(ctx context.Context, s session.Session) (stream.EventStream, error) {
	args := m.Called(ctx, s)
	var st stream.EventStream
	if val := args.Get(0); val != nil {
		st = val.(stream.EventStream)
	}
	return st, args.Error(1)
}

// FakeStream is a hand-driven EventStream: tests push events and errors
// into whatever handlers the code under test registered.
type FakeStream struct {
	mu       sync.Mutex
	handlers map[string][]stream.EventHandler
	onError  []stream.ErrorHandler
	onOpen   []func()
	started  chan struct{}
	closed   bool
	starts   int
}

func NewFakeStream() *FakeStream {
	return &FakeStream{
		handlers: make(map[string][]stream.EventHandler),
		started:  make(chan struct{}),
	}
}

func (f *FakeStream) OnEvent(eventType string, handler stream.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[eventType] = append(f.handlers[eventType], handler)
}

func (f *FakeStream) OnError(handler stream.ErrorHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = append(f.onError, handler)
}

func (f *FakeStream) OnOpen(handler func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onOpen = append(f.onOpen, handler)
}

func (f *FakeStream) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.starts == 1 {
		close(f.started)
	}
}

func (f *FakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Started is closed on the first Start call.
func (f *FakeStream) Started() <-chan struct{} {
	return f.started
}

func (f *FakeStream) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Emit marshals payload and delivers it synchronously.
func (f *FakeStream) Emit(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	f.EmitRaw(eventType, data)
}

func (f *FakeStream) EmitRaw(eventType string, data json.RawMessage) {
	f.mu.Lock()
	handlers := append([]stream.EventHandler(nil), f.handlers[eventType]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

func (f *FakeStream) Fail(err error) {
	f.mu.Lock()
	handlers := append([]stream.ErrorHandler(nil), f.onError...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

func (f *FakeStream) Reopen() {
	f.mu.Lock()
	handlers := append([]func(){}, f.onOpen...)
	f.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}
