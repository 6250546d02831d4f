package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"social-sync/internal/session"
)

// SSESource opens text/event-stream subscriptions.
type SSESource struct {
	urls   URLResolver
	client *http.Client
	retry  time.Duration
	logger *slog.Logger
}

func NewSSESource(urls URLResolver, client *http.Client, retry time.Duration, logger *slog.Logger) *SSESource {
	if client == nil {
		client = &http.Client{}
	}
	return &SSESource{urls: urls, client: client, retry: retry, logger: logger}
}

func (s *SSESource) Open(ctx context.Context, _ session.Session) (EventStream, error) {
	target, err := s.urls.StreamURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve stream url: %w", err)
	}
	return newSSEStream(target, s.client, s.retry, s.logger), nil
}

type sseStream struct {
	emitter

	url    string
	client *http.Client
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu          sync.Mutex
	retry       time.Duration
	lastEventID string
}

func newSSEStream(target string, client *http.Client, retry time.Duration, logger *slog.Logger) *sseStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &sseStream{
		url:    target,
		client: client,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		retry:  retry,
	}
}

func (s *sseStream) Start() {
	s.once.Do(func() {
		go runWithReconnect(s.ctx, "sse", s.retryDelay, s.logger, s.connect, s.fail)
	})
}

// Close stops delivery without waiting for the reader, so it is safe to call
// from a handler.
func (s *sseStream) Close() error {
	if s.markClosed() {
		s.cancel()
	}
	return nil
}

func (s *sseStream) retryDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retry
}

func (s *sseStream) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return permanent(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	s.mu.Lock()
	if s.lastEventID != "" {
		req.Header.Set("Last-Event-ID", s.lastEventID)
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Like EventSource: a bad status or content type is not retried.
	if resp.StatusCode != http.StatusOK {
		return permanent(fmt.Errorf("sse: unexpected status %d", resp.StatusCode))
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		return permanent(fmt.Errorf("sse: unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	s.opened()
	return s.read(resp.Body)
}

func (s *sseStream) read(body io.Reader) error {
	reader := bufio.NewReader(body)
	var (
		eventType string
		data      strings.Builder
		hasData   bool
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.emit(eventType, data.String())
			}
			eventType = ""
			data.Reset()
			hasData = false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			eventType = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			s.mu.Lock()
			s.lastEventID = value
			s.mu.Unlock()
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				s.mu.Lock()
				s.retry = clampRetry(time.Duration(ms) * time.Millisecond)
				s.mu.Unlock()
			}
		}
	}
}

func (s *sseStream) emit(eventType, data string) {
	ev, err := decodeFrame(eventType, []byte(data))
	if err != nil {
		s.logger.Warn("sse: dropping frame", "event", eventType, "error", err)
		return
	}
	s.dispatch(ev)
}
