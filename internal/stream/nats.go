package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"social-sync/internal/session"
)

// NATSSource subscribes to the viewer subject on a NATS bridge. The session
// token doubles as the connection token.
type NATSSource struct {
	url    string
	retry  time.Duration
	logger *slog.Logger
}

func NewNATSSource(url string, retry time.Duration, logger *slog.Logger) *NATSSource {
	return &NATSSource{url: url, retry: retry, logger: logger}
}

func (s *NATSSource) Open(_ context.Context, sess session.Session) (EventStream, error) {
	if sess.ViewerID == "" {
		return nil, session.ErrNoViewer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &natsStream{
		url:     s.url,
		token:   sess.Token,
		subject: topicFor(sess),
		retry:   s.retry,
		logger:  s.logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

type natsStream struct {
	emitter

	url     string
	token   string
	subject string
	retry   time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *natsStream) Start() {
	s.once.Do(func() {
		go runWithReconnect(s.ctx, "nats", func() time.Duration { return s.retry }, s.logger, s.connect, s.fail)
	})
}

func (s *natsStream) Close() error {
	if s.markClosed() {
		s.cancel()
	}
	return nil
}

func (s *natsStream) connect(ctx context.Context) error {
	closed := make(chan struct{})
	opts := []nats.Option{
		nats.Name("social-sync"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(s.retry),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.fail(fmt.Errorf("nats disconnected: %w", err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			s.opened()
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(closed)
		}),
	}
	if s.token != "" {
		opts = append(opts, nats.Token(s.token))
	}

	nc, err := nats.Connect(s.url, opts...)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := nc.Subscribe(s.subject, func(msg *nats.Msg) {
		eventType := msg.Header.Get("type")
		ev, err := decodeFrame(eventType, msg.Data)
		if err != nil {
			s.logger.Warn("nats: dropping frame", "subject", msg.Subject, "error", err)
			return
		}
		s.dispatch(ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", s.subject, err)
	}
	defer sub.Unsubscribe()

	s.opened()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-closed:
		if err := nc.LastError(); err != nil {
			return err
		}
		return ErrStreamEnded
	}
}
