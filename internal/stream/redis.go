package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"social-sync/internal/session"
)

// RedisSource subscribes to the viewer channel over Redis pub/sub.
type RedisSource struct {
	opts   *redis.Options
	retry  time.Duration
	logger *slog.Logger
}

func NewRedisSource(addr, password string, db int, retry time.Duration, logger *slog.Logger) *RedisSource {
	return &RedisSource{
		opts:   &redis.Options{Addr: addr, Password: password, DB: db},
		retry:  retry,
		logger: logger,
	}
}

func (s *RedisSource) Open(_ context.Context, sess session.Session) (EventStream, error) {
	if sess.ViewerID == "" {
		return nil, session.ErrNoViewer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &redisStream{
		opts:    s.opts,
		channel: topicFor(sess),
		retry:   s.retry,
		logger:  s.logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

type redisStream struct {
	emitter

	opts    *redis.Options
	channel string
	retry   time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *redisStream) Start() {
	s.once.Do(func() {
		go runWithReconnect(s.ctx, "redis", func() time.Duration { return s.retry }, s.logger, s.connect, s.fail)
	})
}

func (s *redisStream) Close() error {
	if s.markClosed() {
		s.cancel()
	}
	return nil
}

func (s *redisStream) connect(ctx context.Context) error {
	client := redis.NewClient(s.opts)
	defer client.Close()

	pubsub := client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}

	s.opened()
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ErrStreamEnded
			}
			ev, err := decodeFrame("", []byte(msg.Payload))
			if err != nil {
				s.logger.Warn("redis: dropping frame", "channel", msg.Channel, "error", err)
				continue
			}
			s.dispatch(ev)
		}
	}
}
