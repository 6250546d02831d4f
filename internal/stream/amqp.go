package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"social-sync/internal/session"
)

// AMQPSource consumes the viewer's events from a topic exchange through an
// exclusive auto-delete queue.
type AMQPSource struct {
	url      string
	exchange string
	retry    time.Duration
	logger   *slog.Logger
}

func NewAMQPSource(url, exchange string, retry time.Duration, logger *slog.Logger) *AMQPSource {
	return &AMQPSource{url: url, exchange: exchange, retry: retry, logger: logger}
}

func (s *AMQPSource) Open(_ context.Context, sess session.Session) (EventStream, error) {
	if sess.ViewerID == "" {
		return nil, session.ErrNoViewer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &amqpStream{
		url:        s.url,
		exchange:   s.exchange,
		routingKey: topicFor(sess),
		retry:      s.retry,
		logger:     s.logger,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

type amqpStream struct {
	emitter

	url        string
	exchange   string
	routingKey string
	retry      time.Duration
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *amqpStream) Start() {
	s.once.Do(func() {
		go runWithReconnect(s.ctx, "amqp", func() time.Duration { return s.retry }, s.logger, s.connect, s.fail)
	})
}

func (s *amqpStream) Close() error {
	if s.markClosed() {
		s.cancel()
	}
	return nil
}

func (s *amqpStream) connect(ctx context.Context) error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, s.routingKey, s.exchange, false, nil); err != nil {
		return err
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	s.opened()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				return fmt.Errorf("amqp connection closed: %w", amqpErr)
			}
			return ErrStreamEnded
		case d, ok := <-deliveries:
			if !ok {
				return ErrStreamEnded
			}
			ev, err := decodeFrame(d.Type, d.Body)
			if err != nil {
				s.logger.Warn("amqp: dropping frame", "routing_key", d.RoutingKey, "error", err)
				continue
			}
			s.dispatch(ev)
		}
	}
}
