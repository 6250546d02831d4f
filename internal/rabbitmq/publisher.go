package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"social-sync/internal/telemetry"
)

// DefaultRoutingKey is used for sync envelopes published without a key.
const DefaultRoutingKey = "sync.lifecycle"

// Publisher ships sync lifecycle envelopes to a topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher connects to the telemetry exchange. Without a URL, or when the
// broker is unreachable, it returns a noop publisher carrying the reason.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		slog.Info("sync telemetry disabled", "reason", "empty amqp url")
		return noopPublisher{reason: "empty amqp url"}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		slog.Warn("sync telemetry disabled", "stage", "dial", "error", err)
		return noopPublisher{reason: err.Error()}
	}

	ch, err := conn.Channel()
	if err != nil {
		slog.Warn("sync telemetry disabled", "stage", "channel", "error", err)
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		slog.Warn("sync telemetry disabled", "stage", "exchange", "exchange", exchange, "error", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	slog.Info("sync telemetry connected", "exchange", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, now: time.Now}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	now      func() time.Time

	// amqp channels are not safe for concurrent publishes.
	mu sync.Mutex
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	key, msg, err := buildPublishing(routingKey, event, p.now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		slog.Warn("sync telemetry publish failed", "routing_key", key, "message_id", msg.MessageId, "error", err)
	}
	return err
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// buildPublishing resolves the routing key and wraps event in a persistent
// JSON message. Sync envelopes also carry their type, service and viewer as
// headers so consumers can bind on them without decoding the body.
func buildPublishing(routingKey string, event any, now time.Time) (string, amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", amqp.Publishing{}, err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now,
		Body:         body,
	}

	if envelope, ok := asEnvelope(event); ok {
		if routingKey == "" {
			routingKey = DefaultRoutingKey
		}
		msg.Type = envelope.EventType
		msg.AppId = envelope.Service
		headers := amqp.Table{
			"event_type":     envelope.EventType,
			"event":          envelope.Payload.Event,
			"service":        envelope.Service,
			"environment":    envelope.Environment,
			"schema_version": int32(envelope.SchemaVersion),
		}
		if envelope.ViewerID != nil {
			headers["viewer_id"] = *envelope.ViewerID
		}
		msg.Headers = headers
	}
	return routingKey, msg, nil
}

func asEnvelope(event any) (telemetry.SyncEnvelope, bool) {
	switch envelope := event.(type) {
	case telemetry.SyncEnvelope:
		return envelope, true
	case *telemetry.SyncEnvelope:
		if envelope != nil {
			return *envelope, true
		}
	}
	return telemetry.SyncEnvelope{}, false
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) Publish(_ context.Context, routingKey string, event any) error {
	if envelope, ok := asEnvelope(event); ok {
		slog.Debug("sync telemetry dropped", "routing_key", routingKey, "event_type", envelope.EventType, "event", envelope.Payload.Event)
		return nil
	}
	slog.Debug("sync telemetry dropped", "routing_key", routingKey)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports "amqp" or "noop" for startup logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher, *noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

func PublisherNoopReason(p Publisher) string {
	switch publisher := p.(type) {
	case noopPublisher:
		return publisher.reason
	case *noopPublisher:
		return publisher.reason
	default:
		return ""
	}
}
