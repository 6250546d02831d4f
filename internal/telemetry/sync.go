package telemetry

import (
	"context"
	"log/slog"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// SyncEmitter publishes controller lifecycle events (subscribed,
// stream_errored, fallback_armed, fallback_disarmed, torn_down).
type SyncEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

type SyncEnvelope struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	OccurredAt    string      `json:"occurred_at"`
	Service       string      `json:"service"`
	Environment   string      `json:"environment"`
	ViewerID      *string     `json:"viewer_id,omitempty"`
	Payload       SyncPayload `json:"payload"`
}

type SyncPayload struct {
	Event      string         `json:"event"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func NewSyncEmitter(publisher Publisher, routingKey, service, environment string) *SyncEmitter {
	return &SyncEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Record satisfies realtime.Recorder. Publish failures are logged only.
func (e *SyncEmitter) Record(ctx context.Context, event, viewerID string, attrs map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := SyncEnvelope{
		SchemaVersion: 1,
		EventType:     "sync_lifecycle",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Payload: SyncPayload{
			Event:      event,
			Attributes: attrs,
		},
	}
	if viewerID != "" {
		envelope.ViewerID = &viewerID
	}

	slog.Debug("sync event emit", "event", event, "viewer_id", viewerID)
	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		slog.Warn("sync event publish failed", "event", event, "error", err)
	}
}
