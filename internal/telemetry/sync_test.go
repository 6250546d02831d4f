package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"social-sync/internal/mocks"
	"social-sync/internal/telemetry"
)

func TestRecordPublishesEnvelope(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := telemetry.NewSyncEmitter(pub, "sync.lifecycle", "social-sync", "test")

	pub.On("Publish", mock.Anything, "sync.lifecycle", mock.MatchedBy(func(env telemetry.SyncEnvelope) bool {
		return env.EventType == "sync_lifecycle" &&
			env.Payload.Event == "fallback_armed" &&
			env.Payload.Attributes["interval"] == "30s" &&
			env.ViewerID != nil && *env.ViewerID == "u1" &&
			env.OccurredAt != "" &&
			env.Service == "social-sync"
	})).Return(nil).Once()

	emitter.Record(context.Background(), "fallback_armed", "u1", map[string]any{"interval": "30s"})
	pub.AssertExpectations(t)
}

func TestRecordOmitsEmptyViewerAndSwallowsErrors(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := telemetry.NewSyncEmitter(pub, "sync.lifecycle", "social-sync", "test")

	pub.On("Publish", mock.Anything, "sync.lifecycle", mock.MatchedBy(func(env telemetry.SyncEnvelope) bool {
		return env.ViewerID == nil && env.Payload.Event == "torn_down"
	})).Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		emitter.Record(context.Background(), "torn_down", "", nil)
	})
	pub.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *telemetry.SyncEmitter
	assert.NotPanics(t, func() {
		emitter.Record(context.Background(), "subscribed", "u1", nil)
	})
}
