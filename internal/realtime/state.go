package realtime

import "social-sync/internal/models"

// StreamState is the push connection lifecycle as seen by the controller.
type StreamState string

const (
	StreamIdle       StreamState = "idle"
	StreamConnecting StreamState = "connecting"
	StreamOpen       StreamState = "open"
	// StreamErrored means the channel reported a failure and fallback
	// polling is (or was) armed.
	StreamErrored StreamState = "errored"
	StreamClosed  StreamState = "closed"
)

// State is an immutable snapshot handed to readers and listeners.
type State struct {
	ViewerID           string                `json:"viewerId,omitempty"`
	Stream             StreamState           `json:"stream"`
	FallbackArmed      bool                  `json:"fallbackArmed"`
	Conversations      []models.Conversation `json:"conversations"`
	UnreadTotal        int                   `json:"unreadTotal"`
	NotificationUnread int                   `json:"notificationUnread"`
	Thread             *ThreadState          `json:"thread,omitempty"`
	Version            uint64                `json:"version"`
}

type ThreadState struct {
	ConversationID string           `json:"conversationId"`
	Messages       []models.Message `json:"messages"`
	NextCursor     string           `json:"nextCursor,omitempty"`
	HasMore        bool             `json:"hasMore"`
}

// SignedOutState is published when no viewer is signed in.
func SignedOutState() State {
	return State{Stream: StreamIdle, Conversations: []models.Conversation{}}
}
