package models

import "encoding/json"

// Push event types delivered by the backend stream.
const (
	EventMessageNew       = "message_new"
	EventConversationRead = "conversation_read"
	EventUnreadCount      = "unread_count"
	EventNotificationNew  = "notification_new"
)

// Event is a single push-channel frame. Data is decoded lazily by the
// consumer according to Type.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MessageNewPayload accompanies message_new.
type MessageNewPayload struct {
	Conversation Conversation `json:"conversation"`
	Message      Message      `json:"message"`
}

// ConversationReadPayload accompanies conversation_read.
type ConversationReadPayload struct {
	ConversationID string `json:"conversationId"`
}

// UnreadCountPayload accompanies unread_count.
type UnreadCountPayload struct {
	UnreadCount int `json:"unreadCount"`
}
