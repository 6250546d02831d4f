package models

import "time"

// Message represents a direct message inside a conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Text           string     `json:"text"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	Pending        bool       `json:"pending,omitempty"`
}

// MessagePage is one cursor-addressed page of a conversation thread,
// ordered oldest to newest.
type MessagePage struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
	Pagination   Pagination   `json:"pagination"`
}

// SendMessageRequest is the body of a send call.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
}

// SendResult carries the created message and the refreshed summary.
type SendResult struct {
	Message      Message      `json:"message"`
	Conversation Conversation `json:"conversation"`
}
