package models

import "time"

// Conversation is the viewer's summary of a two-party thread.
type Conversation struct {
	ID                string    `json:"id"`
	Participants      []string  `json:"participants"`
	LastMessageText   string    `json:"lastMessageText,omitempty"`
	LastMessageAt     time.Time `json:"lastMessageAt,omitempty"`
	LastMessageSender string    `json:"lastMessageSender,omitempty"`
	UnreadCount       int       `json:"unreadCount"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Pagination is the metadata the backend returns next to list payloads.
type Pagination struct {
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
	Limit      int    `json:"limit,omitempty"`
	Total      int    `json:"total,omitempty"`
}

// ConversationList is one page of the conversation index.
type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
	Pagination    Pagination     `json:"pagination"`
}

// ReadResult reports how many records a read receipt touched.
type ReadResult struct {
	Matched  int `json:"matched"`
	Modified int `json:"modified"`
}
