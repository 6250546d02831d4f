package realtime

import "social-sync/internal/models"

// UpsertOptions tunes ConversationList.Upsert.
type UpsertOptions struct {
	// Append inserts at the tail instead of the head. Only bulk population
	// uses it.
	Append bool
	// ForceUnreadZero overrides whatever unread counter the incoming entry
	// carries; set while the viewer has the conversation open.
	ForceUnreadZero bool
}

// ConversationList is the recency-ordered conversation mirror, unique by id.
type ConversationList struct {
	items []models.Conversation
}

func NewConversationList() *ConversationList {
	return &ConversationList{}
}

// Upsert removes any entry sharing incoming's id and re-inserts incoming at
// the head (or tail with Append).
func (l *ConversationList) Upsert(incoming models.Conversation, opts UpsertOptions) {
	if opts.ForceUnreadZero {
		incoming.UnreadCount = 0
	}
	l.remove(incoming.ID)
	if opts.Append {
		l.items = append(l.items, incoming)
		return
	}
	l.items = append([]models.Conversation{incoming}, l.items...)
}

// Replace discards the current list and bulk-populates it in server order.
func (l *ConversationList) Replace(conversations []models.Conversation) {
	l.items = make([]models.Conversation, 0, len(conversations))
	for _, conv := range conversations {
		l.Upsert(conv, UpsertOptions{Append: true})
	}
}

// Update overwrites an existing entry in place without reordering. It
// reports false when the id is unknown.
func (l *ConversationList) Update(conv models.Conversation) bool {
	i := l.index(conv.ID)
	if i < 0 {
		return false
	}
	l.items[i] = conv
	return true
}

func (l *ConversationList) Get(id string) (models.Conversation, bool) {
	i := l.index(id)
	if i < 0 {
		return models.Conversation{}, false
	}
	return l.items[i], true
}

// SetUnread overwrites the unread counter of id. Unknown ids are ignored.
func (l *ConversationList) SetUnread(id string, unread int) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.items[i].UnreadCount = unread
	return true
}

// TotalUnread is the global aggregate: the sum of every per-conversation
// counter.
func (l *ConversationList) TotalUnread() int {
	total := 0
	for _, conv := range l.items {
		total += conv.UnreadCount
	}
	return total
}

func (l *ConversationList) Len() int {
	return len(l.items)
}

// Items returns a copy in display order.
func (l *ConversationList) Items() []models.Conversation {
	out := make([]models.Conversation, len(l.items))
	for i, conv := range l.items {
		conv.Participants = append([]string(nil), conv.Participants...)
		out[i] = conv
	}
	return out
}

func (l *ConversationList) index(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *ConversationList) remove(id string) {
	if i := l.index(id); i >= 0 {
		l.items = append(l.items[:i], l.items[i+1:]...)
	}
}
