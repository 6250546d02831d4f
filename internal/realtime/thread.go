package realtime

import (
	"sort"
	"time"

	"social-sync/internal/models"
)

// Thread holds the open conversation's messages, oldest first, and the
// cursor for the next older page.
type Thread struct {
	ConversationID string
	NextCursor     string
	HasMore        bool

	messages []models.Message
	ids      map[string]struct{}
}

func NewThread(conversationID string) *Thread {
	return &Thread{ConversationID: conversationID, ids: make(map[string]struct{})}
}

// Reset replaces the thread with the newest page. Messages already held
// that the page does not carry and that are newer than its newest message
// (push deliveries or pending sends that raced the fetch) are kept at the
// tail.
func (t *Thread) Reset(page models.MessagePage) {
	var newest time.Time
	inPage := make(map[string]struct{}, len(page.Messages))
	for _, msg := range page.Messages {
		inPage[msg.ID] = struct{}{}
		if msg.CreatedAt.After(newest) {
			newest = msg.CreatedAt
		}
	}

	var carry []models.Message
	for _, msg := range t.messages {
		if _, ok := inPage[msg.ID]; ok {
			continue
		}
		if msg.CreatedAt.After(newest) {
			carry = append(carry, msg)
		}
	}

	t.messages = make([]models.Message, 0, len(page.Messages)+len(carry))
	t.ids = make(map[string]struct{}, len(page.Messages)+len(carry))
	for _, msg := range page.Messages {
		t.Append(msg)
	}
	for _, msg := range carry {
		t.Append(msg)
	}
	t.NextCursor = page.Pagination.NextCursor
	t.HasMore = page.Pagination.HasMore
}

// Append adds msg at the tail unless its id is already present.
func (t *Thread) Append(msg models.Message) bool {
	if _, ok := t.ids[msg.ID]; ok {
		return false
	}
	t.ids[msg.ID] = struct{}{}
	t.messages = append(t.messages, msg)
	return true
}

// PrependOlder merges an older page in front of the current messages,
// skipping ids already present. Newer messages are left untouched.
func (t *Thread) PrependOlder(page models.MessagePage) int {
	older := make([]models.Message, 0, len(page.Messages))
	for _, msg := range page.Messages {
		if _, ok := t.ids[msg.ID]; ok {
			continue
		}
		t.ids[msg.ID] = struct{}{}
		older = append(older, msg)
	}
	sort.SliceStable(older, func(i, j int) bool {
		return older[i].CreatedAt.Before(older[j].CreatedAt)
	})
	t.messages = append(older, t.messages...)
	t.NextCursor = page.Pagination.NextCursor
	t.HasMore = page.Pagination.HasMore
	return len(older)
}

// Confirm swaps a pending message for its server copy. When a push echo
// already delivered the server copy the pending entry is just dropped.
func (t *Thread) Confirm(localID string, confirmed models.Message) {
	if _, ok := t.ids[confirmed.ID]; ok {
		t.Remove(localID)
		return
	}
	for i := range t.messages {
		if t.messages[i].ID == localID {
			delete(t.ids, localID)
			t.ids[confirmed.ID] = struct{}{}
			t.messages[i] = confirmed
			return
		}
	}
	t.Append(confirmed)
}

func (t *Thread) Remove(id string) bool {
	if _, ok := t.ids[id]; !ok {
		return false
	}
	delete(t.ids, id)
	for i := range t.messages {
		if t.messages[i].ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			break
		}
	}
	return true
}

func (t *Thread) Has(id string) bool {
	_, ok := t.ids[id]
	return ok
}

func (t *Thread) Len() int {
	return len(t.messages)
}

func (t *Thread) Messages() []models.Message {
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}
