package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-sync/internal/models"
)

func ids(convs []models.Conversation) []string {
	out := make([]string, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}

func TestUpsertMovesToHead(t *testing.T) {
	l := NewConversationList()
	l.Replace([]models.Conversation{{ID: "A"}, {ID: "B"}, {ID: "C"}})

	l.Upsert(models.Conversation{ID: "C", UnreadCount: 2}, UpsertOptions{})
	assert.Equal(t, []string{"C", "A", "B"}, ids(l.Items()))
	assert.Equal(t, 3, l.Len())

	got, ok := l.Get("C")
	require.True(t, ok)
	assert.Equal(t, 2, got.UnreadCount)
}

func TestUpsertAppendAndForceUnreadZero(t *testing.T) {
	l := NewConversationList()
	l.Upsert(models.Conversation{ID: "A"}, UpsertOptions{Append: true})
	l.Upsert(models.Conversation{ID: "B", UnreadCount: 4}, UpsertOptions{Append: true, ForceUnreadZero: true})
	l.Upsert(models.Conversation{ID: "A", UnreadCount: 9}, UpsertOptions{Append: true})

	assert.Equal(t, []string{"B", "A"}, ids(l.Items()))
	b, _ := l.Get("B")
	assert.Equal(t, 0, b.UnreadCount)
	assert.Equal(t, 9, l.TotalUnread())
}

func TestReplaceDropsDuplicateIDs(t *testing.T) {
	l := NewConversationList()
	l.Upsert(models.Conversation{ID: "Z"}, UpsertOptions{})
	l.Replace([]models.Conversation{{ID: "A", UnreadCount: 1}, {ID: "B"}, {ID: "A", UnreadCount: 3}})

	assert.Equal(t, []string{"B", "A"}, ids(l.Items()))
	assert.Equal(t, 3, l.TotalUnread())
	_, ok := l.Get("Z")
	assert.False(t, ok)
}

func TestUpdateKeepsPosition(t *testing.T) {
	l := NewConversationList()
	l.Replace([]models.Conversation{{ID: "A"}, {ID: "B"}})

	assert.True(t, l.Update(models.Conversation{ID: "B", LastMessageText: "hi"}))
	assert.False(t, l.Update(models.Conversation{ID: "X"}))
	assert.Equal(t, []string{"A", "B"}, ids(l.Items()))
	assert.False(t, l.SetUnread("X", 1))
}

func TestItemsIsACopy(t *testing.T) {
	l := NewConversationList()
	l.Upsert(models.Conversation{ID: "A", Participants: []string{"u1", "u2"}}, UpsertOptions{})

	items := l.Items()
	items[0].UnreadCount = 5
	items[0].Participants[0] = "mallory"

	got, _ := l.Get("A")
	assert.Equal(t, 0, got.UnreadCount)
	assert.Equal(t, []string{"u1", "u2"}, got.Participants)
}
