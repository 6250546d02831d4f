package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"social-sync/internal/models"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func msg(id, conversationID, sender string, minute int) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       sender,
		Text:           "text " + id,
		CreatedAt:      epoch.Add(time.Duration(minute) * time.Minute),
	}
}

func messageIDs(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestThreadAppendDeduplicates(t *testing.T) {
	th := NewThread("A")
	assert.True(t, th.Append(msg("m1", "A", "u2", 1)))
	assert.False(t, th.Append(msg("m1", "A", "u2", 1)))
	assert.Equal(t, 1, th.Len())
}

func TestThreadPrependOlderSkipsKnownIDs(t *testing.T) {
	th := NewThread("A")
	th.Reset(models.MessagePage{
		Messages:   []models.Message{msg("m3", "A", "u2", 3), msg("m4", "A", "u1", 4)},
		Pagination: models.Pagination{NextCursor: "c1", HasMore: true},
	})

	added := th.PrependOlder(models.MessagePage{
		Messages:   []models.Message{msg("m1", "A", "u2", 1), msg("m2", "A", "u2", 2), msg("m3", "A", "u2", 3)},
		Pagination: models.Pagination{HasMore: false},
	})

	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, messageIDs(th.Messages()))
	assert.False(t, th.HasMore)
	assert.Empty(t, th.NextCursor)
}

func TestThreadConfirmReplacesPending(t *testing.T) {
	th := NewThread("A")
	pending := msg("local-1", "A", "u1", 1)
	pending.Pending = true
	th.Append(pending)

	th.Confirm("local-1", msg("m9", "A", "u1", 1))

	got := th.Messages()
	assert.Equal(t, []string{"m9"}, messageIDs(got))
	assert.False(t, got[0].Pending)
	assert.False(t, th.Has("local-1"))
}

func TestThreadConfirmAfterEcho(t *testing.T) {
	th := NewThread("A")
	th.Append(models.Message{ID: "local-1", Pending: true})
	th.Append(msg("m9", "A", "u1", 1))

	th.Confirm("local-1", msg("m9", "A", "u1", 1))

	assert.Equal(t, []string{"m9"}, messageIDs(th.Messages()))
}

func TestThreadRemove(t *testing.T) {
	th := NewThread("A")
	th.Append(msg("m1", "A", "u2", 1))
	th.Append(msg("m2", "A", "u2", 2))

	assert.True(t, th.Remove("m1"))
	assert.False(t, th.Remove("m1"))
	assert.Equal(t, []string{"m2"}, messageIDs(th.Messages()))
}

func TestThreadResetKeepsNewerMessagesMissingFromPage(t *testing.T) {
	th := NewThread("A")
	th.Append(msg("m1", "A", "u2", 1))
	th.Append(msg("m3", "A", "u2", 3))

	th.Reset(models.MessagePage{
		Messages:   []models.Message{msg("m1", "A", "u2", 1), msg("m2", "A", "u2", 2)},
		Pagination: models.Pagination{NextCursor: "c1", HasMore: true},
	})

	assert.Equal(t, []string{"m1", "m2", "m3"}, messageIDs(th.Messages()))
	assert.Equal(t, "c1", th.NextCursor)
}

func TestThreadResetDropsOlderMessagesMissingFromPage(t *testing.T) {
	th := NewThread("A")
	th.Append(msg("m1", "A", "u2", 1))
	th.Append(msg("m2", "A", "u2", 2))

	th.Reset(models.MessagePage{Messages: []models.Message{msg("m2", "A", "u2", 2), msg("m4", "A", "u2", 4)}})

	assert.Equal(t, []string{"m2", "m4"}, messageIDs(th.Messages()))
	assert.True(t, th.Has("m4"))
	assert.False(t, th.Has("m1"))
}
