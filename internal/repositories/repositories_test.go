package repositories

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-sync/internal/apiclient"
	"social-sync/internal/session"
)

type staticTokens struct{}

func (staticTokens) Current() (session.Session, error) {
	return session.Session{Token: "tok", Tenant: "acme", ViewerID: "me"}, nil
}

func setupAPI(t *testing.T, routes map[string]http.HandlerFunc) *apiclient.Client {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL, staticTokens{}, nil, 5*time.Second)
}

func TestListConversations(t *testing.T) {
	api := setupAPI(t, map[string]http.HandlerFunc{
		"GET /conversations": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "bob", r.URL.Query().Get("search"))
			assert.Equal(t, "20", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"data":[{"id":"A","participants":["me","bob"],"unreadCount":1}],"pagination":{"hasMore":false}}`))
		},
	})

	list, err := NewConversationRepo(api).ListConversations(context.Background(), " bob ", 20)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	assert.True(t, list.Conversations[0].HasParticipant("bob"))
	assert.False(t, list.Pagination.HasMore)
}

func TestListConversationsEmptyIsNotNil(t *testing.T) {
	api := setupAPI(t, map[string]http.HandlerFunc{
		"GET /conversations": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":null}`))
		},
	})

	list, err := NewConversationRepo(api).ListConversations(context.Background(), "", 0)
	require.NoError(t, err)
	assert.NotNil(t, list.Conversations)
	assert.Empty(t, list.Conversations)
}

func TestGetMessagesSortsAndCarriesCursor(t *testing.T) {
	api := setupAPI(t, map[string]http.HandlerFunc{
		"GET /conversations/A/messages": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "c1", r.URL.Query().Get("cursor"))
			_, _ = w.Write([]byte(`{"data":{"conversation":{"id":"A"},"messages":[
				{"id":"m2","conversationId":"A","createdAt":"2024-01-01T10:01:00Z"},
				{"id":"m1","conversationId":"A","createdAt":"2024-01-01T10:00:00Z"}]},
				"pagination":{"nextCursor":"c0","hasMore":true}}`))
		},
	})

	page, err := NewConversationRepo(api).GetMessages(context.Background(), "A", "c1", 30)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "m1", page.Messages[0].ID)
	assert.Equal(t, "m2", page.Messages[1].ID)
	assert.Equal(t, "c0", page.Pagination.NextCursor)
	assert.True(t, page.Pagination.HasMore)
}

func TestGetMessagesNotFound(t *testing.T) {
	api := setupAPI(t, map[string]http.HandlerFunc{
		"GET /conversations/Z/messages": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	})

	_, err := NewConversationRepo(api).GetMessages(context.Background(), "Z", "", 30)
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	called := false
	api := setupAPI(t, map[string]http.HandlerFunc{
		"POST /conversations/A/messages": func(w http.ResponseWriter, r *http.Request) {
			called = true
		},
	})

	_, err := NewConversationRepo(api).SendMessage(context.Background(), "A", "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.False(t, called)
}

func TestSendMessageAndMarkRead(t *testing.T) {
	api := setupAPI(t, map[string]http.HandlerFunc{
		"POST /conversations/A/messages": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"message":{"id":"m9","conversationId":"A","text":"yo"},"conversation":{"id":"A","lastMessageText":"yo"}}}`))
		},
		"POST /conversations/A/read": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"matched":3,"modified":2}}`))
		},
	})
	repo := NewConversationRepo(api)

	res, err := repo.SendMessage(context.Background(), "A", "yo")
	require.NoError(t, err)
	assert.Equal(t, "m9", res.Message.ID)
	assert.Equal(t, "yo", res.Conversation.LastMessageText)

	read, err := repo.MarkRead(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 3, read.Matched)
	assert.Equal(t, 2, read.Modified)
}

func TestNotificationRepo(t *testing.T) {
	api := setupAPI(t, map[string]http.HandlerFunc{
		"GET /notifications/unread-count": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"unreadCount":7}}`))
		},
		"GET /notifications": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"id":"n1","type":"like"}]}`))
		},
		"POST /notifications/read": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"matched":7,"modified":7}}`))
		},
	})
	repo := NewNotificationRepo(api)

	count, err := repo.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	items, err := repo.ListNotifications(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "like", items[0].Type)

	res, err := repo.MarkAllRead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Modified)
}

func TestFriendRepoActions(t *testing.T) {
	api := setupAPI(t, map[string]http.HandlerFunc{
		"GET /friends/requests": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"id":"r1","fromUserId":"bob","status":"pending"}]}`))
		},
		"POST /friends/requests": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"id":"r2","toUserId":"carol","status":"pending"}}`))
		},
		"POST /friends/requests/r1/accept": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"id":"r1","status":"accepted"}}`))
		},
		"POST /friends/requests/missing/reject": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	})
	repo := NewFriendRepo(api)

	reqs, err := repo.ListRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	sent, err := repo.SendRequest(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "r2", sent.ID)

	_, err = repo.SendRequest(context.Background(), "me")
	require.ErrorIs(t, err, ErrInvalidUser)

	accepted, err := repo.AcceptRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "accepted", accepted.Status)

	_, err = repo.RejectRequest(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestStreamURLDerivedFromBase(t *testing.T) {
	api := setupAPI(t, nil)

	raw, err := NewStreamRepo(api, "https://push.test/events?v=2").StreamURL(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "push.test", u.Host)
	assert.Equal(t, "tok", u.Query().Get("token"))
	assert.Equal(t, "acme", u.Query().Get("tenant"))
	assert.Equal(t, "2", u.Query().Get("v"))
}

func TestStreamURLFetchedFromBackend(t *testing.T) {
	api := setupAPI(t, map[string]http.HandlerFunc{
		"GET /stream/url": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"url":"https://push.test/sse"}}`))
		},
	})

	raw, err := NewStreamRepo(api, "").StreamURL(context.Background())
	require.NoError(t, err)
	assert.Contains(t, raw, "https://push.test/sse?")
	assert.Contains(t, raw, "token=tok")
}
