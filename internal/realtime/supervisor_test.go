package realtime

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-sync/internal/mocks"
	"social-sync/internal/models"
	"social-sync/internal/session"
)

func TestSupervisorFollowsSession(t *testing.T) {
	var (
		mu      sync.Mutex
		streams []*mocks.FakeStream
	)
	factory := func(sess session.Session) *Controller {
		convs := new(mocks.ConversationRepositoryMock)
		convs.On("ListConversations", mock.Anything, "", mock.Anything).
			Return(models.ConversationList{Conversations: []models.Conversation{{ID: "A", UnreadCount: 1}}}, nil)
		notes := new(mocks.NotificationRepositoryMock)
		notes.On("UnreadCount", mock.Anything).Return(0, nil)
		fs := mocks.NewFakeStream()
		source := new(mocks.StreamSourceMock)
		source.On("Open", mock.Anything, sess).Return(fs, nil)

		mu.Lock()
		streams = append(streams, fs)
		mu.Unlock()
		return NewController(convs, notes, source, Options{NewTicker: (&tickerFactory{}).New, Logger: discardLogger()})
	}

	sup := NewSupervisor(factory, discardLogger())
	t.Cleanup(func() { _ = sup.Close() })

	var last State
	var lastMu sync.Mutex
	sup.OnChange(func(st State) {
		lastMu.Lock()
		last = st
		lastMu.Unlock()
	})

	assert.Equal(t, StreamIdle, sup.Snapshot().Stream)
	_, ok := sup.Current()
	assert.False(t, ok)

	sup.HandleSessionChange(session.Session{}, viewer)
	first, ok := sup.Current()
	require.True(t, ok)
	first.Wait()
	require.Eventually(t, func() bool {
		return sup.Snapshot().UnreadTotal == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Same token: nothing changes.
	sup.HandleSessionChange(viewer, viewer)
	same, _ := sup.Current()
	assert.Same(t, first, same)

	sup.HandleSessionChange(viewer, session.Session{})
	_, ok = sup.Current()
	assert.False(t, ok)
	assert.False(t, first.Active())

	mu.Lock()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].Closed())
	mu.Unlock()

	lastMu.Lock()
	assert.Equal(t, StreamIdle, last.Stream)
	assert.Empty(t, last.Conversations)
	lastMu.Unlock()

	// Late snapshots from a torn-down controller are not forwarded.
	streams[0].Emit(models.EventUnreadCount, models.UnreadCountPayload{UnreadCount: 9})
	assert.Zero(t, sup.Snapshot().NotificationUnread)
}

func TestSupervisorReplacesControllerOnNewToken(t *testing.T) {
	built := 0
	factory := func(sess session.Session) *Controller {
		built++
		convs := new(mocks.ConversationRepositoryMock)
		convs.On("ListConversations", mock.Anything, "", mock.Anything).Return(models.ConversationList{}, nil)
		notes := new(mocks.NotificationRepositoryMock)
		notes.On("UnreadCount", mock.Anything).Return(0, nil)
		source := new(mocks.StreamSourceMock)
		source.On("Open", mock.Anything, sess).Return(mocks.NewFakeStream(), nil)
		return NewController(convs, notes, source, Options{NewTicker: (&tickerFactory{}).New, Logger: discardLogger()})
	}
	sup := NewSupervisor(factory, discardLogger())
	t.Cleanup(func() { _ = sup.Close() })

	sup.HandleSessionChange(session.Session{}, viewer)
	first, _ := sup.Current()

	refreshed := viewer
	refreshed.Token = "tok-2"
	sup.HandleSessionChange(viewer, refreshed)
	second, ok := sup.Current()
	require.True(t, ok)

	assert.NotSame(t, first, second)
	assert.False(t, first.Active())
	assert.True(t, second.Active())
	assert.Equal(t, 2, built)
	first.Wait()
	second.Wait()
}

func TestSupervisorCloseDrainsBackgroundFetches(t *testing.T) {
	release := make(chan struct{})
	var fetched atomic.Bool
	factory := func(sess session.Session) *Controller {
		convs := new(mocks.ConversationRepositoryMock)
		convs.On("ListConversations", mock.Anything, "", mock.Anything).
			Run(func(mock.Arguments) {
				<-release
				fetched.Store(true)
			}).
			Return(models.ConversationList{}, nil)
		notes := new(mocks.NotificationRepositoryMock)
		notes.On("UnreadCount", mock.Anything).Return(0, nil)
		source := new(mocks.StreamSourceMock)
		source.On("Open", mock.Anything, sess).Return(mocks.NewFakeStream(), nil)
		return NewController(convs, notes, source, Options{NewTicker: (&tickerFactory{}).New, Logger: discardLogger()})
	}

	sup := NewSupervisor(factory, discardLogger())
	sup.HandleSessionChange(session.Session{}, viewer)

	closed := make(chan error, 1)
	go func() { closed <- sup.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned before the initial fetch finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.True(t, fetched.Load())
	_, ok := sup.Current()
	assert.False(t, ok)
}
