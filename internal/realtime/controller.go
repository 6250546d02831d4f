// Package realtime keeps a local mirror of the viewer's conversations,
// unread counters and open thread in step with the push channel, falling
// back to interval polling when the channel fails.
//
// Every transition runs under one mutex. Async results (stream events,
// polls, page fetches) are applied only while the controller is active, so
// nothing mutates state after Close even if a request resolves late.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"social-sync/internal/models"
	"social-sync/internal/observability"
	"social-sync/internal/repositories"
	"social-sync/internal/session"
	"social-sync/internal/stream"
)

const (
	DefaultFallbackInterval  = 30 * time.Second
	DefaultPageSize          = 30
	DefaultConversationLimit = 50

	localIDPrefix = "local-"
)

var (
	ErrInactive             = errors.New("sync controller is not active")
	ErrNoActiveConversation = errors.New("no conversation is open")
	ErrInvalidConversation  = errors.New("conversation id is required")
	errMalformedEvent       = errors.New("malformed event payload")
)

// Lifecycle events handed to the Recorder.
const (
	LifecycleSubscribed       = "subscribed"
	LifecycleStreamErrored    = "stream_errored"
	LifecycleFallbackArmed    = "fallback_armed"
	LifecycleFallbackDisarmed = "fallback_disarmed"
	LifecycleTornDown         = "torn_down"
)

// Recorder receives controller lifecycle events.
type Recorder interface {
	Record(ctx context.Context, event, viewerID string, attrs map[string]any)
}

type Options struct {
	FallbackInterval  time.Duration
	PageSize          int
	ConversationLimit int
	// StopFallbackOnRecovery disarms the fallback timer once the stream
	// reopens or delivers an event after an error. Off by default: an armed
	// timer otherwise keeps polling until teardown.
	StopFallbackOnRecovery bool

	NewTicker TickerFactory
	Recorder  Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

func (o *Options) withDefaults() {
	if o.FallbackInterval <= 0 {
		o.FallbackInterval = DefaultFallbackInterval
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.ConversationLimit <= 0 {
		o.ConversationLimit = DefaultConversationLimit
	}
	if o.NewTicker == nil {
		o.NewTicker = NewTimeTicker
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Controller is the sync controller for one viewer session. It is
// subscribed once and disposed once; sign-in builds a fresh instance.
type Controller struct {
	conversations repositories.ConversationRepository
	notifications repositories.NotificationRepository
	source        stream.Source
	opts          Options
	logger        *slog.Logger
	fallback      *fallbackTimer

	ctx    context.Context
	cancel context.CancelFunc
	async  sync.WaitGroup

	mu                 sync.Mutex
	active             bool
	disposed           bool
	viewerID           string
	stream             stream.EventStream
	streamState        StreamState
	list               *ConversationList
	unreadSeen         map[string]map[string]time.Time
	notificationUnread int
	thread             *Thread
	threadGen          uint64
	version            uint64
	listeners          []func(State)
}

func NewController(conversations repositories.ConversationRepository, notifications repositories.NotificationRepository, source stream.Source, opts Options) *Controller {
	opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		conversations: conversations,
		notifications: notifications,
		source:        source,
		opts:          opts,
		logger:        opts.Logger,
		fallback:      newFallbackTimer(opts.FallbackInterval, opts.NewTicker),
		ctx:           ctx,
		cancel:        cancel,
		streamState:   StreamIdle,
		list:          NewConversationList(),
		unreadSeen:    make(map[string]map[string]time.Time),
	}
}

// Subscription is the disposable handle returned by Subscribe.
type Subscription struct {
	c *Controller
}

func (s *Subscription) Close() error {
	return s.c.Close()
}

func (s *Subscription) Controller() *Controller {
	return s.c
}

// Subscribe opens the viewer's push channel and populates the initial state
// in the background. It never fails: a stream that cannot be opened arms
// fallback polling instead. Calling it again returns the same handle.
func (c *Controller) Subscribe(sess session.Session) *Subscription {
	c.mu.Lock()
	if c.active || c.disposed {
		c.mu.Unlock()
		return &Subscription{c: c}
	}
	c.active = true
	c.viewerID = sess.ViewerID
	c.streamState = StreamConnecting
	c.mu.Unlock()

	observability.SetStreamState(string(StreamConnecting))
	c.logger.Info("sync subscribed", "viewer_id", sess.ViewerID)
	c.record(LifecycleSubscribed, nil)

	c.goAsync(func() {
		if err := c.refresh(c.ctx); err != nil && !errors.Is(err, ErrInactive) {
			c.logger.Warn("initial conversation fetch failed", "error", err)
		}
	})
	c.goAsync(func() {
		if err := c.RefreshNotifications(c.ctx); err != nil && !errors.Is(err, ErrInactive) {
			c.logger.Warn("initial notification count failed", "error", err)
		}
	})
	c.goAsync(func() { c.openStream(sess) })

	return &Subscription{c: c}
}

// Close tears the controller down: the stream is closed, the fallback timer
// cleared and in-flight requests cancelled. Safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	wasActive := c.active
	c.active = false
	c.disposed = true
	st := c.stream
	c.stream = nil
	c.streamState = StreamClosed
	disarmed := c.fallback.disarm()
	viewerID := c.viewerID
	c.mu.Unlock()

	c.cancel()
	var err error
	if st != nil {
		err = st.Close()
	}
	if disarmed {
		observability.SetFallbackArmed(false)
	}
	if wasActive {
		observability.SetStreamState(string(StreamIdle))
		c.logger.Info("sync torn down", "viewer_id", viewerID)
		c.record(LifecycleTornDown, nil)
	}
	return err
}

// Wait blocks until background requests started by the controller return.
func (c *Controller) Wait() {
	c.async.Wait()
}

// OnChange registers a listener that receives a snapshot after every
// transition. Snapshots may arrive out of order across goroutines; compare
// Version. Listeners must not call back into the controller.
func (c *Controller) OnChange(l func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// FallbackArmed reports whether the polling timer is running.
func (c *Controller) FallbackArmed() bool {
	return c.fallback.armed()
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// update applies fn while active and publishes a snapshot when fn reports a
// change. It returns false when the controller is inactive.
func (c *Controller) update(fn func() bool) bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}
	if !fn() {
		c.mu.Unlock()
		return true
	}
	c.version++
	snap := c.snapshotLocked()
	listeners := append([]func(State)(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return true
}

func (c *Controller) snapshotLocked() State {
	st := State{
		ViewerID:           c.viewerID,
		Stream:             c.streamState,
		FallbackArmed:      c.fallback.armed(),
		Conversations:      c.list.Items(),
		UnreadTotal:        c.list.TotalUnread(),
		NotificationUnread: c.notificationUnread,
		Version:            c.version,
	}
	if c.thread != nil {
		st.Thread = &ThreadState{
			ConversationID: c.thread.ConversationID,
			Messages:       c.thread.Messages(),
			NextCursor:     c.thread.NextCursor,
			HasMore:        c.thread.HasMore,
		}
	}
	return st
}

func (c *Controller) goAsync(fn func()) {
	c.async.Add(1)
	go func() {
		defer c.async.Done()
		fn()
	}()
}

func (c *Controller) record(event string, attrs map[string]any) {
	if c.opts.Recorder == nil {
		return
	}
	c.mu.Lock()
	viewerID := c.viewerID
	c.mu.Unlock()
	c.opts.Recorder.Record(context.Background(), event, viewerID, attrs)
}


func (c *Controller) openStream(sess session.Session) {
	st, err := c.source.Open(c.ctx, sess)
	if err != nil {
		c.handleStreamError(fmt.Errorf("open stream: %w", err))
		return
	}

	st.OnEvent(models.EventMessageNew, c.eventHandler(models.EventMessageNew, c.onMessageNew))
	st.OnEvent(models.EventConversationRead, c.eventHandler(models.EventConversationRead, c.onConversationRead))
	st.OnEvent(models.EventUnreadCount, c.eventHandler(models.EventUnreadCount, c.onUnreadCount))
	st.OnEvent(models.EventNotificationNew, c.eventHandler(models.EventNotificationNew, c.onNotificationNew))
	st.OnError(c.handleStreamError)
	st.OnOpen(c.handleStreamOpen)

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		_ = st.Close()
		return
	}
	c.stream = st
	c.mu.Unlock()

	st.Start()
}

// eventHandler wraps apply so that decoding failures never escape the
// listener.
func (c *Controller) eventHandler(eventType string, apply func(json.RawMessage) error) stream.EventHandler {
	return func(data json.RawMessage) {
		if !c.Active() {
			return
		}
		c.handleRecovery()
		if err := apply(data); err != nil {
			c.logger.Warn("dropping stream event", "type", eventType, "error", err)
			return
		}
		observability.IncStreamEvent(eventType)
		c.logger.Debug("stream event applied", "type", eventType)
	}
}

func (c *Controller) handleStreamOpen() {
	c.handleRecovery()
}

// handleRecovery flips an errored stream back to open. The fallback timer
// keeps running unless StopFallbackOnRecovery is set.
func (c *Controller) handleRecovery() {
	var changed, recovered, disarmed bool
	c.update(func() bool {
		if c.streamState == StreamOpen {
			return false
		}
		changed = true
		recovered = c.streamState == StreamErrored
		c.streamState = StreamOpen
		if c.opts.StopFallbackOnRecovery {
			disarmed = c.fallback.disarm()
		}
		return true
	})
	if !changed {
		return
	}

	observability.SetStreamState(string(StreamOpen))
	if recovered {
		c.logger.Info("stream recovered", "fallback_armed", c.fallback.armed())
	}
	if disarmed {
		observability.SetFallbackArmed(false)
		c.logger.Info("fallback polling disarmed")
		c.record(LifecycleFallbackDisarmed, nil)
	}
}

// handleStreamError arms fallback polling. Errors are swallowed here; the UI
// only sees the stream state.
func (c *Controller) handleStreamError(err error) {
	var armed bool
	applied := c.update(func() bool {
		c.streamState = StreamErrored
		armed = c.fallback.arm(c.pollFromTimer)
		return true
	})
	if !applied {
		return
	}

	observability.IncStreamError()
	observability.SetStreamState(string(StreamErrored))
	c.logger.Warn("stream errored", "error", err, "fallback_armed", armed)
	c.record(LifecycleStreamErrored, map[string]any{"error": err.Error()})
	if armed {
		observability.SetFallbackArmed(true)
		c.logger.Info("fallback polling armed", "interval", c.opts.FallbackInterval)
		c.record(LifecycleFallbackArmed, map[string]any{"interval": c.opts.FallbackInterval.String()})
	}
}

func (c *Controller) onMessageNew(data json.RawMessage) error {
	var payload models.MessageNewPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	conv, msg := payload.Conversation, payload.Message
	if conv.ID == "" {
		conv.ID = msg.ConversationID
	}
	if msg.ConversationID == "" {
		msg.ConversationID = conv.ID
	}
	if conv.ID == "" || msg.ID == "" {
		return errMalformedEvent
	}
	msg.Pending = false

	var markRead bool
	c.update(func() bool {
		markRead = c.applyMessageLocked(conv, msg)
		return true
	})
	if markRead {
		c.goAsync(func() { c.markReadRemote(conv.ID) })
	}
	return nil
}

// applyMessageLocked merges one new message. It reports whether the
// conversation is open and therefore needs a read receipt.
func (c *Controller) applyMessageLocked(conv models.Conversation, msg models.Message) bool {
	existing, known := c.list.Get(conv.ID)
	conv = mergeSummary(existing, known, conv, msg)

	if c.thread != nil && c.thread.ConversationID == conv.ID {
		c.thread.Append(msg)
		delete(c.unreadSeen, conv.ID)
		c.list.Upsert(conv, UpsertOptions{ForceUnreadZero: true})
		return true
	}

	unread := 0
	if known {
		unread = existing.UnreadCount
	}
	if msg.SenderID != c.viewerID {
		seen := c.unreadSeen[conv.ID]
		if seen == nil {
			seen = make(map[string]time.Time)
			c.unreadSeen[conv.ID] = seen
		}
		if _, dup := seen[msg.ID]; !dup {
			seen[msg.ID] = msg.CreatedAt
			unread++
		}
	}
	conv.UnreadCount = unread
	c.list.Upsert(conv, UpsertOptions{})
	return false
}

// mergeSummary fills fields a partial push payload leaves empty and bumps
// the last-message fields when msg is the newest.
func mergeSummary(existing models.Conversation, known bool, incoming models.Conversation, msg models.Message) models.Conversation {
	if known && len(incoming.Participants) == 0 {
		incoming.Participants = existing.Participants
	}
	if known && incoming.LastMessageAt.IsZero() {
		incoming.LastMessageText = existing.LastMessageText
		incoming.LastMessageAt = existing.LastMessageAt
		incoming.LastMessageSender = existing.LastMessageSender
	}
	if !msg.CreatedAt.Before(incoming.LastMessageAt) {
		incoming.LastMessageText = msg.Text
		incoming.LastMessageAt = msg.CreatedAt
		incoming.LastMessageSender = msg.SenderID
	}
	return incoming
}

func (c *Controller) onConversationRead(data json.RawMessage) error {
	var payload models.ConversationReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.ConversationID == "" {
		return errMalformedEvent
	}
	c.update(func() bool {
		delete(c.unreadSeen, payload.ConversationID)
		return c.list.SetUnread(payload.ConversationID, 0)
	})
	return nil
}

func (c *Controller) onUnreadCount(data json.RawMessage) error {
	var payload models.UnreadCountPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	c.update(func() bool {
		if c.notificationUnread == payload.UnreadCount {
			return false
		}
		c.notificationUnread = payload.UnreadCount
		return true
	})
	return nil
}

func (c *Controller) onNotificationNew(json.RawMessage) error {
	c.goAsync(func() {
		if err := c.RefreshNotifications(c.ctx); err != nil && !errors.Is(err, ErrInactive) && c.ctx.Err() == nil {
			c.logger.Warn("notification count refresh failed", "error", err)
		}
	})
	return nil
}


func (c *Controller) pollFromTimer() {
	if err := c.PollNow(c.ctx); err != nil && !errors.Is(err, ErrInactive) && c.ctx.Err() == nil {
		c.logger.Warn("fallback poll failed", "error", err)
	}
}

// PollNow re-fetches the conversation list and, when a thread is open, its
// newest page, replacing local state wholesale.
func (c *Controller) PollNow(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrInactive
	}
	threadID, gen := "", c.threadGen
	if c.thread != nil {
		threadID = c.thread.ConversationID
	}
	c.mu.Unlock()

	list, err := c.conversations.ListConversations(ctx, "", c.opts.ConversationLimit)
	if err != nil {
		observability.IncFallbackPoll("error")
		return fmt.Errorf("poll conversations: %w", err)
	}

	var (
		page    models.MessagePage
		pageErr error
	)
	if threadID != "" {
		page, pageErr = c.conversations.GetMessages(ctx, threadID, "", c.opts.PageSize)
	}

	applied := c.update(func() bool {
		c.applyRefreshLocked(list.Conversations)
		if threadID != "" && pageErr == nil && c.thread != nil && c.threadGen == gen {
			c.thread.Reset(page)
		}
		return true
	})
	if !applied {
		observability.IncFallbackPoll("discarded")
		return ErrInactive
	}
	if pageErr != nil {
		observability.IncFallbackPoll("error")
		return fmt.Errorf("poll messages: %w", pageErr)
	}
	observability.IncFallbackPoll("ok")
	return nil
}

func (c *Controller) refresh(ctx context.Context) error {
	list, err := c.conversations.ListConversations(ctx, "", c.opts.ConversationLimit)
	if err != nil {
		return err
	}
	if !c.update(func() bool {
		c.applyRefreshLocked(list.Conversations)
		return true
	}) {
		return ErrInactive
	}
	return nil
}

// applyRefreshLocked replaces the list. A server counter that lags behind
// the messages seen since the last read is raised to their number. Once the
// server summary covers the newest seen message its counter is taken as is
// and the seen set is dropped. The open conversation is always zero.
func (c *Controller) applyRefreshLocked(conversations []models.Conversation) {
	c.list.Replace(conversations)
	for id, seen := range c.unreadSeen {
		conv, ok := c.list.Get(id)
		if !ok {
			continue
		}
		if !conv.LastMessageAt.IsZero() && !conv.LastMessageAt.Before(newestSeen(seen)) {
			delete(c.unreadSeen, id)
			continue
		}
		if conv.UnreadCount < len(seen) {
			c.list.SetUnread(id, len(seen))
		}
	}
	if c.thread != nil {
		delete(c.unreadSeen, c.thread.ConversationID)
		c.list.SetUnread(c.thread.ConversationID, 0)
	}
}

func newestSeen(seen map[string]time.Time) time.Time {
	var newest time.Time
	for _, at := range seen {
		if at.After(newest) {
			newest = at
		}
	}
	return newest
}

// Open switches the active conversation: in-memory messages and cursor are
// discarded and the newest page is fetched.
func (c *Controller) Open(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidConversation
	}
	var gen uint64
	if !c.update(func() bool {
		c.threadGen++
		gen = c.threadGen
		c.thread = NewThread(conversationID)
		delete(c.unreadSeen, conversationID)
		c.list.SetUnread(conversationID, 0)
		return true
	}) {
		return ErrInactive
	}

	page, err := c.conversations.GetMessages(ctx, conversationID, "", c.opts.PageSize)
	if err != nil {
		return err
	}

	var current bool
	if !c.update(func() bool {
		if c.thread == nil || c.threadGen != gen {
			return false
		}
		current = true
		c.thread.Reset(page)
		if page.Conversation.ID == conversationID {
			conv := page.Conversation
			conv.UnreadCount = 0
			if !c.list.Update(conv) {
				c.list.Upsert(conv, UpsertOptions{ForceUnreadZero: true})
			}
		}
		return true
	}) {
		return ErrInactive
	}
	if current {
		c.goAsync(func() { c.markReadRemote(conversationID) })
	}
	return nil
}

// CloseActive drops the open thread.
func (c *Controller) CloseActive() error {
	if !c.update(func() bool {
		if c.thread == nil {
			return false
		}
		c.thread = nil
		c.threadGen++
		return true
	}) {
		return ErrInactive
	}
	return nil
}

// LoadOlder fetches the page before the oldest loaded message and prepends
// the messages not already present. It returns how many were added.
func (c *Controller) LoadOlder(ctx context.Context) (int, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return 0, ErrInactive
	}
	if c.thread == nil {
		c.mu.Unlock()
		return 0, ErrNoActiveConversation
	}
	if !c.thread.HasMore || c.thread.NextCursor == "" {
		c.mu.Unlock()
		return 0, nil
	}
	conversationID, cursor, gen := c.thread.ConversationID, c.thread.NextCursor, c.threadGen
	c.mu.Unlock()

	page, err := c.conversations.GetMessages(ctx, conversationID, cursor, c.opts.PageSize)
	if err != nil {
		return 0, err
	}

	added := 0
	if !c.update(func() bool {
		if c.thread == nil || c.threadGen != gen {
			return false
		}
		added = c.thread.PrependOlder(page)
		return true
	}) {
		return 0, ErrInactive
	}
	return added, nil
}

// SendMessage posts text to a conversation. When the conversation is open a
// pending copy appears immediately and is swapped for the server copy on
// success or removed on failure. Errors propagate to the caller.
func (c *Controller) SendMessage(ctx context.Context, conversationID, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, repositories.ErrEmptyMessage
	}
	if conversationID == "" {
		return models.Message{}, ErrInvalidConversation
	}

	pending := models.Message{
		ID:             localIDPrefix + uuid.NewString(),
		ConversationID: conversationID,
		Text:           text,
		CreatedAt:      c.opts.Now().UTC(),
		Pending:        true,
	}
	var (
		optimistic bool
		gen        uint64
	)
	if !c.update(func() bool {
		pending.SenderID = c.viewerID
		if c.thread == nil || c.thread.ConversationID != conversationID {
			return false
		}
		optimistic = c.thread.Append(pending)
		gen = c.threadGen
		return optimistic
	}) {
		return models.Message{}, ErrInactive
	}

	res, err := c.conversations.SendMessage(ctx, conversationID, text)
	if err != nil {
		if optimistic {
			c.update(func() bool {
				if c.thread == nil || c.threadGen != gen {
					return false
				}
				return c.thread.Remove(pending.ID)
			})
		}
		return models.Message{}, err
	}

	msg := res.Message
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	msg.Pending = false
	c.update(func() bool {
		open := c.thread != nil && c.thread.ConversationID == conversationID
		switch {
		case open && optimistic && c.threadGen == gen:
			c.thread.Confirm(pending.ID, msg)
		case open:
			c.thread.Append(msg)
		}

		conv := res.Conversation
		if conv.ID == "" {
			conv.ID = conversationID
		}
		existing, known := c.list.Get(conversationID)
		conv = mergeSummary(existing, known, conv, msg)
		if open {
			c.list.Upsert(conv, UpsertOptions{ForceUnreadZero: true})
			return true
		}
		conv.UnreadCount = 0
		if known {
			conv.UnreadCount = existing.UnreadCount
		}
		c.list.Upsert(conv, UpsertOptions{})
		return true
	})
	return msg, nil
}

// MarkRead zeroes the conversation locally and sends the read receipt.
func (c *Controller) MarkRead(ctx context.Context, conversationID string) (models.ReadResult, error) {
	if conversationID == "" {
		return models.ReadResult{}, ErrInvalidConversation
	}
	if !c.update(func() bool {
		delete(c.unreadSeen, conversationID)
		return c.list.SetUnread(conversationID, 0)
	}) {
		return models.ReadResult{}, ErrInactive
	}
	return c.conversations.MarkRead(ctx, conversationID)
}

func (c *Controller) markReadRemote(conversationID string) {
	if _, err := c.conversations.MarkRead(c.ctx, conversationID); err != nil && c.ctx.Err() == nil {
		c.logger.Warn("read receipt failed", "conversation_id", conversationID, "error", err)
	}
}


// RefreshNotifications overwrites the notification counter with the
// backend's value.
func (c *Controller) RefreshNotifications(ctx context.Context) error {
	count, err := c.notifications.UnreadCount(ctx)
	if err != nil {
		return err
	}
	if !c.update(func() bool {
		if c.notificationUnread == count {
			return false
		}
		c.notificationUnread = count
		return true
	}) {
		return ErrInactive
	}
	return nil
}

func (c *Controller) MarkNotificationsRead(ctx context.Context) (models.ReadResult, error) {
	res, err := c.notifications.MarkAllRead(ctx)
	if err != nil {
		return res, err
	}
	if !c.update(func() bool {
		if c.notificationUnread == 0 {
			return false
		}
		c.notificationUnread = 0
		return true
	}) {
		return res, ErrInactive
	}
	return res, nil
}
