package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"social-sync/internal/models"
	"social-sync/internal/realtime"
)

// SyncController is the part of realtime.Controller the local API drives.
type SyncController interface {
	Snapshot() realtime.State
	Open(ctx context.Context, conversationID string) error
	CloseActive() error
	LoadOlder(ctx context.Context) (int, error)
	SendMessage(ctx context.Context, conversationID, text string) (models.Message, error)
	MarkRead(ctx context.Context, conversationID string) (models.ReadResult, error)
	MarkNotificationsRead(ctx context.Context) (models.ReadResult, error)
}

var _ SyncController = (*realtime.Controller)(nil)

// ControllerSource yields the controller of the signed-in viewer.
type ControllerSource interface {
	Controller() (SyncController, bool)
	Snapshot() realtime.State
}

type supervisorSource struct {
	sup *realtime.Supervisor
}

// FromSupervisor adapts a Supervisor to ControllerSource.
func FromSupervisor(sup *realtime.Supervisor) ControllerSource {
	return supervisorSource{sup: sup}
}

func (s supervisorSource) Controller() (SyncController, bool) {
	ctrl, ok := s.sup.Current()
	if !ok {
		return nil, false
	}
	return ctrl, true
}

func (s supervisorSource) Snapshot() realtime.State {
	return s.sup.Snapshot()
}

// SyncHandler serves the reconciled state and the actions that change it.
type SyncHandler struct {
	source ControllerSource
	feed   *StateFeed
}

// NewSyncHandler builds a SyncHandler. feed may be nil when the SSE route
// is not mounted.
func NewSyncHandler(source ControllerSource, feed *StateFeed) *SyncHandler {
	return &SyncHandler{source: source, feed: feed}
}

func (h *SyncHandler) controller(c *gin.Context) (SyncController, bool) {
	ctrl, ok := h.source.Controller()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync is not running"})
		return nil, false
	}
	return ctrl, true
}

// GetState handles GET /state.
func (h *SyncHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.source.Snapshot()})
}

// StreamState handles GET /state/events: the current snapshot first, then
// one "state" event per transition until the client goes away.
func (h *SyncHandler) StreamState(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "state feed disabled"})
		return
	}
	updates, cancel := h.feed.Subscribe()
	defer cancel()

	c.SSEvent("state", h.source.Snapshot())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case st := <-updates:
			c.SSEvent("state", st)
			return true
		}
	})
}

// OpenConversation handles POST /conversations/:id/open.
func (h *SyncHandler) OpenConversation(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Open(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "failed to open conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": ctrl.Snapshot().Thread})
}

// CloseConversation handles DELETE /conversations/active.
func (h *SyncHandler) CloseConversation(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.CloseActive(); err != nil {
		respondError(c, err, "failed to close conversation")
		return
	}
	c.Status(http.StatusNoContent)
}

// LoadOlder handles POST /conversations/:id/older. The id must name the
// open conversation.
func (h *SyncHandler) LoadOlder(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	thread := ctrl.Snapshot().Thread
	if thread == nil || thread.ConversationID != c.Param("id") {
		c.JSON(http.StatusConflict, gin.H{"error": "conversation is not open"})
		return
	}

	added, err := ctrl.LoadOlder(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load older messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "thread": ctrl.Snapshot().Thread})
}

// SendMessage handles POST /conversations/:id/messages.
func (h *SyncHandler) SendMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message text is empty"})
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	msg, err := ctrl.SendMessage(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		respondError(c, err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkRead handles POST /conversations/:id/read.
func (h *SyncHandler) MarkRead(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	res, err := ctrl.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to mark conversation read")
		return
	}
	c.JSON(http.StatusOK, res)
}

// MarkNotificationsRead handles POST /notifications/read.
func (h *SyncHandler) MarkNotificationsRead(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	res, err := ctrl.MarkNotificationsRead(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to mark notifications read")
		return
	}
	c.JSON(http.StatusOK, res)
}
