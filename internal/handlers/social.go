package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"social-sync/internal/repositories"
)

const (
	defaultSearchLimit       = 20
	defaultNotificationLimit = 50
	maxListLimit             = 100
)

// SocialHandler passes search, notification and friend-request calls
// through to the backend. None of them touch the sync state.
type SocialHandler struct {
	conversations repositories.ConversationRepository
	notifications repositories.NotificationRepository
	friends       repositories.FriendRepository
}

func NewSocialHandler(conversations repositories.ConversationRepository, notifications repositories.NotificationRepository, friends repositories.FriendRepository) *SocialHandler {
	return &SocialHandler{
		conversations: conversations,
		notifications: notifications,
		friends:       friends,
	}
}

func parseLimit(c *gin.Context, fallback int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}

// SearchConversations handles GET /conversations?search=&limit=.
func (h *SocialHandler) SearchConversations(c *gin.Context) {
	limit, ok := parseLimit(c, defaultSearchLimit)
	if !ok {
		return
	}
	list, err := h.conversations.ListConversations(c.Request.Context(), strings.TrimSpace(c.Query("search")), limit)
	if err != nil {
		respondError(c, err, "failed to load conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list.Conversations, "pagination": list.Pagination})
}

// ListNotifications handles GET /notifications.
func (h *SocialHandler) ListNotifications(c *gin.Context) {
	limit, ok := parseLimit(c, defaultNotificationLimit)
	if !ok {
		return
	}
	items, err := h.notifications.ListNotifications(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "failed to load notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// UnreadNotifications handles GET /notifications/unread.
func (h *SocialHandler) UnreadNotifications(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load unread count")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// ListFriendRequests handles GET /friends/requests.
func (h *SocialHandler) ListFriendRequests(c *gin.Context) {
	reqs, err := h.friends.ListRequests(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load friend requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// SendFriendRequest handles POST /friends/requests.
func (h *SocialHandler) SendFriendRequest(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.friends.SendRequest(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err, "failed to send friend request")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": created})
}

// AcceptFriendRequest handles POST /friends/requests/:id/accept.
func (h *SocialHandler) AcceptFriendRequest(c *gin.Context) {
	resolved, err := h.friends.AcceptRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to accept friend request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": resolved})
}

// RejectFriendRequest handles POST /friends/requests/:id/reject.
func (h *SocialHandler) RejectFriendRequest(c *gin.Context) {
	resolved, err := h.friends.RejectRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to reject friend request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": resolved})
}
