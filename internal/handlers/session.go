package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-sync/internal/session"
)

// SessionManager is the part of session.Manager the sign-in routes use.
type SessionManager interface {
	SignIn(creds session.Credentials) (session.Session, error)
	SignOut() error
}

var _ SessionManager = (*session.Manager)(nil)

type SessionHandler struct {
	sessions SessionManager
}

func NewSessionHandler(sessions SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SignIn handles POST /session. The controller is subscribed by the
// session change listener, not here.
func (h *SessionHandler) SignIn(c *gin.Context) {
	var req session.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	sess, err := h.sessions.SignIn(req)
	if err != nil {
		respondError(c, err, "failed to sign in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// SignOut handles DELETE /session.
func (h *SessionHandler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
		return
	}
	c.Status(http.StatusNoContent)
}
