package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-sync/internal/session"
)

const (
	ViewerIDKey = "viewerID"
	SessionKey  = "session"
)

// SessionSource is the part of session.Manager the guard reads.
type SessionSource interface {
	Current() (session.Session, error)
}

// RequireSession rejects requests made while no viewer is signed in and
// stores the current session in the gin context.
func RequireSession(sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := sessions.Current()
		if err != nil {
			msg := "not signed in"
			if errors.Is(err, session.ErrExpired) {
				msg = "session expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(SessionKey, sess)
		c.Set(ViewerIDKey, sess.ViewerID)
		c.Next()
	}
}
