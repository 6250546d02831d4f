package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-sync/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func viewerIDFromContext(c *gin.Context) string {
	return c.GetString(middleware.ViewerIDKey)
}
