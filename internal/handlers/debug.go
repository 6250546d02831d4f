package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-sync/internal/realtime"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, recorder realtime.Recorder, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/telemetry-test", func(c *gin.Context) {
		if recorder == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telemetry not configured"})
			return
		}
		recorder.Record(c.Request.Context(), "debug_test", viewerIDFromContext(c), map[string]any{
			"request_id": requestIDFromContext(c),
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
