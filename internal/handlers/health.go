package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"social-sync/internal/middleware"
)

const checkTimeout = 2 * time.Second

// BackendChecker checks a backend dependency.
type BackendChecker interface {
	Check(ctx context.Context) error
}

type HealthHandler struct {
	sessions middleware.SessionSource
	source   ControllerSource
	backend  BackendChecker
}

// NewHealthHandler builds a HealthHandler. backend may be nil.
func NewHealthHandler(sessions middleware.SessionSource, source ControllerSource, backend BackendChecker) *HealthHandler {
	return &HealthHandler{sessions: sessions, source: source, backend: backend}
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready. Only a failing backend check makes the daemon
// unready; a signed-out viewer or an errored stream is reported as-is.
func (h *HealthHandler) Ready(c *gin.Context) {
	_, err := h.sessions.Current()
	st := h.source.Snapshot()

	backend := "skipped"
	status := http.StatusOK
	if h.backend != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()
		if perr := h.backend.Check(ctx); perr != nil {
			backend = perr.Error()
			status = http.StatusServiceUnavailable
		} else {
			backend = "ok"
		}
	}

	c.JSON(status, gin.H{
		"signedIn":      err == nil,
		"stream":        st.Stream,
		"fallbackArmed": st.FallbackArmed,
		"backend":       backend,
	})
}
