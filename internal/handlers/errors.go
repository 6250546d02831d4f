package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-sync/internal/apiclient"
	"social-sync/internal/realtime"
	"social-sync/internal/repositories"
	"social-sync/internal/session"
)

// statusFor maps domain errors onto HTTP statuses. Anything unrecognised
// is treated as an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrEmptyMessage),
		errors.Is(err, repositories.ErrInvalidUser),
		errors.Is(err, realtime.ErrInvalidConversation),
		errors.Is(err, session.ErrNoViewer):
		return http.StatusBadRequest
	case errors.Is(err, apiclient.ErrUnauthorized),
		errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrExpired):
		return http.StatusUnauthorized
	case errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrRequestNotFound),
		errors.Is(err, apiclient.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, realtime.ErrNoActiveConversation):
		return http.StatusConflict
	case errors.Is(err, realtime.ErrInactive):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func respondError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Warn("request failed",
			"route", c.FullPath(),
			"request_id", requestIDFromContext(c),
			"status", status,
			"error", err,
		)
	}
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}
