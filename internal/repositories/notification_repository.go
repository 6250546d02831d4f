package repositories

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"social-sync/internal/models"
)

// NotificationRepository abstracts the notification endpoints.
type NotificationRepository interface {
	UnreadCount(ctx context.Context) (int, error)
	ListNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	MarkAllRead(ctx context.Context) (models.ReadResult, error)
}

// NotificationRepo is the REST implementation of NotificationRepository.
type NotificationRepo struct {
	api Requester
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(api Requester) *NotificationRepo {
	return &NotificationRepo{api: api}
}

// UnreadCount returns the viewer's unread notification count.
func (r *NotificationRepo) UnreadCount(ctx context.Context) (int, error) {
	env, err := r.api.Get(ctx, "/notifications/unread-count", nil)
	if err != nil {
		return 0, fmt.Errorf("unread notifications: %w", err)
	}
	var payload models.UnreadCountPayload
	if err := env.Decode(&payload); err != nil {
		return 0, err
	}
	return payload.UnreadCount, nil
}

// ListNotifications returns the newest notifications.
func (r *NotificationRepo) ListNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	env, err := r.api.Get(ctx, "/notifications", query)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	var items []models.Notification
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// MarkAllRead marks every notification read.
func (r *NotificationRepo) MarkAllRead(ctx context.Context) (models.ReadResult, error) {
	env, err := r.api.Post(ctx, "/notifications/read", nil)
	if err != nil {
		return models.ReadResult{}, fmt.Errorf("mark notifications read: %w", err)
	}
	var res models.ReadResult
	if err := env.Decode(&res); err != nil {
		return models.ReadResult{}, err
	}
	return res, nil
}
