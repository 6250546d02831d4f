package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-sync/internal/models"
	"social-sync/internal/repositories"
)

var (
	_ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
	_ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
	_ repositories.FriendRepository       = (*FriendRepositoryMock)(nil)
	_ repositories.StreamLocator          = (*StreamLocatorMock)(nil)
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) ListConversations(ctx context.Context, search string, limit int) (models.ConversationList, error) {
	args := m.Called(ctx, search, limit)
	var list models.ConversationList
	if val := args.Get(0); val != nil {
		list = val.(models.ConversationList)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) GetMessages(ctx context.Context, conversationID, cursor string, limit int) (models.MessagePage, error) {
	args := m.Called(ctx, conversationID, cursor, limit)
	var page models.MessagePage
	if val := args.Get(0); val != nil {
		page = val.(models.MessagePage)
	}
	return page, args.Error(1)
}

func (m *ConversationRepositoryMock) SendMessage(ctx context.Context, conversationID, text string) (models.SendResult, error) {
	args := m.Called(ctx, conversationID, text)
	var res models.SendResult
	if val := args.Get(0); val != nil {
		res = val.(models.SendResult)
	}
	return res, args.Error(1)
}

func (m *ConversationRepositoryMock) MarkRead(ctx context.Context, conversationID string) (models.ReadResult, error) {
	args := m.Called(ctx, conversationID)
	var res models.ReadResult
	if val := args.Get(0); val != nil {
		res = val.(models.ReadResult)
	}
	return res, args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) UnreadCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) ListNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, limit)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkAllRead(ctx context.Context) (models.ReadResult, error) {
	args := m.Called(ctx)
	var res models.ReadResult
	if val := args.Get(0); val != nil {
		res = val.(models.ReadResult)
	}
	return res, args.Error(1)
}

type FriendRepositoryMock struct {
	mock.Mock
}

func (m *FriendRepositoryMock) ListRequests(ctx context.Context) ([]models.FriendRequest, error) {
	args := m.Called(ctx)
	var list []models.FriendRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.FriendRequest)
	}
	return list, args.Error(1)
}

func (m *FriendRepositoryMock) SendRequest(ctx context.Context, userID string) (models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *FriendRepositoryMock) AcceptRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *FriendRepositoryMock) RejectRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

type StreamLocatorMock struct {
	mock.Mock
}

func (m *StreamLocatorMock) StreamURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
