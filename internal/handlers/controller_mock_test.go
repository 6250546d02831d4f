package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-sync/internal/models"
	"social-sync/internal/realtime"
)

var _ SyncController = (*syncControllerMock)(nil)

type syncControllerMock struct {
	mock.Mock
}

func (m *syncControllerMock) Snapshot() realtime.State {
	args := m.Called()
	var st realtime.State
	if val := args.Get(0); val != nil {
		st = val.(realtime.State)
	}
	return st
}

func (m *syncControllerMock) Open(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *syncControllerMock) CloseActive() error {
	args := m.Called()
	return args.Error(0)
}

func (m *syncControllerMock) LoadOlder(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *syncControllerMock) SendMessage(ctx context.Context, conversationID, text string) (models.Message, error) {
	args := m.Called(ctx, conversationID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *syncControllerMock) MarkRead(ctx context.Context, conversationID string) (models.ReadResult, error) {
	args := m.Called(ctx, conversationID)
	var res models.ReadResult
	if val := args.Get(0); val != nil {
		res = val.(models.ReadResult)
	}
	return res, args.Error(1)
}

func (m *syncControllerMock) MarkNotificationsRead(ctx context.Context) (models.ReadResult, error) {
	args := m.Called(ctx)
	var res models.ReadResult
	if val := args.Get(0); val != nil {
		res = val.(models.ReadResult)
	}
	return res, args.Error(1)
}

