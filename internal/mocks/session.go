package mocks

import (
	"github.com/stretchr/testify/mock"

	"social-sync/internal/session"
)

// SessionManagerMock stands in for session.Manager.
type SessionManagerMock struct {
	mock.Mock
}

func (m *SessionManagerMock) Current() (session.Session, error) {
	args := m.Called()
	var s session.Session
	if val := args.Get(0); val != nil {
		s = val.(session.Session)
	}
	return s, args.Error(1)
}

func (m *SessionManagerMock) SignIn(creds session.Credentials) (session.Session, error) {
	args := m.Called(creds)
	var s session.Session
	if val := args.Get(0); val != nil {
		s = val.(session.Session)
	}
	return s, args.Error(1)
}

func (m *SessionManagerMock) SignOut() error {
	args := m.Called()
	return args.Error(0)
}
