package session

import (
	"log/slog"
	"sync"
	"time"
)

// Listener observes session transitions. prev or next may be empty.
type Listener func(prev, next Session)

// Manager owns the current Session. SignIn and SignOut are the only entry
// points that change it; everything else reads immutable snapshots.
type Manager struct {
	store     CookieStore
	logger    *slog.Logger
	now       func() time.Time
	mu        sync.RWMutex
	current   Session
	listeners []Listener
}

// NewManager constructs a Manager backed by store.
func NewManager(store CookieStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger, now: time.Now}
}

// OnChange registers a listener called after every transition, outside the
// manager lock.
func (m *Manager) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Current returns the active session or ErrNoSession / ErrExpired.
func (m *Manager) Current() (Session, error) {
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()

	if s.Empty() {
		return Session{}, ErrNoSession
	}
	if s.Expired(m.now()) {
		return Session{}, ErrExpired
	}
	return s, nil
}

// Restore loads persisted cookies and, when they are still usable, signs
// the viewer back in.
func (m *Manager) Restore() (Session, error) {
	creds, err := m.store.Load()
	if err != nil {
		return Session{}, err
	}
	s, err := FromCredentials(creds)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Clear()
		return Session{}, ErrExpired
	}
	m.swap(s)
	m.logger.Info("session restored", "viewer_id", s.ViewerID, "tenant", s.Tenant)
	return s, nil
}

// SignIn validates and persists creds and makes them the current session.
func (m *Manager) SignIn(creds Credentials) (Session, error) {
	s, err := FromCredentials(creds)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(m.now()) {
		return Session{}, ErrExpired
	}
	if err := m.store.Save(Credentials{Token: s.Token, Tenant: s.Tenant}, s.ExpiresAt); err != nil {
		return Session{}, err
	}
	m.swap(s)
	m.logger.Info("signed in", "viewer_id", s.ViewerID, "tenant", s.Tenant)
	return s, nil
}

// SignOut clears the persisted cookies and the current session.
func (m *Manager) SignOut() error {
	err := m.store.Clear()
	m.swap(Session{})
	m.logger.Info("signed out")
	return err
}

func (m *Manager) swap(next Session) {
	m.mu.Lock()
	prev := m.current
	m.current = next
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
}
