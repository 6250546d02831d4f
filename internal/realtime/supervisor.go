package realtime

import (
	"log/slog"
	"sync"

	"social-sync/internal/session"
)

// Factory builds a fresh controller for a signed-in session.
type Factory func(sess session.Session) *Controller

// Supervisor ties controller lifetime to the session: a controller is
// subscribed on sign-in and torn down on sign-out or viewer switch.
// Listeners registered here outlive individual controllers.
type Supervisor struct {
	factory Factory
	logger  *slog.Logger

	mu        sync.Mutex
	current   *Controller
	sub       *Subscription
	token     string
	last      State
	lastFrom  *Controller
	listeners []func(State)
}

func NewSupervisor(factory Factory, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{factory: factory, logger: logger, last: SignedOutState()}
}

// HandleSessionChange has the session.Listener signature.
func (s *Supervisor) HandleSessionChange(_, next session.Session) {
	s.mu.Lock()
	if !next.Empty() && s.current != nil && s.token == next.Token {
		s.mu.Unlock()
		return
	}
	oldSub := s.sub
	s.current, s.sub, s.token = nil, nil, ""

	var ctrl *Controller
	if !next.Empty() {
		ctrl = s.factory(next)
		s.current = ctrl
		s.token = next.Token
		ctrl.OnChange(func(st State) { s.forward(ctrl, st) })
	}
	s.mu.Unlock()

	if oldSub != nil {
		if err := oldSub.Close(); err != nil {
			s.logger.Warn("closing previous sync subscription", "error", err)
		}
	}

	if ctrl == nil {
		s.publish(SignedOutState())
		return
	}
	sub := ctrl.Subscribe(next)
	s.mu.Lock()
	if s.current == ctrl {
		s.sub = sub
		s.mu.Unlock()
		s.forward(ctrl, ctrl.Snapshot())
		return
	}
	s.mu.Unlock()
	_ = sub.Close()
}

// Current returns the live controller, if any.
func (s *Supervisor) Current() (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

// Snapshot returns the newest state seen, or the signed-out state.
func (s *Supervisor) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Supervisor) OnChange(l func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Close tears down the current controller and waits for its background
// requests to return.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	ctrl := s.current
	s.current, s.sub, s.token = nil, nil, ""
	s.mu.Unlock()
	if ctrl == nil {
		return nil
	}

	err := ctrl.Close()
	ctrl.Wait()
	return err
}

// Wait drains background requests of the current controller.
func (s *Supervisor) Wait() {
	if ctrl, ok := s.Current(); ok {
		ctrl.Wait()
	}
}

func (s *Supervisor) forward(from *Controller, st State) {
	s.mu.Lock()
	if s.current != from || (s.lastFrom == from && st.Version < s.last.Version) {
		s.mu.Unlock()
		return
	}
	s.last = st
	s.lastFrom = from
	listeners := append([]func(State)(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(st)
	}
}

func (s *Supervisor) publish(st State) {
	s.mu.Lock()
	s.last = st
	s.lastFrom = nil
	listeners := append([]func(State)(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(st)
	}
}
