package handlers

import (
	"sync"

	"social-sync/internal/realtime"
)

// StateFeed fans snapshots out to SSE subscribers. Each subscriber holds at
// most one pending snapshot; a newer one replaces it.
type StateFeed struct {
	mu   sync.Mutex
	subs map[chan realtime.State]struct{}
}

func NewStateFeed() *StateFeed {
	return &StateFeed{subs: make(map[chan realtime.State]struct{})}
}

// Publish has the listener signature expected by Supervisor.OnChange.
func (f *StateFeed) Publish(st realtime.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (f *StateFeed) Subscribe() (<-chan realtime.State, func()) {
	ch := make(chan realtime.State, 1)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		delete(f.subs, ch)
		f.mu.Unlock()
	}
}

func (f *StateFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
