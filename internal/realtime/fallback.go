package realtime

import (
	"sync"
	"time"
)

// Ticker is the subset of time.Ticker the fallback timer needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds the polling ticker. Tests inject a manual one.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// fallbackTimer runs poll on every tick while armed. At most one ticker is
// alive per timer.
type fallbackTimer struct {
	interval  time.Duration
	newTicker TickerFactory

	mu     sync.Mutex
	ticker Ticker
	stop   chan struct{}
}

func newFallbackTimer(interval time.Duration, factory TickerFactory) *fallbackTimer {
	if factory == nil {
		factory = NewTimeTicker
	}
	return &fallbackTimer{interval: interval, newTicker: factory}
}

// arm starts polling. It returns false when a ticker is already running.
func (f *fallbackTimer) arm(poll func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticker != nil {
		return false
	}

	ticker := f.newTicker(f.interval)
	stop := make(chan struct{})
	f.ticker = ticker
	f.stop = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				select {
				case <-stop:
					return
				default:
				}
				poll()
			}
		}
	}()
	return true
}

// disarm stops the running ticker, reporting whether one existed.
func (f *fallbackTimer) disarm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticker == nil {
		return false
	}
	f.ticker.Stop()
	close(f.stop)
	f.ticker = nil
	f.stop = nil
	return true
}

func (f *fallbackTimer) armed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticker != nil
}
