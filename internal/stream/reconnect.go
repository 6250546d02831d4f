package stream

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// MinRetryDelay is the shortest pause between reconnect attempts, whatever
// the configured or server-advertised delay.
const MinRetryDelay = 50 * time.Millisecond

func clampRetry(d time.Duration) time.Duration {
	if d < MinRetryDelay {
		return MinRetryDelay
	}
	return d
}

// permanentError stops the reconnect loop.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

// IsPermanent reports whether err ended a stream for good.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// runWithReconnect calls connect until ctx is done or connect returns a
// permanent error. connect blocks for the lifetime of one connection; every
// return before cancellation is reported through fail.
func runWithReconnect(ctx context.Context, name string, retry func() time.Duration, logger *slog.Logger, connect func(context.Context) error, fail func(error)) {
	for {
		err := connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrStreamEnded
		}
		fail(err)
		if IsPermanent(err) {
			logger.Warn("stream stopped", "transport", name, "error", err)
			return
		}

		delay := clampRetry(retry())
		logger.Debug("stream reconnecting", "transport", name, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
