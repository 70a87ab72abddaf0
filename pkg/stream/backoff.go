package stream

import (
	"context"
	"time"
)

// Backoff computes reconnection delays as min(Base * 2^attempt, Cap).
type Backoff struct {
	// Base is the delay after the first failure (default: 1 second)
	Base time.Duration

	// Cap bounds the delay (default: 30 seconds)
	Cap time.Duration
}

// DefaultBackoff returns the 1s/30s schedule used by the radar consumers.
func DefaultBackoff() Backoff {
	return Backoff{
		Base: time.Second,
		Cap:  30 * time.Second,
	}
}

// Delay returns the wait before the next attempt after attempt consecutive
// failures (attempt counts from 0).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := b.Base
	for i := 0; i < attempt; i++ {
		if delay >= b.Cap {
			return b.Cap
		}
		delay *= 2
	}
	if delay > b.Cap {
		return b.Cap
	}
	return delay
}

// wait sleeps for d or until ctx is done, whichever comes first.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
