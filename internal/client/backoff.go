package client

import "time"

// Backoff is the reconnect schedule: attempt n waits min(Base*n, Max).
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff waits 1s, 2s, ... capped at 10s, for at most 5 attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Max:         10 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay returns the wait before the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base * time.Duration(attempt)
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
