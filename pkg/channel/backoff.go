package channel

import (
	"time"
)

// BackoffPolicy controls reconnect pacing for a channel.
type BackoffPolicy struct {
	// Step is the per-attempt delay increment.
	Step time.Duration
	// Max caps the computed delay.
	Max time.Duration
	// MaxAttempts bounds automatic reconnects before the channel gives up.
	MaxAttempts int
}

// DefaultBackoff returns the widget channel policy: 3s per attempt capped at
// 15s, ten attempts before exhaustion.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Step:        3 * time.Second,
		Max:         15 * time.Second,
		MaxAttempts: 10,
	}
}

// Delay computes the wait before the given 1-based attempt.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * p.Step
	if d > p.Max {
		return p.Max
	}
	return d
}

// ShouldRetry reports whether the given 1-based attempt is within budget.
func (p BackoffPolicy) ShouldRetry(attempt int) bool {
	return attempt <= p.MaxAttempts
}
