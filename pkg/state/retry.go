package state

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryStrategy decides how long Set waits after a version conflict.
type RetryStrategy interface {
	// SleepDuration returns the delay before the next attempt.
	// The attempt index starts at 0 for the first conflict.
	SleepDuration(attempt int, err error) time.Duration
}

// NoDelay retries immediately.
type NoDelay struct{}

func (NoDelay) SleepDuration(_ int, _ error) time.Duration {
	return 0
}

// ExponentialBackoff grows the delay by Factor per attempt up to Max.
// Jitter spreads writers that collided on the same version apart; it is the
// fraction (0..1) of the delay that is randomized.
type ExponentialBackoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
	Jitter float64
}

// DefaultBackoff is used when no strategy is configured.
var DefaultBackoff = ExponentialBackoff{
	Base:   2 * time.Millisecond,
	Factor: 2,
	Max:    250 * time.Millisecond,
	Jitter: 0.5,
}

func (e ExponentialBackoff) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(e.Base) * math.Pow(e.Factor, float64(attempt))
	if e.Max > 0 && delay > float64(e.Max) {
		delay = float64(e.Max)
	}
	if e.Jitter > 0 {
		j := math.Min(e.Jitter, 1)
		delay = delay*(1-j) + delay*j*rand.Float64()
	}
	return time.Duration(delay)
}
