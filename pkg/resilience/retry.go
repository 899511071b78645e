package resilience

import (
	"fmt"
	"math"
	"time"
)

// RetryPolicy holds configuration for exponential-backoff retries
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt; zero
	// means a single attempt with no delay
	MaxRetries int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration
	// ExponentialBase is the backoff multiplier between attempts
	ExponentialBase float64
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every failure.
	Retryable func(error) bool
	// OnRetry is called before each retry sleep
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy returns the documented default retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Validate rejects invalid policies instead of clamping them
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be > 0, got %s", p.BaseDelay)
	}
	if p.MaxDelay <= 0 {
		return fmt.Errorf("max delay must be > 0, got %s", p.MaxDelay)
	}
	if p.ExponentialBase <= 1 {
		return fmt.Errorf("exponential base must be > 1, got %g", p.ExponentialBase)
	}
	return nil
}

// DelayForAttempt returns the backoff delay after the given zero-indexed
// attempt: min(base * exponentialBase^attempt, max)
func (p RetryPolicy) DelayForAttempt(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}
