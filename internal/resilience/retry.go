// Package resilience wraps calls to remote services with retries and a
// circuit breaker.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff controls how often and how patiently a call is retried.
type Backoff struct {
	// Attempts is the total number of tries including the first. Default: 3.
	Attempts int
	// Initial is the delay before the first retry. Default: 500ms.
	Initial time.Duration
	// Max caps the delay between tries. Default: 10s.
	Max time.Duration
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// Retryable decides whether an error is worth another try. Default: IsTransient.
	Retryable func(error) bool
	// OnRetry runs before each sleep.
	OnRetry func(attempt int, err error)
}

// NewBackoff returns a Backoff with the given attempt count and defaults for
// everything else.
func NewBackoff(attempts int) Backoff {
	return Backoff{Attempts: attempts, Jitter: 0.2}.normalized()
}

func (b Backoff) normalized() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 500 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 10 * time.Second
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	if b.Retryable == nil {
		b.Retryable = IsTransient
	}
	return b
}

// delay returns the wait before retry number n (0-based).
func (b Backoff) delay(n int) time.Duration {
	d := b.Initial
	for i := 0; i < n && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		spread := float64(d) * b.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Retry runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. The last error is returned on failure.
func Retry[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	b = b.normalized()

	var zero T
	var err error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		var val T
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !b.Retryable(err) || attempt == b.Attempts-1 {
			return zero, err
		}

		if b.OnRetry != nil {
			b.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}

// LogRetries returns an OnRetry callback that logs through the global logger.
func LogRetries(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying call",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
