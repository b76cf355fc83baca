// Package reliability provides the retry policy used by best-effort
// persistence.
package reliability

import (
	"context"
	"time"
)

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// Retry runs fn up to attempts times, backing off between tries. It returns
// nil on the first success and the last error otherwise. The context bounds
// the whole sequence, sleeps included.
func Retry(ctx context.Context, attempts int, base, cap time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(ExponentialBackoff(attempt-1, base, cap)):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
