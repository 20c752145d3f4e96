package services

import (
	"context"
	"time"
)

// DelayFunc returns the wait before the next attempt, given the zero-based
// index of the attempt that just finished.
type DelayFunc func(attempt int) time.Duration

// LinearBackoff waits (attempt+1) × base between attempts.
func LinearBackoff(base time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt+1) * base
	}
}

// Retry runs op up to attempts times, waiting delay(i) after attempt i while
// retryable says the outcome is worth another try. It always returns the last
// outcome rather than a synthetic error, so callers decide what a still-bad
// final result means. The wait is context-aware; cancellation returns the
// last outcome with ctx.Err().
func Retry[T any](ctx context.Context, attempts int, delay DelayFunc, retryable func(T, error) bool, op func(context.Context) (T, error)) (T, error) {
	var out T
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err = op(ctx)
		if !retryable(out, err) {
			return out, err
		}
		if attempt == attempts-1 {
			break
		}
		if delay == nil {
			continue
		}
		d := delay(attempt)
		if d <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(d):
		}
	}
	return out, err
}
