package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// retryable is implemented by backend errors that know whether a repeat
// attempt can succeed.
type retryable interface {
	Retryable() bool
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r) && r.Retryable()
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// backoffFunc is swapped in tests.
var backoffFunc = Backoff

// withRetry runs fn up to MaxRetries times while it fails with a retryable
// error. It returns the last error.
func withRetry(ctx context.Context, onRetry func(attempt int, err error), fn func() error) error {
	var err error
	for attempt := range MaxRetries {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == MaxRetries-1 {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		select {
		case <-time.After(backoffFunc(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
