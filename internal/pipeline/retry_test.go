package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"retryable", tempErr{}, true},
		{"wrapped", fmt.Errorf("index: %w", tempErr{}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	for attempt := range 8 {
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		d := Backoff(attempt)
		if d < base || d >= base+base/2 {
			t.Errorf("Backoff(%d) = %v, want in [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	noBackoff(t)
	calls := 0
	retries := 0
	err := withRetry(context.Background(), func(int, error) { retries++ }, func() error {
		calls++
		return tempErr{}
	})
	if !IsRetryable(err) {
		t.Errorf("err = %v", err)
	}
	if calls != MaxRetries || retries != MaxRetries-1 {
		t.Errorf("calls = %d, retries = %d", calls, retries)
	}
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	orig := backoffFunc
	backoffFunc = func(int) time.Duration { return time.Hour }
	t.Cleanup(func() { backoffFunc = orig })

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, func(int, error) { cancel() }, func() error {
		calls++
		return tempErr{}
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}
