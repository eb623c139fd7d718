package executors

import (
	"context"
	"errors"
	"time"

	"github.com/rendis/flowcore/pkg/schema"
)

// RetryPolicy controls the error_handler node's retries.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	Backoff    string // none, constant, linear, exponential
	MaxDelay   time.Duration
}

// ComputeBackoff returns the delay before retry number attempt (0-based).
func ComputeBackoff(p RetryPolicy, attempt int) time.Duration {
	if p.Delay <= 0 {
		return 0
	}

	var delay time.Duration
	switch p.Backoff {
	case "exponential":
		delay = p.Delay << min(attempt, 30)
	case "linear":
		delay = p.Delay * time.Duration(attempt+1)
	default: // none, constant
		delay = p.Delay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// WaitForBackoff sleeps for delay or returns early with the context error.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shouldRetry reports whether a failed attempt may be retried. Cancellation
// and permanent FlowErrors end the loop.
func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return schema.IsRetryable(err)
}
