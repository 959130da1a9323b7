// Package retry implements the bounded retry policy for structured model
// calls. A call is re-attempted when it errors or when its response is
// not acceptable to the caller (empty, malformed, or missing required
// fields), with linear backoff between attempts. Cancellation is honored
// immediately, including mid-backoff.
package retry

import (
	"context"
	"time"
)

// Func is one attempt of a retryable call. The 1-based attempt number is
// provided so callers can vary their prompt on later attempts.
type Func func(ctx context.Context, attempt int) (string, error)

// AcceptFunc judges whether a response is usable. Returning false
// triggers another attempt while the budget lasts.
type AcceptFunc func(response string) bool

// Policy bounds the retry loop.
type Policy struct {
	// MaxRetries is the number of re-attempts after the first call.
	// Zero means the call runs exactly once.
	MaxRetries int

	// Backoff is the per-attempt wait unit: the wait before re-attempt
	// n is n × Backoff.
	Backoff time.Duration
}

// DefaultPolicy returns the standard policy: three retries with linear
// one-second backoff.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, Backoff: time.Second}
}

// Do runs call until accept approves its response or the retry budget is
// exhausted. The last response is always returned, even an empty or
// unacceptable one, so the caller can apply its own fail-safe counters
// on top. The returned error is non-nil only for cancellation or when
// the final attempt itself errored.
//
// Backoff between attempts is linear (attempt × Policy.Backoff) and
// aborts immediately if ctx is cancelled mid-wait.
func Do(ctx context.Context, policy Policy, call Func, accept AcceptFunc) (string, error) {
	if accept == nil {
		accept = func(string) bool { return true }
	}

	var lastResponse string
	var lastErr error

	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return lastResponse, err
		}

		lastResponse, lastErr = call(ctx, attempt)
		if lastErr == nil && accept(lastResponse) {
			return lastResponse, nil
		}
		if ctx.Err() != nil {
			return lastResponse, ctx.Err()
		}

		if attempt < attempts {
			if err := sleep(ctx, time.Duration(attempt)*policy.Backoff); err != nil {
				return lastResponse, err
			}
		}
	}

	return lastResponse, lastErr
}

// sleep waits for d, returning early with ctx.Err() on cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
