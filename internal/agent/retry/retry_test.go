package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastPolicy keeps backoff waits negligible in tests.
func fastPolicy(maxRetries int) Policy {
	return Policy{MaxRetries: maxRetries, Backoff: time.Millisecond}
}

func TestDo_FirstAttemptAccepted(t *testing.T) {
	calls := 0
	resp, err := Do(context.Background(), fastPolicy(3),
		func(ctx context.Context, attempt int) (string, error) {
			calls++
			return `{"action": "done"}`, nil
		},
		func(resp string) bool { return resp != "" },
	)

	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if resp != `{"action": "done"}` {
		t.Errorf("response = %q, want the accepted response", resp)
	}
	if calls != 1 {
		t.Errorf("call count = %d, want 1", calls)
	}
}

func TestDo_RetriesUntilAccepted(t *testing.T) {
	calls := 0
	resp, err := Do(context.Background(), fastPolicy(3),
		func(ctx context.Context, attempt int) (string, error) {
			calls++
			if attempt < 3 {
				return "", nil
			}
			return "usable", nil
		},
		func(resp string) bool { return resp != "" },
	)

	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if resp != "usable" {
		t.Errorf("response = %q, want %q", resp, "usable")
	}
	if calls != 3 {
		t.Errorf("call count = %d, want 3", calls)
	}
}

func TestDo_ExhaustionReturnsLastResponse(t *testing.T) {
	// After exhausting retries the last response comes back unchanged so
	// the caller can count it toward its own stop threshold.
	calls := 0
	resp, err := Do(context.Background(), fastPolicy(3),
		func(ctx context.Context, attempt int) (string, error) {
			calls++
			return "{}", nil
		},
		func(resp string) bool { return false },
	)

	if err != nil {
		t.Fatalf("Do returned error for unacceptable-but-successful call: %v", err)
	}
	if resp != "{}" {
		t.Errorf("response = %q, want last response %q", resp, "{}")
	}
	if calls != 4 {
		t.Errorf("call count = %d, want 4 (initial + 3 retries)", calls)
	}
}

func TestDo_TransientErrorsRetried(t *testing.T) {
	transient := errors.New("connection reset")
	calls := 0
	resp, err := Do(context.Background(), fastPolicy(2),
		func(ctx context.Context, attempt int) (string, error) {
			calls++
			if attempt == 1 {
				return "", transient
			}
			return "recovered", nil
		},
		func(resp string) bool { return resp != "" },
	)

	if err != nil {
		t.Fatalf("Do returned error after recovery: %v", err)
	}
	if resp != "recovered" {
		t.Errorf("response = %q, want %q", resp, "recovered")
	}
	if calls != 2 {
		t.Errorf("call count = %d, want 2", calls)
	}
}

func TestDo_FinalErrorSurfaces(t *testing.T) {
	boom := errors.New("provider unavailable")
	_, err := Do(context.Background(), fastPolicy(1),
		func(ctx context.Context, attempt int) (string, error) {
			return "", boom
		},
		nil,
	)

	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want the final attempt's error", err)
	}
}

func TestDo_ZeroRetriesRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(0),
		func(ctx context.Context, attempt int) (string, error) {
			calls++
			return "", nil
		},
		func(resp string) bool { return false },
	)

	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("call count = %d, want exactly 1", calls)
	}
}

func TestDo_CancelledBeforeFirstCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(3),
		func(ctx context.Context, attempt int) (string, error) {
			calls++
			return "should not run", nil
		},
		nil,
	)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("call count = %d, want 0 after pre-cancellation", calls)
	}
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := Policy{MaxRetries: 3, Backoff: 10 * time.Second}
	start := time.Now()

	calls := 0
	_, err := Do(ctx, policy,
		func(ctx context.Context, attempt int) (string, error) {
			calls++
			// Cancel while Do sits in the first backoff wait.
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
			return "", nil
		},
		func(resp string) bool { return false },
	)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("call count = %d, want 1 (no retry after cancellation)", calls)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Do took %v; backoff wait did not abort on cancellation", elapsed)
	}
}

func TestDo_CancelledDuringCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	resp, err := Do(ctx, fastPolicy(3),
		func(ctx context.Context, attempt int) (string, error) {
			cancel()
			return "partial", nil
		},
		func(resp string) bool { return false },
	)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if resp != "partial" {
		t.Errorf("response = %q, want the partial response preserved", resp)
	}
}

func TestDo_LinearBackoff(t *testing.T) {
	policy := Policy{MaxRetries: 2, Backoff: 30 * time.Millisecond}

	start := time.Now()
	_, _ = Do(context.Background(), policy,
		func(ctx context.Context, attempt int) (string, error) {
			return "", nil
		},
		func(resp string) bool { return false },
	)
	elapsed := time.Since(start)

	// Waits are 1×30ms then 2×30ms = 90ms total.
	if elapsed < 80*time.Millisecond {
		t.Errorf("elapsed = %v, want at least ~90ms of linear backoff", elapsed)
	}
}

func TestDo_NilAcceptMeansAnySuccess(t *testing.T) {
	resp, err := Do(context.Background(), fastPolicy(3),
		func(ctx context.Context, attempt int) (string, error) {
			return "", nil
		},
		nil,
	)

	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if resp != "" {
		t.Errorf("response = %q, want empty response accepted by nil predicate", resp)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if p.Backoff != time.Second {
		t.Errorf("Backoff = %v, want 1s", p.Backoff)
	}
}
