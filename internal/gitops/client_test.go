package gitops

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/docpub/internal/metrics"
	"git.home.luguber.info/inful/docpub/internal/retry"
)

type countingRecorder struct {
	metrics.NoopRecorder
	pushRetries int
}

func (c *countingRecorder) IncPushRetry() { c.pushRetries++ }

func transientErr(op string) error {
	return &NetworkTimeoutError{Op: op, URL: "https://example.com/repo.git", Err: errors.New("i/o timeout")}
}

// TestWithRetryCountsPushRetries records one push retry per extra attempt.
func TestWithRetryCountsPushRetries(t *testing.T) {
	rec := &countingRecorder{}
	client := NewClient(t.TempDir()).
		WithRecorder(rec).
		WithRetryPolicy(retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 3))

	attempts := 0
	err := client.withRetry(context.Background(), "push", func() error {
		attempts++
		if attempts < 3 {
			return transientErr("push")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if rec.pushRetries != 2 {
		t.Fatalf("expected 2 push retries recorded, got %d", rec.pushRetries)
	}
}

// TestWithRetryCloneDoesNotCountPushRetries keeps the push counter scoped to pushes.
func TestWithRetryCloneDoesNotCountPushRetries(t *testing.T) {
	rec := &countingRecorder{}
	client := NewClient(t.TempDir()).
		WithRecorder(rec).
		WithRetryPolicy(retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 2))

	attempts := 0
	_ = client.withRetry(context.Background(), "clone", func() error {
		attempts++
		if attempts == 1 {
			return transientErr("clone")
		}
		return nil
	})
	if rec.pushRetries != 0 {
		t.Fatalf("clone retries must not count as push retries, got %d", rec.pushRetries)
	}
}

// TestWithRetryStopsOnFatal returns a non-transient error immediately.
func TestWithRetryStopsOnFatal(t *testing.T) {
	rec := &countingRecorder{}
	client := NewClient(t.TempDir()).WithRecorder(rec)

	attempts := 0
	err := client.withRetry(context.Background(), "push", func() error {
		attempts++
		return &AuthError{Op: "push", URL: "https://example.com/repo.git", Err: errors.New("authentication required")}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("fatal errors must not retry, got %d attempts", attempts)
	}
	if rec.pushRetries != 0 {
		t.Fatalf("no retries expected, got %d", rec.pushRetries)
	}
}
