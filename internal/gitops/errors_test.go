package gitops

import (
	"errors"
	"fmt"
	"testing"
)

// TestClassifyError maps underlying error text onto typed failures.
func TestClassifyError(t *testing.T) {
	cases := []struct {
		msg       string
		transient bool
		asTarget  func(error) bool
	}{
		{"authentication required", false, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{"repository does not exist", false, func(err error) bool { var e *NotFoundError; return errors.As(err, &e) }},
		{"rate limit exceeded", true, func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
		{"dial tcp: i/o timeout", true, func(err error) bool { var e *NetworkTimeoutError; return errors.As(err, &e) }},
		{"connection refused", true, func(err error) bool { var e *NetworkTimeoutError; return errors.As(err, &e) }},
	}
	for _, c := range cases {
		err := classifyError("clone", "https://example.com/r.git", fmt.Errorf("%s", c.msg))
		if !c.asTarget(err) {
			t.Fatalf("message %q not classified as expected type: %v", c.msg, err)
		}
		if IsTransient(err) != c.transient {
			t.Fatalf("message %q transient=%v, want %v", c.msg, IsTransient(err), c.transient)
		}
	}
}

// TestClassifyErrorFallback keeps unknown errors wrapped but untyped.
func TestClassifyErrorFallback(t *testing.T) {
	base := fmt.Errorf("something odd")
	err := classifyError("push", "origin", base)
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped base error")
	}
	if IsTransient(err) {
		t.Fatal("unknown errors must not be transient")
	}
}

// TestClassifyErrorNil passes nil through.
func TestClassifyErrorNil(t *testing.T) {
	if classifyError("clone", "x", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
