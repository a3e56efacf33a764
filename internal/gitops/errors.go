package gitops

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError indicates the remote rejected our credentials.
type AuthError struct {
	Op  string
	URL string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s %s: authentication failed: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError indicates the repository or ref does not exist.
type NotFoundError struct {
	Op  string
	URL string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s: not found: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// NetworkTimeoutError indicates a network-level timeout.
type NetworkTimeoutError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkTimeoutError) Error() string { return fmt.Sprintf("%s %s: network timeout: %v", e.Op, e.URL, e.Err) }
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// RateLimitError indicates the remote throttled us.
type RateLimitError struct {
	Op  string
	URL string
	Err error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("%s %s: rate limited: %v", e.Op, e.URL, e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

// classifyError wraps underlying go-git errors into typed failures so callers
// can branch without string parsing.
func classifyError(op, url string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password") || strings.Contains(l, "authorization"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout") || strings.Contains(l, "connection reset") || strings.Contains(l, "connection refused") || strings.Contains(l, "temporarily unavailable"):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	default:
		return fmt.Errorf("%s %s: %w", op, url, err)
	}
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	var nt *NetworkTimeoutError
	var rl *RateLimitError
	return errors.As(err, &nt) || errors.As(err, &rl)
}
