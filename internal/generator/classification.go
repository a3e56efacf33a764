package generator

import (
	"context"
	"errors"
	"strings"

	"git.home.luguber.info/inful/docpub/internal/toolchain"
)

// FailureKind buckets generator failures for retry decisions.
type FailureKind string

const (
	FailureFatal     FailureKind = "fatal"     // broken sources or configuration; retrying cannot help
	FailureTransient FailureKind = "transient" // environmental (network, disk pressure); worth a retry
	FailureCanceled  FailureKind = "canceled"  // context deadline or shutdown
)

// transientMarkers are stderr substrings that indicate environmental trouble
// rather than broken documentation sources.
var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"temporary failure",
	"temporarily unavailable",
	"i/o timeout",
	"timed out",
	"no space left on device",
	"too many open files",
	"network is unreachable",
}

// Classify buckets a generator error. Non-zero exits are fatal unless stderr
// carries a recognizable environmental marker.
func Classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	var exitErr *toolchain.ExitError
	if errors.As(err, &exitErr) {
		l := strings.ToLower(exitErr.Stderr)
		for _, marker := range transientMarkers {
			if strings.Contains(l, marker) {
				return FailureTransient
			}
		}
		return FailureFatal
	}
	// Start failures (binary missing, permission) cannot be fixed by retrying.
	return FailureFatal
}
