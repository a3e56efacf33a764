package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyTrigger    = "trigger"
	KeyStage      = "stage"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
