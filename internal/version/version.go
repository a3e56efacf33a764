package version

// Build-time variables, overridden via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns a single human-readable version line.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
