package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandResult captures one external command execution.
type CommandResult struct {
	Command  string
	Args     []string
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// ExitError is returned when a command exits non-zero. The tail of stderr is
// embedded so failure logs are useful without replaying the run.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	tail := tailLines(e.Stderr, 5)
	if tail == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, tail)
}

// Runner executes external commands inside a working directory.
type Runner struct {
	Dir      string   // working directory for all commands
	ExtraEnv []string // KEY=VALUE pairs appended to the process environment
}

// Run executes the command, honoring ctx for cancellation and deadlines.
func (r *Runner) Run(ctx context.Context, command string, args ...string) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.ExtraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running command", slog.String("command", command), slog.Any("args", args), slog.String("dir", r.Dir))
	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Command:  command,
		Args:     args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		// Deadline/cancel surfaces as ctx error so stages classify it as canceled.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s: %w", command, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &ExitError{Command: command, ExitCode: result.ExitCode, Stderr: result.Stderr}
		}
		return result, fmt.Errorf("failed to run %s: %w", command, err)
	}
	return result, nil
}

// tailLines returns the last n non-empty lines of s joined by "; ".
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimSpace(l))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "; ")
}
