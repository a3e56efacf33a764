// Package generator invokes the external documentation generator against the
// configured source/output directory pair inside a checkout.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/logfields"
	"git.home.luguber.info/inful/docpub/internal/toolchain"
)

// Generator runs one documentation build.
type Generator struct {
	cfg         config.GeneratorConfig
	checkoutDir string
	runner      *toolchain.Runner
}

// New creates a Generator rooted in the given checkout.
func New(cfg config.GeneratorConfig, checkoutDir string, extraEnv []string) *Generator {
	return &Generator{
		cfg:         cfg,
		checkoutDir: checkoutDir,
		runner:      &toolchain.Runner{Dir: checkoutDir, ExtraEnv: extraEnv},
	}
}

// OutputPath returns the absolute path of the generator output directory.
func (g *Generator) OutputPath() string {
	return filepath.Join(g.checkoutDir, g.cfg.OutputDir)
}

// Build runs the generator under the configured timeout and validates the
// produced output tree. The returned error is classified (see Classify).
func (g *Generator) Build(ctx context.Context) error {
	buildCtx, cancel := context.WithTimeout(ctx, g.cfg.TimeoutDuration())
	defer cancel()

	// A leftover output tree from an earlier run must not leak into this one.
	if err := os.RemoveAll(g.OutputPath()); err != nil {
		return fmt.Errorf("failed to clear output directory: %w", err)
	}

	args := append(append([]string{}, g.cfg.Args...), g.cfg.SourceDir, g.cfg.OutputDir)
	slog.Info("Running documentation generator",
		slog.String("command", g.cfg.Command),
		slog.String("source", g.cfg.SourceDir),
		slog.String("output", g.cfg.OutputDir),
		slog.Duration("timeout", g.cfg.TimeoutDuration()))

	result, err := g.runner.Run(buildCtx, g.cfg.Command, args...)
	if err != nil {
		return err
	}

	slog.Info("Generator completed",
		slog.Duration("duration", result.Duration))
	return g.validateOutput()
}

// validateOutput checks the output directory is non-empty and contains the
// expected artifact.
func (g *Generator) validateOutput() error {
	out := g.OutputPath()
	entries, err := os.ReadDir(out)
	if err != nil {
		return fmt.Errorf("generator produced no output directory: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("generator output directory %s is empty", g.cfg.OutputDir)
	}
	if g.cfg.ExpectedArtifact != "" {
		artifact := filepath.Join(out, g.cfg.ExpectedArtifact)
		if _, err := os.Stat(artifact); err != nil {
			return fmt.Errorf("expected artifact %s missing from generator output: %w", g.cfg.ExpectedArtifact, err)
		}
	}
	slog.Debug("Generator output validated", logfields.Path(out), slog.Int("entries", len(entries)))
	return nil
}
