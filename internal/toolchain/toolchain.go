// Package toolchain provisions the pinned language runtime and installs the
// package plus its documentation-build dependencies inside a checkout.
package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docpub/internal/config"
)

var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+`)

// Provisioner resolves and verifies the pinned runtime, then installs
// dependencies with it.
type Provisioner struct {
	cfg    config.ToolchainConfig
	runner *Runner
}

// NewProvisioner creates a provisioner operating inside checkoutDir.
func NewProvisioner(cfg config.ToolchainConfig, checkoutDir string) *Provisioner {
	return &Provisioner{
		cfg:    cfg,
		runner: &Runner{Dir: checkoutDir, ExtraEnv: cfg.ExtraEnv},
	}
}

// Provision resolves the runtime binary on PATH and verifies its reported
// version against the configured pin. Returns the resolved version string.
func (p *Provisioner) Provision(ctx context.Context) (string, error) {
	if p.cfg.Runtime == "" {
		return "", fmt.Errorf("toolchain.runtime is not configured")
	}
	path, err := exec.LookPath(p.cfg.Runtime)
	if err != nil {
		return "", fmt.Errorf("runtime %s not found on PATH: %w", p.cfg.Runtime, err)
	}

	result, err := p.runner.Run(ctx, p.cfg.Runtime, "--version")
	if err != nil {
		return "", fmt.Errorf("runtime version check failed: %w", err)
	}
	reported := ParseVersion(result.Stdout + " " + result.Stderr)
	if reported == "" {
		return "", fmt.Errorf("could not parse a version from %s --version output", p.cfg.Runtime)
	}

	if p.cfg.Version != "" && !VersionSatisfiesPin(reported, p.cfg.Version) {
		return "", fmt.Errorf("runtime %s reports version %s, pinned to %s", p.cfg.Runtime, reported, p.cfg.Version)
	}

	slog.Info("Runtime provisioned",
		slog.String("runtime", p.cfg.Runtime),
		slog.String("path", path),
		slog.String("version", reported))
	return reported, nil
}

// Install runs the configured installer command inside the checkout.
func (p *Provisioner) Install(ctx context.Context) error {
	if p.cfg.SkipInstall {
		slog.Info("Dependency installation skipped by configuration")
		return nil
	}
	command := p.cfg.InstallCommand
	if command == "" {
		command = p.cfg.Runtime
	}
	result, err := p.runner.Run(ctx, command, p.cfg.InstallArgs...)
	if err != nil {
		return fmt.Errorf("dependency installation failed: %w", err)
	}
	slog.Info("Dependencies installed",
		slog.String("command", command),
		slog.Duration("duration", result.Duration))
	return nil
}

// ParseVersion extracts the first dotted version number from raw output.
func ParseVersion(raw string) string {
	return versionPattern.FindString(raw)
}

// VersionSatisfiesPin reports whether a reported version matches a pin.
// The pin matches exactly or as a dotted prefix: pin "3.11" accepts "3.11.9"
// but not "3.1.19".
func VersionSatisfiesPin(reported, pin string) bool {
	if reported == pin {
		return true
	}
	return strings.HasPrefix(reported, pin+".")
}
