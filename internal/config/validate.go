package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Validate checks invariants that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Repository.URL == "" {
		return fmt.Errorf("repository.url is required")
	}
	if c.Generator.Command == "" {
		return fmt.Errorf("generator.command is required")
	}
	if c.Generator.SourceDir == "" || c.Generator.OutputDir == "" {
		return fmt.Errorf("generator.source_dir and generator.output_dir are required")
	}
	if filepath.IsAbs(c.Generator.SourceDir) || filepath.IsAbs(c.Generator.OutputDir) {
		return fmt.Errorf("generator directories must be relative to the checkout root")
	}
	if c.Generator.SourceDir == c.Generator.OutputDir {
		return fmt.Errorf("generator.source_dir and generator.output_dir must differ")
	}
	if c.Generator.Timeout != "" {
		if d, err := time.ParseDuration(c.Generator.Timeout); err != nil || d <= 0 {
			return fmt.Errorf("generator.timeout must be a positive duration: %q", c.Generator.Timeout)
		}
	}
	if c.Daemon.ScheduleInterval != "" {
		if d, err := time.ParseDuration(c.Daemon.ScheduleInterval); err != nil || d <= 0 {
			return fmt.Errorf("daemon.schedule_interval must be a positive duration: %q", c.Daemon.ScheduleInterval)
		}
	}
	if c.Publish.Branch == c.Repository.Branch {
		return fmt.Errorf("publish.branch must differ from repository.branch (got %q for both)", c.Publish.Branch)
	}
	if strings.Contains(c.Publish.TargetDir, "..") {
		return fmt.Errorf("publish.target_dir must not escape the repository root")
	}
	if err := validateMessageTemplate(c.Publish.MessageTemplate); err != nil {
		return err
	}
	if c.Repository.Auth != nil {
		switch c.Repository.Auth.Type {
		case "", "none", "ssh", "token", "basic":
		default:
			return fmt.Errorf("unsupported auth type: %s", c.Repository.Auth.Type)
		}
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events.nats_url is required when events are enabled")
	}
	return nil
}

// validateMessageTemplate requires exactly one %s verb and nothing else; the
// template is expanded with fmt.Sprintf over the short source commit, and a
// stray verb would leak %!(EXTRA ...) noise into commit messages.
func validateMessageTemplate(t string) error {
	stripped := strings.ReplaceAll(t, "%%", "")
	if strings.Count(stripped, "%s") != 1 {
		return fmt.Errorf("publish.message_template must contain exactly one %%s: %q", t)
	}
	if strings.Count(stripped, "%") != 1 {
		return fmt.Errorf("publish.message_template must not contain verbs other than %%s: %q", t)
	}
	return nil
}

// repoNameFromURL derives a short repository name from a clone URL.
func repoNameFromURL(url string) string {
	if url == "" {
		return ""
	}
	trimmed := strings.TrimSuffix(url, ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if i := strings.LastIndex(trimmed, ":"); i >= 0 && !strings.Contains(trimmed[i:], "/") {
		trimmed = trimmed[i+1:]
	}
	return path.Base(trimmed)
}
