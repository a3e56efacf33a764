package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Repository Repository      `yaml:"repository"`
	Toolchain  ToolchainConfig `yaml:"toolchain"`
	Generator  GeneratorConfig `yaml:"generator"`
	Publish    PublishConfig   `yaml:"publish"`
	Verify     VerifyConfig    `yaml:"verify"`
	Daemon     DaemonConfig    `yaml:"daemon"`
	Events     EventsConfig    `yaml:"events"`
	History    HistoryConfig   `yaml:"history"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// Repository identifies the source repository and the watched branch.
type Repository struct {
	URL    string      `yaml:"url"`
	Name   string      `yaml:"name,omitempty"`
	Branch string      `yaml:"branch,omitempty"`
	Auth   *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	Type     string `yaml:"type"` // "none", "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// ToolchainConfig pins the language runtime and describes dependency installation.
type ToolchainConfig struct {
	Runtime        string   `yaml:"runtime"`                 // runtime binary, e.g. "python3"
	Version        string   `yaml:"version,omitempty"`       // pinned version; prefix match against reported version
	InstallCommand string   `yaml:"install_command"`         // e.g. "python3"
	InstallArgs    []string `yaml:"install_args,omitempty"`  // e.g. ["-m", "pip", "install", ".[docs]"]
	ExtraEnv       []string `yaml:"extra_env,omitempty"`     // KEY=VALUE pairs added to install/generate env
	SkipInstall    bool     `yaml:"skip_install,omitempty"`  // for pre-provisioned runners
}

// GeneratorConfig describes the documentation generator invocation.
type GeneratorConfig struct {
	Command          string   `yaml:"command"`                     // e.g. "sphinx-build"
	Args             []string `yaml:"args,omitempty"`              // extra args before source/output pair
	SourceDir        string   `yaml:"source_dir"`                  // relative to checkout root
	OutputDir        string   `yaml:"output_dir"`                  // relative to checkout root
	Timeout          string   `yaml:"timeout,omitempty"`           // cap on a single generator run, e.g. "20m"
	ExpectedArtifact string   `yaml:"expected_artifact,omitempty"` // file that must exist in output, e.g. "index.html"
}

// TimeoutDuration returns the parsed generator timeout. Defaults are applied
// before validation, so parsing here cannot fail.
func (g GeneratorConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		return 20 * time.Minute
	}
	return d
}

// PublishConfig describes the publishing branch mutation.
type PublishConfig struct {
	Branch          string `yaml:"branch"`                     // publishing branch, e.g. "gh-pages"
	TargetDir       string `yaml:"target_dir,omitempty"`       // directory on the publishing branch holding the site
	Remote          string `yaml:"remote,omitempty"`           // defaults to "origin"
	AuthorName      string `yaml:"author_name,omitempty"`
	AuthorEmail     string `yaml:"author_email,omitempty"`
	MessageTemplate string `yaml:"message_template,omitempty"` // %s is replaced with the short source commit
	PushRetries     int    `yaml:"push_retries,omitempty"`
}

// VerifyConfig controls output verification and source preflight.
type VerifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Strict  bool   `yaml:"strict,omitempty"` // treat broken internal links as run failures
	BaseURL string `yaml:"base_url,omitempty"`
}

// DaemonConfig holds daemon-mode settings.
type DaemonConfig struct {
	Listen           string `yaml:"listen,omitempty"`
	WebhookSecret    string `yaml:"webhook_secret,omitempty"`
	ScheduleInterval string `yaml:"schedule_interval,omitempty"` // empty disables scheduled publishes
	QueueSize        int    `yaml:"queue_size,omitempty"`
	Workers          int    `yaml:"workers,omitempty"`
}

// ScheduleIntervalDuration returns the parsed schedule interval, zero when unset.
func (d DaemonConfig) ScheduleIntervalDuration() time.Duration {
	if d.ScheduleInterval == "" {
		return 0
	}
	dur, err := time.ParseDuration(d.ScheduleInterval)
	if err != nil || dur < 0 {
		return 0
	}
	return dur
}

// EventsConfig configures optional NATS publication of run lifecycle events.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite database path; ":memory:" for ephemeral
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists; absence is not an error.
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content (tokens, key paths).
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with operational defaults.
func (c *Config) ApplyDefaults() {
	if c.Repository.Branch == "" {
		c.Repository.Branch = "main"
	}
	if c.Repository.Name == "" {
		c.Repository.Name = repoNameFromURL(c.Repository.URL)
	}
	if c.Generator.Timeout == "" {
		c.Generator.Timeout = "20m"
	}
	if c.Generator.ExpectedArtifact == "" {
		c.Generator.ExpectedArtifact = "index.html"
	}
	if c.Publish.Branch == "" {
		c.Publish.Branch = "gh-pages"
	}
	if c.Publish.TargetDir == "" {
		c.Publish.TargetDir = "docs"
	}
	if c.Publish.Remote == "" {
		c.Publish.Remote = "origin"
	}
	if c.Publish.AuthorName == "" {
		c.Publish.AuthorName = "docpub"
	}
	if c.Publish.AuthorEmail == "" {
		c.Publish.AuthorEmail = "docpub@localhost"
	}
	if c.Publish.MessageTemplate == "" {
		c.Publish.MessageTemplate = "docs: publish build of %s"
	}
	if c.Publish.PushRetries < 0 {
		c.Publish.PushRetries = 0
	}
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = ":8080"
	}
	if c.Daemon.QueueSize <= 0 {
		c.Daemon.QueueSize = 16
	}
	if c.Daemon.Workers <= 0 {
		c.Daemon.Workers = 1
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "docpub.runs"
	}
	if c.History.Path == "" {
		c.History.Path = "docpub-history.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Repository: Repository{
			URL:    "https://github.com/example/library.git",
			Branch: "main",
			Auth: &AuthConfig{
				Type:  "token",
				Token: "${GIT_TOKEN}",
			},
		},
		Toolchain: ToolchainConfig{
			Runtime:        "python3",
			Version:        "3.11",
			InstallCommand: "python3",
			InstallArgs:    []string{"-m", "pip", "install", ".[docs]"},
		},
		Generator: GeneratorConfig{
			Command:   "sphinx-build",
			SourceDir: "docs/source",
			OutputDir: "docs/build",
			Timeout:   "20m",
		},
		Publish: PublishConfig{
			Branch:    "gh-pages",
			TargetDir: "docs",
		},
		Verify: VerifyConfig{Enabled: true},
	}
	example.ApplyDefaults()

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
