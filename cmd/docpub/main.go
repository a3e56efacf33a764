package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/daemon"
	"git.home.luguber.info/inful/docpub/internal/events"
	"git.home.luguber.info/inful/docpub/internal/history"
	"git.home.luguber.info/inful/docpub/internal/pipeline"
	"git.home.luguber.info/inful/docpub/internal/verify"
	"git.home.luguber.info/inful/docpub/internal/version"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docpub.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Publish struct{} `cmd:"" help:"Run one publish pipeline: checkout, provision, install, generate, verify, publish"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Verify struct {
		Dir     string `arg:"" help:"Directory to verify (rendered output, or a checkout with --sources)"`
		Sources bool   `help:"Preflight markdown sources instead of rendered output"`
	} `cmd:"" help:"Check internal links without publishing"`

	History struct {
		Limit int `short:"n" help:"Number of runs to show" default:"10"`
	} `cmd:"" help:"Show recent publish runs"`

	Daemon struct{} `cmd:"" help:"Run as a daemon: webhook and scheduled publishes"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{"version": version.String()})

	var err error
	switch ctx.Command() {
	case "publish":
		err = runPublish()
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "verify <dir>":
		err = runVerify()
	case "history":
		err = runHistory()
	case "daemon":
		err = runDaemon()
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.SetupLogger(CLI.Verbose)
	return cfg, nil
}

func runPublish() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []pipeline.Option{}
	if cfg.History.Path != "" {
		store, serr := history.NewSQLiteStore(cfg.History.Path)
		if serr != nil {
			return serr
		}
		defer store.Close()
		opts = append(opts, pipeline.WithStore(store))
	}
	if cfg.Events.Enabled {
		publisher, perr := events.NewNATSPublisher(&cfg.Events)
		if perr != nil {
			return perr
		}
		defer publisher.Close()
		opts = append(opts, pipeline.WithEventPublisher(publisher))
	}

	report, err := pipeline.NewService(cfg, opts...).Run(ctx, pipeline.TriggerManual)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %s in %s\n", report.RunID, report.Outcome, report.Duration().Round(10*time.Millisecond))
	return nil
}

func runVerify() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc := verify.NewService(cfg.Verify)

	var report *verify.Report
	if CLI.Verify.Sources {
		report, err = svc.PreflightSources(CLI.Verify.Dir)
	} else {
		report, err = svc.CheckOutput(CLI.Verify.Dir)
	}
	if err != nil {
		return err
	}
	for _, p := range report.Problems {
		fmt.Println(p)
	}
	fmt.Printf("%d files, %d links checked, %d problems\n", report.FilesScanned, report.LinksChecked, len(report.Problems))
	if len(report.Problems) > 0 {
		return fmt.Errorf("verification found %d problems", len(report.Problems))
	}
	return nil
}

func runHistory() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history is not configured (history.path)")
	}
	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), CLI.History.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, run := range runs {
		line := fmt.Sprintf("%s  %-9s %-9s %s", run.StartedAt.Format("2006-01-02 15:04:05"), run.Trigger, run.Outcome, run.ID)
		if run.PublishCommit != "" {
			line += fmt.Sprintf("  -> %.8s", run.PublishCommit)
		}
		fmt.Println(line)
	}
	return nil
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(CLI.Config, cfg)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received")
	return d.Stop(context.Background())
}
