// Package daemon runs docpub as a long-lived service: webhook and schedule
// triggered publish runs, bounded queueing, config hot-reload and an HTTP
// surface for health, status and metrics.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/events"
	"git.home.luguber.info/inful/docpub/internal/history"
	"git.home.luguber.info/inful/docpub/internal/logfields"
	"git.home.luguber.info/inful/docpub/internal/metrics"
	"git.home.luguber.info/inful/docpub/internal/pipeline"
)

// Daemon wires the queue, workers, scheduler, config watcher and HTTP
// server into one long-running service.
type Daemon struct {
	configPath string

	mu     sync.RWMutex
	config *config.Config
	last   *pipeline.RunReport

	queue     *Queue
	scheduler *Scheduler
	watcher   *ConfigWatcher
	server    *httpServer

	store     history.Store
	publisher events.Publisher
	recorder  metrics.Recorder
	registry  *prom.Registry

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a daemon from a loaded configuration. configPath enables
// hot-reload; pass "" to disable watching.
func New(configPath string, cfg *config.Config) (*Daemon, error) {
	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	d := &Daemon{
		configPath: configPath,
		config:     cfg,
		recorder:   recorder,
		registry:   registry,
		publisher:  events.NoopPublisher{},
		stopped:    make(chan struct{}),
	}
	d.queue = NewQueue(cfg.Daemon.QueueSize, recorder)

	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		d.store = store
	}

	if cfg.Events.Enabled {
		publisher, err := events.NewNATSPublisher(&cfg.Events)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
		}
		d.publisher = publisher
	}

	return d, nil
}

// cfg returns the current configuration snapshot.
func (d *Daemon) cfg() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

func (d *Daemon) lastReport() *pipeline.RunReport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Start launches workers, the scheduler, the config watcher and the HTTP
// server. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	cfg := d.cfg()

	workers := cfg.Daemon.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	if interval := cfg.Daemon.ScheduleIntervalDuration(); interval > 0 {
		scheduler, serr := NewScheduler(d.queue.Enqueue)
		if serr != nil {
			return serr
		}
		if serr := scheduler.SchedulePeriodicRun(interval); serr != nil {
			return serr
		}
		scheduler.Start()
		d.scheduler = scheduler
	}

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.reloadConfig)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		d.watcher = watcher
	}

	d.server = newHTTPServer(cfg.Daemon.Listen, d, d.registry)
	d.server.Start()

	slog.Info("Daemon started",
		slog.String("listen", cfg.Daemon.Listen),
		slog.Int("workers", workers),
		logfields.URL(cfg.Repository.URL),
		logfields.Branch(cfg.Repository.Branch))
	return nil
}

// worker consumes run requests until the queue is closed.
func (d *Daemon) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for req := range d.queue.Dequeue() {
		slog.Info("Worker picked up run request",
			slog.Int("worker", id),
			logfields.Trigger(string(req.Trigger)),
			slog.String("reason", req.Reason))
		d.runOnce(ctx, req)
	}
}

func (d *Daemon) runOnce(ctx context.Context, req RunRequest) {
	svc := pipeline.NewService(d.cfg(),
		pipeline.WithStore(d.store),
		pipeline.WithEventPublisher(d.publisher),
		pipeline.WithRecorder(d.recorder))

	report, err := svc.Run(ctx, req.Trigger)
	if err != nil {
		slog.Error("Publish run failed", logfields.Trigger(string(req.Trigger)), logfields.Error(err))
	}

	d.mu.Lock()
	d.last = report
	d.mu.Unlock()
	d.recorder.SetQueueDepth(d.queue.Depth())
}

// TriggerRun enqueues a manual run (used by the admin surface and tests).
func (d *Daemon) TriggerRun(reason string) error {
	return d.queue.Enqueue(RunRequest{Trigger: pipeline.TriggerManual, Reason: reason})
}

// reloadConfig re-reads the config file and swaps the active snapshot.
// Invalid configs are rejected and the previous one stays active.
func (d *Daemon) reloadConfig() {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		slog.Error("Config reload failed, keeping previous configuration", logfields.Error(err))
		return
	}
	d.mu.Lock()
	d.config = cfg
	d.mu.Unlock()
	slog.Info("Configuration reloaded", logfields.Path(d.configPath))
}

// Stop shuts everything down in dependency order: stop intake first, then
// drain workers, then close the stores.
func (d *Daemon) Stop(ctx context.Context) error {
	var errs []error
	d.stopOnce.Do(func() {
		slog.Info("Daemon stopping")

		if d.watcher != nil {
			d.watcher.Stop()
		}
		if d.scheduler != nil {
			if err := d.scheduler.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
			}
		}
		if d.server != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := d.server.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
			}
			cancel()
		}

		d.queue.Close()
		d.wg.Wait()

		if err := d.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event publisher close: %w", err))
		}
		if d.store != nil {
			if err := d.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("history store close: %w", err))
			}
		}
		close(d.stopped)
		slog.Info("Daemon stopped")
	})
	if len(errs) > 0 {
		return fmt.Errorf("daemon shutdown errors: %v", errs)
	}
	return nil
}
