package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docpub/internal/logfields"
	"git.home.luguber.info/inful/docpub/internal/pipeline"
)

// Scheduler wraps gocron for periodic publish runs.
type Scheduler struct {
	scheduler gocron.Scheduler
	enqueue   func(RunRequest) error
}

// NewScheduler creates a scheduler feeding the given enqueue function.
func NewScheduler(enqueue func(RunRequest) error) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, enqueue: enqueue}, nil
}

// SchedulePeriodicRun enqueues a publish run every interval.
func (s *Scheduler) SchedulePeriodicRun(interval time.Duration) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.tick),
		gocron.WithName("periodic-publish"),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic publish job: %w", err)
	}
	slog.Info("Scheduled periodic publish", slog.Duration("interval", interval))
	return nil
}

func (s *Scheduler) tick() {
	if err := s.enqueue(RunRequest{Trigger: pipeline.TriggerScheduled, Reason: "schedule tick"}); err != nil {
		slog.Warn("Failed to enqueue scheduled run", logfields.Error(err))
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
