package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/events"
	"git.home.luguber.info/inful/docpub/internal/history"
	"git.home.luguber.info/inful/docpub/internal/logfields"
	"git.home.luguber.info/inful/docpub/internal/metrics"
	"git.home.luguber.info/inful/docpub/internal/retry"
	"git.home.luguber.info/inful/docpub/internal/workspace"
)

// Service runs complete publish pipelines and records their outcomes.
type Service struct {
	cfg       *config.Config
	runner    *Runner
	stages    []StageDef
	store     history.Store
	publisher events.Publisher
	recorder  metrics.Recorder
}

// Option customizes a Service.
type Option func(*Service)

// WithStore records finished runs into the given history store.
func WithStore(store history.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithEventPublisher emits run lifecycle events.
func WithEventPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder forwards run and stage metrics.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithStages overrides the stage list (used by tests).
func WithStages(stages []StageDef) Option {
	return func(s *Service) { s.stages = stages }
}

// NewService creates a pipeline service for the given configuration.
func NewService(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		stages:    DefaultStages(),
		publisher: events.NoopPublisher{},
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = NewRunner(retry.DefaultPolicy(), s.recorder)
	return s
}

// Run executes one publish run end to end: create a workspace, run the
// stages, derive the outcome, record history and emit events, clean up.
// The report is returned even when the run failed.
func (s *Service) Run(ctx context.Context, trigger Trigger) (*RunReport, error) {
	runID := uuid.NewString()
	report := NewRunReport(runID, trigger)

	slog.Info("Publish run started",
		logfields.RunID(runID),
		logfields.Trigger(string(trigger)),
		logfields.URL(s.cfg.Repository.URL),
		logfields.Branch(s.cfg.Repository.Branch))

	if err := s.publisher.PublishRunStarted(&events.RunStartedEvent{
		RunID:   runID,
		Trigger: string(trigger),
		Repo:    s.cfg.Repository.Name,
		Branch:  s.cfg.Repository.Branch,
	}); err != nil {
		slog.Warn("Failed to publish run started event", logfields.Error(err))
	}

	ws := workspace.NewManager("")
	state := &RunState{Config: s.cfg, Report: report, Recorder: s.recorder}
	var runErr error
	if err := ws.Create(); err != nil {
		runErr = err
	} else {
		state.WorkDir = ws.GetPath()
		runErr = s.runner.Run(ctx, state, s.stages)
		if cerr := ws.Cleanup(); cerr != nil {
			slog.Warn("Workspace cleanup failed", logfields.Path(ws.GetPath()), logfields.Error(cerr))
		}
	}

	report.Err = runErr
	report.Finish()
	report.Outcome = deriveOutcome(state, runErr)

	s.recorder.ObserveRunDuration(report.Duration())
	s.recorder.IncRunOutcome(string(report.Outcome))

	s.recordRun(state)
	s.emitFinished(state)

	slog.Info("Publish run finished",
		logfields.RunID(runID),
		slog.String("outcome", string(report.Outcome)),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))

	return report, runErr
}

// deriveOutcome maps the run error and publish result to a final outcome.
func deriveOutcome(state *RunState, runErr error) Outcome {
	if runErr != nil {
		var se *StageError
		if errors.As(runErr, &se) && se.Kind == ErrorKindCanceled {
			return OutcomeCanceled
		}
		return OutcomeFailed
	}
	if state.PublishResult != nil && state.PublishResult.Skipped {
		return OutcomeSkipped
	}
	return OutcomeSuccess
}

func (s *Service) recordRun(state *RunState) {
	if s.store == nil {
		return
	}
	report := state.Report
	run := history.Run{
		ID:           report.RunID,
		Trigger:      string(report.Trigger),
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		Outcome:      string(report.Outcome),
		SourceCommit: state.SourceCommit,
		StageResults: make(map[string]string, len(report.StageResults)),
	}
	if state.PublishResult != nil {
		run.PublishCommit = state.PublishResult.Commit
	}
	if report.Err != nil {
		run.Error = report.Err.Error()
	}
	for stage, result := range report.StageResults {
		run.StageResults[string(stage)] = string(result)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Record(ctx, run); err != nil {
		slog.Warn("Failed to record run history", logfields.RunID(report.RunID), logfields.Error(err))
	}
}

func (s *Service) emitFinished(state *RunState) {
	report := state.Report
	event := &events.RunFinishedEvent{
		RunID:        report.RunID,
		Trigger:      string(report.Trigger),
		Repo:         s.cfg.Repository.Name,
		Outcome:      string(report.Outcome),
		SourceCommit: state.SourceCommit,
		DurationMS:   report.Duration().Milliseconds(),
	}
	if state.PublishResult != nil {
		event.PublishCommit = state.PublishResult.Commit
	}
	if report.Err != nil {
		event.Error = report.Err.Error()
	}
	if err := s.publisher.PublishRunFinished(event); err != nil {
		slog.Warn("Failed to publish run finished event", logfields.Error(err))
	}
}
