package pipeline

import (
	"context"
	"errors"
	"testing"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/events"
	"git.home.luguber.info/inful/docpub/internal/gitops"
	"git.home.luguber.info/inful/docpub/internal/history"
)

func serviceConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Repository.URL = "https://example.com/docs.git"
	cfg.Repository.Name = "docs"
	cfg.Repository.Branch = "main"
	return cfg
}

type capturingPublisher struct {
	started  []*events.RunStartedEvent
	finished []*events.RunFinishedEvent
}

func (c *capturingPublisher) PublishRunStarted(e *events.RunStartedEvent) error {
	c.started = append(c.started, e)
	return nil
}

func (c *capturingPublisher) PublishRunFinished(e *events.RunFinishedEvent) error {
	c.finished = append(c.finished, e)
	return nil
}

func (c *capturingPublisher) Close() error { return nil }

// TestServiceRunSuccess drives fake stages to completion and checks the
// history record and emitted events.
func TestServiceRunSuccess(t *testing.T) {
	store, err := history.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()
	pub := &capturingPublisher{}

	stages := []StageDef{
		{Name: StageCheckout, Fn: func(ctx context.Context, state *RunState) error {
			state.SourceCommit = "abcdef1234567890"
			return nil
		}},
		{Name: StagePublish, Fn: func(ctx context.Context, state *RunState) error {
			state.PublishResult = &gitops.PublishResult{Commit: "fedcba0987654321", Pushed: true}
			return nil
		}},
	}

	svc := NewService(serviceConfig(), WithStages(stages), WithStore(store), WithEventPublisher(pub))
	report, err := svc.Run(context.Background(), TriggerWebhook)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != OutcomeSuccess {
		t.Fatalf("outcome: %s", report.Outcome)
	}

	recorded, err := store.Get(context.Background(), report.RunID)
	if err != nil || recorded == nil {
		t.Fatalf("history record missing: %v %v", recorded, err)
	}
	if recorded.Outcome != "success" || recorded.SourceCommit != "abcdef1234567890" || recorded.PublishCommit != "fedcba0987654321" {
		t.Fatalf("unexpected record: %+v", recorded)
	}
	if recorded.StageResults["publish"] != "success" {
		t.Fatalf("stage results: %+v", recorded.StageResults)
	}

	if len(pub.started) != 1 || len(pub.finished) != 1 {
		t.Fatalf("events: %d started, %d finished", len(pub.started), len(pub.finished))
	}
	if pub.finished[0].Outcome != "success" || pub.finished[0].RunID != report.RunID {
		t.Fatalf("finished event: %+v", pub.finished[0])
	}
}

// TestServiceRunSkippedOutcome maps an unchanged publish to a skipped run.
func TestServiceRunSkippedOutcome(t *testing.T) {
	stages := []StageDef{
		{Name: StagePublish, Fn: func(ctx context.Context, state *RunState) error {
			state.PublishResult = &gitops.PublishResult{Skipped: true}
			return nil
		}},
	}
	report, err := NewService(serviceConfig(), WithStages(stages)).Run(context.Background(), TriggerScheduled)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != OutcomeSkipped {
		t.Fatalf("outcome: %s", report.Outcome)
	}
}

// TestServiceRunFailedOutcome surfaces the stage error and a failed outcome.
func TestServiceRunFailedOutcome(t *testing.T) {
	stages := []StageDef{
		{Name: StageGenerate, Fn: func(ctx context.Context, state *RunState) error {
			return errors.New("conf.py not found")
		}},
	}
	report, err := NewService(serviceConfig(), WithStages(stages)).Run(context.Background(), TriggerManual)
	if err == nil {
		t.Fatal("expected error")
	}
	if report.Outcome != OutcomeFailed {
		t.Fatalf("outcome: %s", report.Outcome)
	}
	if report.Err == nil {
		t.Fatal("report error not set")
	}
}

// TestServiceRunCanceledOutcome maps context cancellation to canceled.
func TestServiceRunCanceledOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := NewService(serviceConfig(), WithStages(DefaultStages())).Run(ctx, TriggerManual)
	if err == nil {
		t.Fatal("expected error")
	}
	if report.Outcome != OutcomeCanceled {
		t.Fatalf("outcome: %s", report.Outcome)
	}
}
