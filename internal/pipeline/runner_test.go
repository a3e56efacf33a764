package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/gitops"
	"git.home.luguber.info/inful/docpub/internal/retry"
)

func testState() *RunState {
	return &RunState{
		Config: &config.Config{},
		Report: NewRunReport("test-run", TriggerManual),
	}
}

func fastPolicy() retry.Policy {
	return retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 2)
}

func namedStage(name StageName, order *[]StageName, err error) StageDef {
	return StageDef{Name: name, Fn: func(ctx context.Context, state *RunState) error {
		*order = append(*order, name)
		return err
	}}
}

// TestRunnerRunsAllStages executes stages in order and records results.
func TestRunnerRunsAllStages(t *testing.T) {
	var order []StageName
	stages := []StageDef{
		namedStage(StageCheckout, &order, nil),
		namedStage(StageGenerate, &order, nil),
		namedStage(StagePublish, &order, nil),
	}
	state := testState()

	if err := NewRunner(fastPolicy(), nil).Run(context.Background(), state, stages); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(order) != 3 || order[0] != StageCheckout || order[2] != StagePublish {
		t.Fatalf("unexpected order: %v", order)
	}
	for _, name := range []StageName{StageCheckout, StageGenerate, StagePublish} {
		if state.Report.StageResults[name] != StageResultSuccess {
			t.Fatalf("stage %s: got %s", name, state.Report.StageResults[name])
		}
		if _, ok := state.Report.StageDurations[name]; !ok {
			t.Fatalf("stage %s: missing duration", name)
		}
	}
}

// TestRunnerStopsOnFatal aborts the pipeline on a fatal stage failure.
func TestRunnerStopsOnFatal(t *testing.T) {
	var order []StageName
	stages := []StageDef{
		namedStage(StageCheckout, &order, nil),
		namedStage(StageGenerate, &order, errors.New("sphinx exploded")),
		namedStage(StagePublish, &order, nil),
	}
	state := testState()

	err := NewRunner(fastPolicy(), nil).Run(context.Background(), state, stages)
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageGenerate || se.Kind != ErrorKindFatal {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range order {
		if name == StagePublish {
			t.Fatal("publish must not run after a fatal generate")
		}
	}
	if state.Report.StageResults[StageGenerate] != StageResultFailed {
		t.Fatalf("generate result: %s", state.Report.StageResults[StageGenerate])
	}
}

// TestRunnerSkippedStageContinues records skipped and keeps going.
func TestRunnerSkippedStageContinues(t *testing.T) {
	var order []StageName
	stages := []StageDef{
		namedStage(StageVerify, &order, ErrStageSkipped),
		namedStage(StagePublish, &order, nil),
	}
	state := testState()

	if err := NewRunner(fastPolicy(), nil).Run(context.Background(), state, stages); err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Report.StageResults[StageVerify] != StageResultSkipped {
		t.Fatalf("verify result: %s", state.Report.StageResults[StageVerify])
	}
	if state.Report.StageResults[StagePublish] != StageResultSuccess {
		t.Fatalf("publish result: %s", state.Report.StageResults[StagePublish])
	}
}

// TestRunnerRetriesTransient retries a transient failure and succeeds.
func TestRunnerRetriesTransient(t *testing.T) {
	attempts := 0
	stages := []StageDef{{Name: StageCheckout, Fn: func(ctx context.Context, state *RunState) error {
		attempts++
		if attempts == 1 {
			return &gitops.NetworkTimeoutError{Op: "clone", URL: "https://example.com/repo.git", Err: errors.New("i/o timeout")}
		}
		return nil
	}}}
	state := testState()

	if err := NewRunner(fastPolicy(), nil).Run(context.Background(), state, stages); err != nil {
		t.Fatalf("run: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if state.Report.StageResults[StageCheckout] != StageResultSuccess {
		t.Fatalf("checkout result: %s", state.Report.StageResults[StageCheckout])
	}
}

// TestRunnerTransientExhausted gives up after the policy's retry budget.
func TestRunnerTransientExhausted(t *testing.T) {
	attempts := 0
	stages := []StageDef{{Name: StagePublish, Fn: func(ctx context.Context, state *RunState) error {
		attempts++
		return &gitops.NetworkTimeoutError{Op: "push", URL: "https://example.com/repo.git", Err: errors.New("timed out")}
	}}}

	err := NewRunner(fastPolicy(), nil).Run(context.Background(), testState(), stages)
	if err == nil {
		t.Fatal("expected error")
	}
	// initial attempt plus MaxRetries
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

// TestRunnerCanceledContext refuses to start the next stage.
func TestRunnerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := testState()

	err := NewRunner(fastPolicy(), nil).Run(ctx, state, DefaultStages())
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StageError
	if !errors.As(err, &se) || se.Kind != ErrorKindCanceled {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Report.StageResults[StageCheckout] != StageResultCanceled {
		t.Fatalf("checkout result: %s", state.Report.StageResults[StageCheckout])
	}
}
