package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docpub/internal/logfields"
	"git.home.luguber.info/inful/docpub/internal/metrics"
	"git.home.luguber.info/inful/docpub/internal/retry"
)

// ErrStageSkipped is returned by a stage that had nothing to do. The runner
// records a skipped result and continues with the next stage.
var ErrStageSkipped = errors.New("stage skipped")

// Runner executes stages in order, recording timing and stopping on the
// first fatal or canceled stage. Transient stage failures are retried per
// the policy.
type Runner struct {
	policy   retry.Policy
	recorder metrics.Recorder
}

// NewRunner creates a stage runner.
func NewRunner(policy retry.Policy, recorder metrics.Recorder) *Runner {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Runner{policy: policy, recorder: recorder}
}

// Run executes the stages against shared state. The returned error is the
// *StageError that aborted the run, or nil.
func (r *Runner) Run(ctx context.Context, state *RunState, stages []StageDef) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := &StageError{Stage: st.Name, Kind: ErrorKindCanceled, Err: ctx.Err()}
			state.Report.StageResults[st.Name] = StageResultCanceled
			r.recorder.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return se
		default:
		}

		t0 := time.Now()
		err := r.runStage(ctx, state, st)
		dur := time.Since(t0)

		state.Report.StageDurations[st.Name] = dur
		r.recorder.ObserveStageDuration(string(st.Name), dur)

		if errors.Is(err, ErrStageSkipped) {
			state.Report.StageResults[st.Name] = StageResultSkipped
			r.recorder.IncStageResult(string(st.Name), metrics.ResultSkipped)
			slog.Info("Stage skipped", logfields.Stage(string(st.Name)))
			continue
		}
		if err != nil {
			se := NewStageError(st.Name, err)
			if se.Kind == ErrorKindCanceled {
				state.Report.StageResults[st.Name] = StageResultCanceled
				r.recorder.IncStageResult(string(st.Name), metrics.ResultCanceled)
			} else {
				state.Report.StageResults[st.Name] = StageResultFailed
				r.recorder.IncStageResult(string(st.Name), metrics.ResultFatal)
			}
			slog.Error("Stage failed",
				logfields.Stage(string(st.Name)),
				slog.String("kind", string(se.Kind)),
				logfields.DurationMS(float64(dur.Milliseconds())),
				logfields.Error(err))
			return se
		}

		state.Report.StageResults[st.Name] = StageResultSuccess
		r.recorder.IncStageResult(string(st.Name), metrics.ResultSuccess)
		slog.Info("Stage completed", logfields.Stage(string(st.Name)), logfields.DurationMS(float64(dur.Milliseconds())))
	}
	return nil
}

// runStage runs one stage, retrying transient failures.
func (r *Runner) runStage(ctx context.Context, state *RunState, st StageDef) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := r.policy.Delay(attempt)
			slog.Warn("Retrying stage after transient failure",
				logfields.Stage(string(st.Name)),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				logfields.Error(lastErr))
			r.recorder.IncStageRetry(string(st.Name))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = st.Fn(ctx, state)
		if lastErr == nil || errors.Is(lastErr, ErrStageSkipped) {
			return lastErr
		}
		if classifyStageError(lastErr) != ErrorKindTransient || attempt >= r.policy.MaxRetries {
			return lastErr
		}
	}
}
