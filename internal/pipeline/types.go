// Package pipeline runs the staged publish flow: checkout, provision,
// install, generate, verify, publish.
package pipeline

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/gitops"
	"git.home.luguber.info/inful/docpub/internal/metrics"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageCheckout  StageName = "checkout"
	StageProvision StageName = "provision"
	StageInstall   StageName = "install"
	StageGenerate  StageName = "generate"
	StageVerify    StageName = "verify"
	StagePublish   StageName = "publish"
)

// StageResult categorizes how a stage ended.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultSkipped  StageResult = "skipped"
	StageResultFailed   StageResult = "failed"
	StageResultCanceled StageResult = "canceled"
)

// Outcome is the final status of a whole run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeSkipped  Outcome = "skipped" // pipeline ran but nothing changed
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerWebhook   Trigger = "webhook"
	TriggerScheduled Trigger = "scheduled"
)

// RunState carries everything stages read and write during one run.
type RunState struct {
	Config   *config.Config
	Report   *RunReport
	Recorder metrics.Recorder

	// WorkDir is the per-run workspace root. CheckoutPath is set by the
	// checkout stage; later stages resolve source and output under it.
	WorkDir      string
	CheckoutPath string
	SourceCommit string

	// ToolchainEnv is populated by the provision stage and threaded into
	// install and generate so they run against the pinned runtime.
	ToolchainEnv []string

	PublishResult *gitops.PublishResult
}

// RunReport accumulates per-stage timing and results plus the final outcome.
type RunReport struct {
	RunID      string
	Trigger    Trigger
	StartedAt  time.Time
	FinishedAt time.Time

	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]StageResult

	Outcome Outcome
	Err     error
}

// NewRunReport initializes a report for a run.
func NewRunReport(runID string, trigger Trigger) *RunReport {
	return &RunReport{
		RunID:          runID,
		Trigger:        trigger,
		StartedAt:      time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]StageResult),
	}
}

// Finish stamps the end time.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns total wall time of the run.
func (r *RunReport) Duration() time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt)
}

// StageDef binds a stage name to its function.
type StageDef struct {
	Name StageName
	Fn   StageFunc
}

// StageFunc executes one stage against shared run state.
type StageFunc func(ctx context.Context, state *RunState) error
