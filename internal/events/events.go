// Package events publishes run lifecycle events for external consumers.
package events

import "time"

// RunStartedEvent is emitted when a publish run begins.
type RunStartedEvent struct {
	RunID     string    `json:"run_id"`
	Trigger   string    `json:"trigger"`
	Repo      string    `json:"repo"`
	Branch    string    `json:"branch"`
	Timestamp time.Time `json:"timestamp"`
}

// RunFinishedEvent is emitted when a publish run completes.
type RunFinishedEvent struct {
	RunID         string    `json:"run_id"`
	Trigger       string    `json:"trigger"`
	Repo          string    `json:"repo"`
	Outcome       string    `json:"outcome"` // success|skipped|failed|canceled
	SourceCommit  string    `json:"source_commit,omitempty"`
	PublishCommit string    `json:"publish_commit,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher emits run lifecycle events. Implementations must tolerate
// publish failures; event delivery never fails a run.
type Publisher interface {
	PublishRunStarted(event *RunStartedEvent) error
	PublishRunFinished(event *RunFinishedEvent) error
	Close() error
}

// NoopPublisher is a Publisher that does nothing (default when events are
// not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishRunStarted(*RunStartedEvent) error   { return nil }
func (NoopPublisher) PublishRunFinished(*RunFinishedEvent) error { return nil }
func (NoopPublisher) Close() error                               { return nil }
