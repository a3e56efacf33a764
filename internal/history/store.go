// Package history persists publish run records.
package history

import (
	"context"
	"time"
)

// Run is one recorded publish run.
type Run struct {
	ID            string            `json:"id"`
	Trigger       string            `json:"trigger"` // manual|webhook|scheduled
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	Outcome       string            `json:"outcome"` // success|skipped|failed|canceled
	SourceCommit  string            `json:"source_commit,omitempty"`
	PublishCommit string            `json:"publish_commit,omitempty"`
	Error         string            `json:"error,omitempty"`
	StageResults  map[string]string `json:"stage_results,omitempty"` // stage -> result
}

// Store defines the interface for persisting and retrieving runs.
type Store interface {
	// Record inserts a completed run.
	Record(ctx context.Context, run Run) error

	// Get retrieves a run by ID.
	Get(ctx context.Context, id string) (*Run, error)

	// Recent retrieves the most recent runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)

	// Close closes the store and releases resources.
	Close() error
}
