package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based run store.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		run_trigger TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		source_commit TEXT,
		publish_commit TEXT,
		error TEXT,
		stage_results TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts a completed run.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stagesJSON []byte
	if run.StageResults != nil {
		var err error
		stagesJSON, err = json.Marshal(run.StageResults)
		if err != nil {
			return fmt.Errorf("marshal stage results: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_trigger, started_at, finished_at, outcome, source_commit, publish_commit, error, stage_results)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, run.StartedAt.Unix(), run.FinishedAt.Unix(), run.Outcome,
		run.SourceCommit, run.PublishCommit, run.Error, stagesJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_trigger, started_at, finished_at, outcome, source_commit, publish_commit, error, stage_results
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// Recent retrieves the most recent runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_trigger, started_at, finished_at, outcome, source_commit, publish_commit, error, stage_results
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var run Run
	var startedUnix, finishedUnix int64
	var stagesJSON []byte

	err := scan(&run.ID, &run.Trigger, &startedUnix, &finishedUnix, &run.Outcome,
		&run.SourceCommit, &run.PublishCommit, &run.Error, &stagesJSON)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(startedUnix, 0)
	run.FinishedAt = time.Unix(finishedUnix, 0)
	if len(stagesJSON) > 0 {
		if err := json.Unmarshal(stagesJSON, &run.StageResults); err != nil {
			return nil, fmt.Errorf("unmarshal stage results: %w", err)
		}
	}
	return &run, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
