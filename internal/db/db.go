// Package db persists simulation runs, per-step convergence telemetry,
// and compressed velocity-field snapshots in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection for the run store.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the run store at path. Schema setup happens
// via MigrateUp; callers run it before first use.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	return &DB{db}, nil
}

// Run is one persisted simulation session.
type Run struct {
	RunID              string   `json:"run_id"`
	StartedUnixNanos   int64    `json:"started_unix_nanos"`
	CompletedUnixNanos *int64   `json:"completed_unix_nanos,omitempty"`
	Status             string   `json:"status"`
	ConfigJSON         string   `json:"config_json"`
	Width              int      `json:"width"`
	Height             int      `json:"height"`
	Steps              int      `json:"steps"`
	Converged          bool     `json:"converged"`
	FinalDelta         *float64 `json:"final_delta,omitempty"`
}

// StepSample is one per-step telemetry record.
type StepSample struct {
	RunID             string  `json:"run_id"`
	StepIndex         int     `json:"step_index"`
	Delta             float64 `json:"delta"`
	RecordedUnixNanos int64   `json:"recorded_unix_nanos"`
}

// InsertRun records a newly started run.
func (db *DB) InsertRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, started_unix_nanos, status, config_json, width, height, steps, converged)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0)`,
		r.RunID, r.StartedUnixNanos, r.Status, r.ConfigJSON, r.Width, r.Height)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// CompleteRun records the terminal state of a run.
func (db *DB) CompleteRun(runID, status string, steps int, converged bool, finalDelta *float64) error {
	now := time.Now().UnixNano()
	res, err := db.Exec(`
		UPDATE runs SET completed_unix_nanos = ?, status = ?, steps = ?, converged = ?, final_delta = ?
		WHERE run_id = ?`,
		now, status, steps, converged, finalDelta, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no run with id %s", runID)
	}
	return nil
}

// RecordStep appends one telemetry sample for a run.
func (db *DB) RecordStep(runID string, stepIndex int, delta float64) error {
	_, err := db.Exec(`
		INSERT INTO run_steps (run_id, step_index, delta, recorded_unix_nanos)
		VALUES (?, ?, ?, ?)`,
		runID, stepIndex, delta, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// GetRun returns one run by id, or sql.ErrNoRows.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, started_unix_nanos, completed_unix_nanos, status, config_json,
		       width, height, steps, converged, final_delta
		FROM runs WHERE run_id = ?`, runID)
	var r Run
	if err := row.Scan(&r.RunID, &r.StartedUnixNanos, &r.CompletedUnixNanos, &r.Status,
		&r.ConfigJSON, &r.Width, &r.Height, &r.Steps, &r.Converged, &r.FinalDelta); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT run_id, started_unix_nanos, completed_unix_nanos, status, config_json,
		       width, height, steps, converged, final_delta
		FROM runs ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.StartedUnixNanos, &r.CompletedUnixNanos, &r.Status,
			&r.ConfigJSON, &r.Width, &r.Height, &r.Steps, &r.Converged, &r.FinalDelta); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunSteps returns the telemetry samples for a run in step order.
func (db *DB) GetRunSteps(runID string) ([]StepSample, error) {
	rows, err := db.Query(`
		SELECT run_id, step_index, delta, recorded_unix_nanos
		FROM run_steps WHERE run_id = ? ORDER BY step_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run steps: %w", err)
	}
	defer rows.Close()

	var samples []StepSample
	for rows.Next() {
		var s StepSample
		if err := rows.Scan(&s.RunID, &s.StepIndex, &s.Delta, &s.RecordedUnixNanos); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
