package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is how a generation job ended
type Outcome string

const (
	OutcomeRunning     Outcome = "running"
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeFailed      Outcome = "failed"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeInterrupted Outcome = "interrupted" // still running when the session ended
)

// Log records generation jobs in SQLite
type Log struct {
	db *sql.DB
}

// Job is one recorded generation job
type Job struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Outcome    Outcome
	StatusText string
}

// Duration returns how long the job ran, or zero if it has not finished
func (j Job) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Open opens or creates the job log at dbPath
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			outcome TEXT NOT NULL,
			status_text TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);
		CREATE INDEX IF NOT EXISTS idx_jobs_outcome ON jobs(outcome);
	`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the database connection
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Start records a new running job
func (l *Log) Start(ctx context.Context, id string, at time.Time) error {
	query := `
		INSERT INTO jobs (id, started_at, outcome)
		VALUES (?, ?, ?)
	`

	if _, err := l.db.ExecContext(ctx, query, id, at.UnixMilli(), OutcomeRunning); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Finish records the outcome and last status text of a job
func (l *Log) Finish(ctx context.Context, id string, outcome Outcome, status string, at time.Time) error {
	query := `
		UPDATE jobs
		SET finished_at = ?, outcome = ?, status_text = ?
		WHERE id = ?
	`

	result, err := l.db.ExecContext(ctx, query, at.UnixMilli(), outcome, status, id)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("job %s not found", id)
	}

	return nil
}

// MarkInterrupted closes out jobs left running by a previous session
func (l *Log) MarkInterrupted(ctx context.Context, at time.Time) (int64, error) {
	query := `
		UPDATE jobs
		SET finished_at = ?, outcome = ?
		WHERE outcome = ?
	`

	result, err := l.db.ExecContext(ctx, query, at.UnixMilli(), OutcomeInterrupted, OutcomeRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted jobs: %w", err)
	}

	return result.RowsAffected()
}

// Recent returns the newest jobs first. A limit of 0 returns all jobs.
func (l *Log) Recent(ctx context.Context, limit int) ([]Job, error) {
	query := `
		SELECT id, started_at, finished_at, outcome, status_text
		FROM jobs
		ORDER BY started_at DESC
	`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		var j Job
		var started int64
		var finished sql.NullInt64
		var outcome string

		if err := rows.Scan(&j.ID, &started, &finished, &outcome, &j.StatusText); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		j.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			j.FinishedAt = time.UnixMilli(finished.Int64)
		}
		j.Outcome = Outcome(outcome)

		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// Count returns the number of jobs with the given outcome
func (l *Log) Count(ctx context.Context, outcome Outcome) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE outcome = ?", outcome).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// Cleanup removes finished jobs older than maxAge
func (l *Log) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	query := `
		DELETE FROM jobs
		WHERE outcome != ?
		AND started_at < ?
	`

	result, err := l.db.ExecContext(ctx, query, OutcomeRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old jobs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
