package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Old journals must be
// deleted; they hold nothing stages depend on.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different
// journal layout.
var ErrSchemaMismatch = errors.New("journal schema version mismatch")

// Status values for runs and stages.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Run is one splicer command invocation.
type Run struct {
	ID         string
	Command    string
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
}

// Stage is one stage execution for one track.
type Stage struct {
	RunID      string
	Track      string
	Stage      string
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
}

// Duration reports how long the stage ran.
func (s Stage) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Journal is the SQLite-backed run log.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) initSchema(ctx context.Context) error {
	var tableExists int
	err := j.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return j.createSchema(ctx)
	}

	var version int
	if err := j.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, j.path)
	}
	return nil
}

func (j *Journal) createSchema(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// BeginRun records the start of a run.
func (j *Journal) BeginRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return j.exec(ctx,
		"INSERT INTO runs (id, command, dir, started_at, status) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Command, run.Dir, formatTime(run.StartedAt), StatusRunning)
}

// FinishRun records the outcome of a run.
func (j *Journal) FinishRun(ctx context.Context, id string, runErr error) error {
	status, message := StatusSucceeded, ""
	if runErr != nil {
		status, message = StatusFailed, runErr.Error()
	}
	return j.exec(ctx,
		"UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?",
		formatTime(time.Now()), status, nullable(message), id)
}

// RecordStage appends one stage execution.
func (j *Journal) RecordStage(ctx context.Context, stage Stage) error {
	if stage.Status == "" {
		stage.Status = StatusSucceeded
	}
	return j.exec(ctx,
		`INSERT INTO stages (run_id, track, stage, detail, started_at, finished_at, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stage.RunID, stage.Track, stage.Stage, nullable(stage.Detail),
		formatTime(stage.StartedAt), formatTime(stage.FinishedAt), stage.Status, nullable(stage.Error))
}

// Runs lists the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, command, dir, started_at, finished_at, status, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                 Run
			started             string
			finished, errorText sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Command, &run.Dir, &started, &finished, &run.Status, &errorText); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished.String)
		run.Error = errorText.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stages lists a run's stage executions in the order they finished.
func (j *Journal) Stages(ctx context.Context, runID string) ([]Stage, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, track, stage, detail, started_at, finished_at, status, error
		 FROM stages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		var (
			stage             Stage
			started, finished string
			detail, errorText sql.NullString
		)
		if err := rows.Scan(&stage.RunID, &stage.Track, &stage.Stage, &detail, &started, &finished, &stage.Status, &errorText); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stage.Detail = detail.String
		stage.Error = errorText.String
		stage.StartedAt = parseTime(started)
		stage.FinishedAt = parseTime(finished)
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// LatestRun returns the newest run, or false when the journal is empty.
func (j *Journal) LatestRun(ctx context.Context) (Run, bool, error) {
	runs, err := j.Runs(ctx, 1)
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}
	return runs[0], true, nil
}

func (j *Journal) exec(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := j.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// timeLayout keeps a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
