// Package storage keeps the sync history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jonasrichard/mediamosaic/internal/models"
)

// DB wraps the database connection with performance optimizations
type DB struct {
	*sql.DB
}

// InitDB initializes the database with connection pooling
func InitDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		directory TEXT NOT NULL,
		status TEXT NOT NULL,
		image_count INTEGER NOT NULL DEFAULT 0,
		bundle_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		queued_at DATETIME NOT NULL,
		started_at DATETIME,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_directory ON sync_runs(directory, queued_at);
	`

	_, err := db.Exec(schema)
	return err
}

const runColumns = `id, directory, status, image_count, bundle_count, error, queued_at, started_at, finished_at`

// InsertRun records a newly queued sync command
func (db *DB) InsertRun(ctx context.Context, run *models.SyncRun) error {
	query := `INSERT INTO sync_runs (id, directory, status, queued_at) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, run.ID, run.Directory, string(run.Status), run.QueuedAt.UTC())
	return err
}

// MarkRunning flags a run as picked up by the worker
func (db *DB) MarkRunning(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sync_runs SET status = ?, started_at = ? WHERE id = ?`
	return db.execOne(ctx, query, string(models.SyncRunning), at.UTC(), id)
}

// FinishRun stores the outcome of a run. A non-nil runErr marks it failed.
func (db *DB) FinishRun(ctx context.Context, id string, images, bundles int, runErr error, at time.Time) error {
	status, msg := models.SyncDone, ""
	if runErr != nil {
		status, msg = models.SyncFailed, runErr.Error()
	}
	query := `UPDATE sync_runs SET status = ?, image_count = ?, bundle_count = ?, error = ?, finished_at = ? WHERE id = ?`
	return db.execOne(ctx, query, string(status), images, bundles, msg, at.UTC(), id)
}

func (db *DB) execOne(ctx context.Context, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id)
	return scanRun(row)
}

// LatestRun returns the most recently queued run of a directory, or nil if
// the directory was never synced.
func (db *DB) LatestRun(ctx context.Context, directory string) (*models.SyncRun, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs
	                                WHERE directory = ? ORDER BY queued_at DESC, rowid DESC LIMIT 1`, directory)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs of a directory, newest first
func (db *DB) ListRuns(ctx context.Context, directory string, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM sync_runs
	                                   WHERE directory = ? ORDER BY queued_at DESC, rowid DESC LIMIT ?`, directory, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FailUnfinished marks runs left queued or running by a previous process as
// failed. It returns how many were updated.
func (db *DB) FailUnfinished(ctx context.Context, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE sync_runs SET status = ?, error = ?, finished_at = ?
	                                 WHERE status IN (?, ?)`,
		string(models.SyncFailed), "interrupted by shutdown", at.UTC(),
		string(models.SyncQueued), string(models.SyncRunning))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.SyncRun, error) {
	run := &models.SyncRun{}
	var status string
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.Directory, &status, &run.ImageCount, &run.BundleCount,
		&run.Error, &run.QueuedAt, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Status = models.SyncStatus(status)
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}
