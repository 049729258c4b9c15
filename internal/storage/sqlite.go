package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/divetag/internal/models"
)

// SQLiteStorage implements Ledger using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		media_root TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		processed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		errored INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		media_key TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT,
		capture_time TIMESTAMP,
		dive_number INTEGER,
		site_name TEXT,
		confidence TEXT,
		gps_backend TEXT,
		gps_written INTEGER NOT NULL DEFAULT 0,
		sidecar_written INTEGER NOT NULL DEFAULT 0,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_items_run_id ON items(run_id);
	CREATE INDEX IF NOT EXISTS idx_items_media_key ON items(media_key);
	`
	_, err := db.Exec(schema)
	return err
}

// StartRun inserts run, assigning an ID and start time when they are unset.
func (s *SQLiteStorage) StartRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, media_root, dry_run, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.MediaRoot, run.DryRun, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func (s *SQLiteStorage) FinishRun(ctx context.Context, runID string, summary *models.Summary) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, skipped = ?, errored = ? WHERE id = ?`,
		time.Now().UTC(), summary.Processed, summary.Skipped, summary.Errored, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, media_root, dry_run, started_at, finished_at, processed, skipped, errored`

func scanRun(row interface{ Scan(...any) error }) (*models.Run, error) {
	var run models.Run
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.MediaRoot, &run.DryRun, &run.StartedAt, &finished,
		&run.Processed, &run.Skipped, &run.Errored); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// GetRun returns a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordItem appends one item result to a run.
func (s *SQLiteStorage) RecordItem(ctx context.Context, runID string, item *models.ItemResult) error {
	var confidence sql.NullString
	if item.Confidence != nil {
		confidence = sql.NullString{String: item.Confidence.String(), Valid: true}
	}
	var capture sql.NullTime
	if item.CaptureTime != nil {
		capture = sql.NullTime{Time: *item.CaptureTime, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (run_id, path, media_key, outcome, reason, capture_time, dive_number,
		 site_name, confidence, gps_backend, gps_written, sidecar_written)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, item.Path, item.MediaKey, item.Outcome.String(), item.Reason, capture, item.DiveNumber,
		item.SiteName, confidence, item.GPSBackend, item.GPSWritten, item.SidecarWritten,
	)
	if err != nil {
		return fmt.Errorf("failed to record item %s: %w", item.Path, err)
	}
	return nil
}

// ItemsForRun returns the items of a run in the order they were recorded.
func (s *SQLiteStorage) ItemsForRun(ctx context.Context, runID string) ([]*models.ItemResult, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, media_key, outcome, reason, capture_time, dive_number, site_name,
		 confidence, gps_backend, gps_written, sidecar_written
		 FROM items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ItemResult
	for rows.Next() {
		var item models.ItemResult
		var outcome string
		var reason, site, conf, backend sql.NullString
		var capture sql.NullTime
		var dive sql.NullInt64
		if err := rows.Scan(&item.Path, &item.MediaKey, &outcome, &reason, &capture, &dive, &site,
			&conf, &backend, &item.GPSWritten, &item.SidecarWritten); err != nil {
			return nil, err
		}
		if item.Outcome, err = models.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		item.Reason = reason.String
		item.SiteName = site.String
		item.GPSBackend = backend.String
		item.DiveNumber = int(dive.Int64)
		if capture.Valid {
			t := capture.Time
			item.CaptureTime = &t
		}
		if conf.Valid && conf.String != "" {
			c, err := models.ParseConfidence(conf.String)
			if err != nil {
				return nil, err
			}
			item.Confidence = &c
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Processed reports whether mediaKey was processed by any run that was not a dry run.
// Later skips of the same key do not hide the processed row.
func (s *SQLiteStorage) Processed(ctx context.Context, mediaKey string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM items i JOIN runs r ON r.id = i.run_id
		 WHERE i.media_key = ? AND r.dry_run = 0 AND i.outcome = ?
		 LIMIT 1`, mediaKey, models.OutcomeProcessed.String(),
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
