// Package store persists analysis runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mriperfusion/internal/models"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// pathSeparator joins frame paths in a single column.
const pathSeparator = "\n"

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		frame_paths TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		region TEXT NOT NULL,
		threshold REAL NOT NULL,
		peak_frame INTEGER NOT NULL,
		peak_signal REAL NOT NULL,
		arrival_frame INTEGER NOT NULL,
		arrival_signal REAL NOT NULL,
		arrival_detected INTEGER NOT NULL,
		uptake_gradient REAL NOT NULL,
		fitted_uptake REAL NOT NULL,
		baseline_mean REAL NOT NULL,
		baseline_stddev REAL NOT NULL,
		agent TEXT DEFAULT '',
		dose REAL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL,
		frame INTEGER NOT NULL,
		signal REAL NOT NULL,
		gradient REAL NOT NULL,
		PRIMARY KEY (run_id, frame),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveRun inserts run and its samples in one transaction.
func (db *DB) SaveRun(ctx context.Context, run *models.Run) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, frame_paths, width, height, region, threshold,
			peak_frame, peak_signal, arrival_frame, arrival_signal, arrival_detected,
			uptake_gradient, fitted_uptake, baseline_mean, baseline_stddev, agent, dose)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC(), strings.Join(run.FramePaths, pathSeparator),
		run.Width, run.Height, run.Region, run.Threshold,
		run.PeakFrame, run.PeakSignal, run.ArrivalFrame, run.ArrivalSignal, run.ArrivalDetected,
		run.UptakeGradient, run.FittedUptake, run.BaselineMean, run.BaselineStdDev,
		run.Agent, run.Dose,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (run_id, frame, signal, gradient) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range run.Samples {
		if _, err := stmt.ExecContext(ctx, run.ID, s.Frame, s.Signal, s.Gradient); err != nil {
			return fmt.Errorf("failed to insert sample %d: %w", s.Frame, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, created_at, frame_paths, width, height, region, threshold,
	peak_frame, peak_signal, arrival_frame, arrival_signal, arrival_detected,
	uptake_gradient, fitted_uptake, baseline_mean, baseline_stddev, agent, dose`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run       models.Run
		paths     string
		createdAt time.Time
	)
	err := row.Scan(&run.ID, &createdAt, &paths, &run.Width, &run.Height, &run.Region, &run.Threshold,
		&run.PeakFrame, &run.PeakSignal, &run.ArrivalFrame, &run.ArrivalSignal, &run.ArrivalDetected,
		&run.UptakeGradient, &run.FittedUptake, &run.BaselineMean, &run.BaselineStdDev,
		&run.Agent, &run.Dose)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = createdAt
	if paths != "" {
		run.FramePaths = strings.Split(paths, pathSeparator)
	}
	return &run, nil
}

// GetRun returns the run with the given ID, including its samples.
func (db *DB) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT frame, signal, gradient FROM samples WHERE run_id = ? ORDER BY frame`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Sample
		if err := rows.Scan(&s.Frame, &s.Signal, &s.Gradient); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		run.Samples = append(run.Samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns returns up to limit runs, newest first, without their samples.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
