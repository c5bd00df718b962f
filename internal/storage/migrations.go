package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.2.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{Version: "1.0.0", Up: migrationV1Up, Down: migrationV1Down},
	{Version: "1.1.0", Up: migrationV11Up, Down: migrationV11Down},
	{Version: "1.2.0", Up: migrationV12Up, Down: migrationV12Down},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS samples (
    sample_id TEXT PRIMARY KEY,
    source_path TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    model_label TEXT NOT NULL DEFAULT '',
    quality_score REAL,
    is_multiturn BOOLEAN NOT NULL DEFAULT 0,
    segment_count INTEGER NOT NULL DEFAULT 0,
    lossy_split BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_path ON samples(source_path);

CREATE TABLE IF NOT EXISTS conversation_turns (
    turn_id INTEGER PRIMARY KEY AUTOINCREMENT,
    sample_id TEXT NOT NULL,
    turn_index INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    metadata TEXT,
    FOREIGN KEY (sample_id) REFERENCES samples(sample_id) ON DELETE CASCADE,
    UNIQUE(sample_id, turn_index)
);

CREATE TABLE IF NOT EXISTS fingerprint_records (
    path TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    encoding TEXT,
    size_bytes INTEGER,
    last_processed_at TIMESTAMP NOT NULL,
    sample_id TEXT
);

CREATE TABLE IF NOT EXISTS failure_records (
    failure_id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    fingerprint TEXT,
    reason TEXT NOT NULL,
    detail TEXT,
    attempt_count INTEGER NOT NULL,
    retry_eligible BOOLEAN NOT NULL DEFAULT 0,
    run_id TEXT,
    failed_at TIMESTAMP NOT NULL,
    UNIQUE(path, attempt_count)
);

CREATE INDEX IF NOT EXISTS idx_failures_path ON failure_records(path);
`

const migrationV1Down = `
DROP TABLE IF EXISTS failure_records;
DROP TABLE IF EXISTS fingerprint_records;
DROP TABLE IF EXISTS conversation_turns;
DROP TABLE IF EXISTS samples;
DROP TABLE IF EXISTS schema_version;
`

const migrationV11Up = `
CREATE TABLE IF NOT EXISTS progress_runs (
    run_id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS progress_paths (
    run_id TEXT NOT NULL,
    path TEXT NOT NULL,
    attempted BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, path),
    FOREIGN KEY (run_id) REFERENCES progress_runs(run_id) ON DELETE CASCADE
);
`

const migrationV11Down = `
DROP TABLE IF EXISTS progress_paths;
DROP TABLE IF EXISTS progress_runs;
`

// progress_paths.fingerprint holds the content a committed path was settled
// with; failed attempts keep ''
const migrationV12Up = `
ALTER TABLE progress_paths ADD COLUMN fingerprint TEXT NOT NULL DEFAULT '';
`

const migrationV12Down = `
ALTER TABLE progress_paths DROP COLUMN fingerprint;
`

// currentVersion reads the newest applied schema version, or 0.0.0 on a fresh database
func currentVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	latest := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", raw, err)
		}
		if v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest, rows.Err()
}

// ApplyMigrations runs all pending migrations, each in its own transaction
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		version, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !current.LessThan(version) {
			continue
		}

		if err := runInTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
			return err
		}); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		current = version
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for i := len(AllMigrations) - 1; i >= 0; i-- {
		migration := AllMigrations[i]
		if !semver.MustParse(migration.Version).Equal(current) {
			continue
		}
		return runInTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
				return fmt.Errorf("failed to roll back %s: %w", migration.Version, err)
			}
			if i == 0 {
				// The first migration drops schema_version itself
				return nil
			}
			_, err := tx.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version)
			return err
		})
	}

	return fmt.Errorf("no migration found for version %s", current)
}

func runInTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
