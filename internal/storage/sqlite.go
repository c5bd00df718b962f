package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/qaforge/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// One connection: every write goes through a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, writeErr("begin transaction", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Fingerprint operations

func getFingerprint(ctx context.Context, q querier, path string) (*types.FingerprintRecord, error) {
	query := `
		SELECT f.path, f.fingerprint, COALESCE(f.encoding, ''), COALESCE(f.size_bytes, 0),
		       f.last_processed_at, COALESCE(f.sample_id, ''), s.sample_id IS NOT NULL
		FROM fingerprint_records f
		LEFT JOIN samples s ON s.sample_id = f.sample_id
		WHERE f.path = ?
	`
	var rec types.FingerprintRecord
	err := q.QueryRowContext(ctx, query, path).Scan(
		&rec.Path, &rec.Fingerprint, &rec.Encoding, &rec.SizeBytes,
		&rec.LastProcessedAt, &rec.SampleID, &rec.SampleExists,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint: %w", err)
	}
	return &rec, nil
}

func upsertFingerprint(ctx context.Context, q querier, rec *types.FingerprintRecord) error {
	query := `
		INSERT INTO fingerprint_records (path, fingerprint, encoding, size_bytes, last_processed_at, sample_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			encoding = excluded.encoding,
			size_bytes = excluded.size_bytes,
			last_processed_at = excluded.last_processed_at,
			sample_id = excluded.sample_id
	`
	if rec.LastProcessedAt.IsZero() {
		rec.LastProcessedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, query,
		rec.Path, rec.Fingerprint, rec.Encoding, rec.SizeBytes, rec.LastProcessedAt, nullString(rec.SampleID))
	return writeErr("upsert fingerprint", err)
}

// Sample operations

func createSample(ctx context.Context, q querier, sample *types.Sample) error {
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now()
	}
	var quality sql.NullFloat64
	if sample.QualityScore != nil {
		quality = sql.NullFloat64{Float64: *sample.QualityScore, Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO samples (sample_id, source_path, fingerprint, model_label, quality_score,
		                     is_multiturn, segment_count, lossy_split, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sample.ID, sample.SourcePath, sample.Fingerprint, sample.ModelLabel, quality,
		sample.IsMultiTurn, sample.SegmentCount, sample.LossySplit, sample.CreatedAt)
	if err != nil {
		return writeErr("insert sample", err)
	}

	for i := range sample.Turns {
		turn := &sample.Turns[i]
		turn.SampleID = sample.ID
		meta, err := encodeMetadata(turn.Metadata)
		if err != nil {
			return writeErr("encode turn metadata", err)
		}
		err = q.QueryRowContext(ctx, `
			INSERT INTO conversation_turns (sample_id, turn_index, role, content, metadata)
			VALUES (?, ?, ?, ?, ?)
			RETURNING turn_id
		`, sample.ID, turn.Index, string(turn.Role), turn.Content, meta).Scan(&turn.ID)
		if err != nil {
			return writeErr("insert turn", err)
		}
	}
	return nil
}

const sampleColumns = `sample_id, source_path, fingerprint, model_label, quality_score,
	is_multiturn, segment_count, lossy_split, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSample(row rowScanner) (*types.Sample, error) {
	var sample types.Sample
	var quality sql.NullFloat64
	err := row.Scan(&sample.ID, &sample.SourcePath, &sample.Fingerprint, &sample.ModelLabel, &quality,
		&sample.IsMultiTurn, &sample.SegmentCount, &sample.LossySplit, &sample.CreatedAt)
	if err != nil {
		return nil, err
	}
	if quality.Valid {
		score := quality.Float64
		sample.QualityScore = &score
	}
	return &sample, nil
}

func getSample(ctx context.Context, q querier, sampleID string) (*types.Sample, error) {
	row := q.QueryRowContext(ctx, "SELECT "+sampleColumns+" FROM samples WHERE sample_id = ?", sampleID)
	sample, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}

	turns, err := listTurns(ctx, q, sampleID)
	if err != nil {
		return nil, err
	}
	sample.Turns = turns
	return sample, nil
}

func listTurns(ctx context.Context, q querier, sampleID string) ([]types.ConversationTurn, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT turn_id, sample_id, turn_index, role, content, metadata
		FROM conversation_turns
		WHERE sample_id = ?
		ORDER BY turn_index
	`, sampleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []types.ConversationTurn
	for rows.Next() {
		var turn types.ConversationTurn
		var role string
		var meta sql.NullString
		if err := rows.Scan(&turn.ID, &turn.SampleID, &turn.Index, &role, &turn.Content, &meta); err != nil {
			return nil, err
		}
		turn.Role = types.Role(role)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &turn.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode turn metadata: %w", err)
			}
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func sampleExists(ctx context.Context, q querier, sampleID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM samples WHERE sample_id = ?", sampleID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sample: %w", err)
	}
	return true, nil
}

func deleteSample(ctx context.Context, q querier, sampleID string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM samples WHERE sample_id = ?", sampleID)
	return writeErr("delete sample", err)
}

func listSamplesByPath(ctx context.Context, q querier, path string) ([]*types.Sample, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+sampleColumns+" FROM samples WHERE source_path = ? ORDER BY created_at, sample_id", path)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []*types.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Failure operations

func createFailure(ctx context.Context, q querier, f *types.FailureRecord) error {
	if f.FailedAt.IsZero() {
		f.FailedAt = time.Now()
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO failure_records (path, fingerprint, reason, detail, attempt_count, retry_eligible, run_id, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING failure_id
	`, f.Path, f.Fingerprint, string(f.Reason), f.Detail, f.AttemptCount, f.RetryEligible, f.RunID, f.FailedAt).Scan(&f.ID)
	return writeErr("insert failure", err)
}

func lastAttemptCount(ctx context.Context, q querier, path string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(attempt_count), 0) FROM failure_records WHERE path = ?", path).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return n, nil
}

func listFailures(ctx context.Context, q querier, filter FailureFilter) ([]*types.FailureRecord, error) {
	var where []string
	var args []interface{}
	if filter.Path != "" {
		where = append(where, "path = ?")
		args = append(args, filter.Path)
	}
	if filter.RetryEligibleOnly {
		where = append(where, "retry_eligible = 1")
	}

	query := `
		SELECT failure_id, path, COALESCE(fingerprint, ''), reason, COALESCE(detail, ''),
		       attempt_count, retry_eligible, COALESCE(run_id, ''), failed_at
		FROM failure_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY failed_at DESC, failure_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.FailureRecord
	for rows.Next() {
		var f types.FailureRecord
		var reason string
		if err := rows.Scan(&f.ID, &f.Path, &f.Fingerprint, &reason, &f.Detail,
			&f.AttemptCount, &f.RetryEligible, &f.RunID, &f.FailedAt); err != nil {
			return nil, err
		}
		f.Reason = types.FailureReason(reason)
		out = append(out, &f)
	}
	return out, rows.Err()
}

func listFailedPaths(ctx context.Context, q querier, retryEligibleOnly bool) ([]string, error) {
	// The newest record per path decides eligibility
	query := `
		SELECT f.path FROM failure_records f
		WHERE f.attempt_count = (SELECT MAX(attempt_count) FROM failure_records WHERE path = f.path)
	`
	if retryEligibleOnly {
		query += " AND f.retry_eligible = 1"
	}
	query += " ORDER BY f.path"

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func deleteFailures(ctx context.Context, q querier, path string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM failure_records WHERE path = ?", path)
	return writeErr("delete failures", err)
}

// Progress operations

func saveCursor(ctx context.Context, q querier, c *types.ProgressCursor) error {
	if err := saveCursorRun(ctx, q, c); err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM progress_paths WHERE run_id = ?", c.RunID); err != nil {
		return writeErr("clear progress paths", err)
	}

	insert := "INSERT INTO progress_paths (run_id, path, attempted, fingerprint) VALUES (?, ?, ?, ?)"
	for _, p := range c.AttemptedPaths() {
		if _, err := q.ExecContext(ctx, insert, c.RunID, p, true, c.Attempted[p]); err != nil {
			return writeErr("save attempted path", err)
		}
	}
	for _, p := range c.PendingPaths() {
		if _, err := q.ExecContext(ctx, insert, c.RunID, p, false, ""); err != nil {
			return writeErr("save pending path", err)
		}
	}
	return nil
}

// updateCursor writes the run timestamps and only the given paths, leaving
// every other stored path row as it is
func updateCursor(ctx context.Context, q querier, c *types.ProgressCursor, paths []string) error {
	if err := saveCursorRun(ctx, q, c); err != nil {
		return err
	}

	upsert := `
		INSERT INTO progress_paths (run_id, path, attempted, fingerprint)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, path) DO UPDATE SET
			attempted = excluded.attempted,
			fingerprint = excluded.fingerprint
	`
	for _, p := range paths {
		fp, attempted := c.Attempted[p]
		if !attempted && !c.Pending[p] {
			continue
		}
		if _, err := q.ExecContext(ctx, upsert, c.RunID, p, attempted, fp); err != nil {
			return writeErr("update progress path", err)
		}
	}
	return nil
}

func saveCursorRun(ctx context.Context, q querier, c *types.ProgressCursor) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO progress_runs (run_id, started_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at
	`, c.RunID, c.StartedAt, c.UpdatedAt, nullTime(c.CompletedAt))
	if err != nil {
		return writeErr("save progress run", err)
	}
	return nil
}

func loadOpenCursor(ctx context.Context, q querier) (*types.ProgressCursor, error) {
	c := &types.ProgressCursor{
		Attempted: make(map[string]string),
		Pending:   make(map[string]bool),
	}
	err := q.QueryRowContext(ctx, `
		SELECT run_id, started_at, updated_at FROM progress_runs
		WHERE completed_at IS NULL
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1
	`).Scan(&c.RunID, &c.StartedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress run: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT path, attempted, fingerprint FROM progress_paths WHERE run_id = ?", c.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p, fp string
		var attempted bool
		if err := rows.Scan(&p, &attempted, &fp); err != nil {
			return nil, err
		}
		if attempted {
			c.Attempted[p] = fp
		} else {
			c.Pending[p] = true
		}
	}
	return c, rows.Err()
}

// Status operations

func getStatus(ctx context.Context, q querier) (*Status, error) {
	status := &Status{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM samples", &status.SamplesCount},
		{"SELECT COUNT(*) FROM conversation_turns", &status.TurnsCount},
		{"SELECT COUNT(*) FROM fingerprint_records", &status.FingerprintsCount},
		{"SELECT COUNT(DISTINCT path) FROM failure_records", &status.FailedPathsCount},
		{"SELECT COUNT(DISTINCT path) FROM failure_records WHERE retry_eligible = 1", &status.RetryEligibleCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to read status: %w", err)
		}
	}

	var started time.Time
	var completed sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT run_id, started_at, completed_at FROM progress_runs
		ORDER BY started_at DESC, run_id DESC LIMIT 1
	`).Scan(&status.LastRunID, &started, &completed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read last run: %w", err)
	default:
		status.LastRunStartedAt = &started
		status.LastRunCompleted = completed.Valid
	}
	return status, nil
}

// Helpers

func encodeMetadata(meta map[string]string) (interface{}, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// SQLiteStorage methods run against the database handle

func (s *SQLiteStorage) GetFingerprint(ctx context.Context, path string) (*types.FingerprintRecord, error) {
	return getFingerprint(ctx, s.db, path)
}

func (s *SQLiteStorage) UpsertFingerprint(ctx context.Context, record *types.FingerprintRecord) error {
	return upsertFingerprint(ctx, s.db, record)
}

// CreateSample inserts a sample and all of its turns in one transaction
func (s *SQLiteStorage) CreateSample(ctx context.Context, sample *types.Sample) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.CreateSample(ctx, sample); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) GetSample(ctx context.Context, sampleID string) (*types.Sample, error) {
	return getSample(ctx, s.db, sampleID)
}

func (s *SQLiteStorage) SampleExists(ctx context.Context, sampleID string) (bool, error) {
	return sampleExists(ctx, s.db, sampleID)
}

func (s *SQLiteStorage) DeleteSample(ctx context.Context, sampleID string) error {
	return deleteSample(ctx, s.db, sampleID)
}

func (s *SQLiteStorage) ListSamplesByPath(ctx context.Context, path string) ([]*types.Sample, error) {
	return listSamplesByPath(ctx, s.db, path)
}

func (s *SQLiteStorage) CreateFailure(ctx context.Context, failure *types.FailureRecord) error {
	return createFailure(ctx, s.db, failure)
}

func (s *SQLiteStorage) LastAttemptCount(ctx context.Context, path string) (int, error) {
	return lastAttemptCount(ctx, s.db, path)
}

func (s *SQLiteStorage) ListFailures(ctx context.Context, filter FailureFilter) ([]*types.FailureRecord, error) {
	return listFailures(ctx, s.db, filter)
}

func (s *SQLiteStorage) ListFailedPaths(ctx context.Context, retryEligibleOnly bool) ([]string, error) {
	return listFailedPaths(ctx, s.db, retryEligibleOnly)
}

func (s *SQLiteStorage) DeleteFailures(ctx context.Context, path string) error {
	return deleteFailures(ctx, s.db, path)
}

// SaveCursor replaces the stored state of the cursor's run in one transaction
func (s *SQLiteStorage) SaveCursor(ctx context.Context, cursor *types.ProgressCursor) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveCursor(ctx, cursor); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateCursor stores the run timestamps and the state of paths in one
// transaction. Rows of other paths are untouched.
func (s *SQLiteStorage) UpdateCursor(ctx context.Context, cursor *types.ProgressCursor, paths []string) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.UpdateCursor(ctx, cursor, paths); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) LoadOpenCursor(ctx context.Context) (*types.ProgressCursor, error) {
	return loadOpenCursor(ctx, s.db)
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return getStatus(ctx, s.db)
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return writeErr("commit", t.tx.Commit())
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) GetFingerprint(ctx context.Context, path string) (*types.FingerprintRecord, error) {
	return getFingerprint(ctx, t.tx, path)
}

func (t *sqliteTx) UpsertFingerprint(ctx context.Context, record *types.FingerprintRecord) error {
	return upsertFingerprint(ctx, t.tx, record)
}

func (t *sqliteTx) CreateSample(ctx context.Context, sample *types.Sample) error {
	return createSample(ctx, t.tx, sample)
}

func (t *sqliteTx) GetSample(ctx context.Context, sampleID string) (*types.Sample, error) {
	return getSample(ctx, t.tx, sampleID)
}

func (t *sqliteTx) SampleExists(ctx context.Context, sampleID string) (bool, error) {
	return sampleExists(ctx, t.tx, sampleID)
}

func (t *sqliteTx) DeleteSample(ctx context.Context, sampleID string) error {
	return deleteSample(ctx, t.tx, sampleID)
}

func (t *sqliteTx) ListSamplesByPath(ctx context.Context, path string) ([]*types.Sample, error) {
	return listSamplesByPath(ctx, t.tx, path)
}

func (t *sqliteTx) CreateFailure(ctx context.Context, failure *types.FailureRecord) error {
	return createFailure(ctx, t.tx, failure)
}

func (t *sqliteTx) LastAttemptCount(ctx context.Context, path string) (int, error) {
	return lastAttemptCount(ctx, t.tx, path)
}

func (t *sqliteTx) ListFailures(ctx context.Context, filter FailureFilter) ([]*types.FailureRecord, error) {
	return listFailures(ctx, t.tx, filter)
}

func (t *sqliteTx) ListFailedPaths(ctx context.Context, retryEligibleOnly bool) ([]string, error) {
	return listFailedPaths(ctx, t.tx, retryEligibleOnly)
}

func (t *sqliteTx) DeleteFailures(ctx context.Context, path string) error {
	return deleteFailures(ctx, t.tx, path)
}

func (t *sqliteTx) SaveCursor(ctx context.Context, cursor *types.ProgressCursor) error {
	return saveCursor(ctx, t.tx, cursor)
}

func (t *sqliteTx) UpdateCursor(ctx context.Context, cursor *types.ProgressCursor, paths []string) error {
	return updateCursor(ctx, t.tx, cursor, paths)
}

func (t *sqliteTx) LoadOpenCursor(ctx context.Context) (*types.ProgressCursor, error) {
	return loadOpenCursor(ctx, t.tx)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return getStatus(ctx, t.tx)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
