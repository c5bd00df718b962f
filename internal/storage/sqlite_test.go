package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/qaforge/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newSample(id, path string, questions int) *types.Sample {
	s := &types.Sample{
		ID:          id,
		SourcePath:  path,
		Fingerprint: "fp-" + id,
		ModelLabel:  "test-model",
		IsMultiTurn: questions > 1,
	}
	for q := 0; q < questions; q++ {
		s.Turns = append(s.Turns,
			types.ConversationTurn{Index: 2 * q, Role: types.RoleAsker, Content: "question?",
				Metadata: map[string]string{"segment": "0"}},
			types.ConversationTurn{Index: 2*q + 1, Role: types.RoleAnswerer, Content: "answer"},
		)
	}
	return s
}

func TestNewSQLiteStorage(t *testing.T) {
	store := setupTestDB(t)
	assert.NotNil(t, store.db)

	var version string
	err := store.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	store := setupTestDB(t)
	require.NoError(t, ApplyMigrations(context.Background(), store.db))

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(AllMigrations), count)
}

func TestCreateAndGetSample(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	sample := newSample("s1", "a.go", 2)
	require.NoError(t, store.CreateSample(ctx, sample))
	for _, turn := range sample.Turns {
		assert.Greater(t, turn.ID, int64(0))
	}

	got, err := store.GetSample(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a.go", got.SourcePath)
	assert.Equal(t, "test-model", got.ModelLabel)
	assert.True(t, got.IsMultiTurn)
	assert.Nil(t, got.QualityScore)
	require.Len(t, got.Turns, 4)
	require.NoError(t, got.ValidateTurns())
	assert.Equal(t, "0", got.Turns[0].Metadata["segment"])
	assert.Nil(t, got.Turns[1].Metadata)

	_, err = store.GetSample(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSample_Atomic(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// Duplicate turn index violates UNIQUE(sample_id, turn_index)
	sample := newSample("s1", "a.go", 1)
	sample.Turns[1].Index = 0

	err := store.CreateSample(ctx, sample)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreWrite)

	exists, err := store.SampleExists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists, "sample must not be visible without its turns")
}

func TestFingerprint(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetFingerprint(ctx, "a.go")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.CreateSample(ctx, newSample("s1", "a.go", 1)))
	rec := &types.FingerprintRecord{Path: "a.go", Fingerprint: "v1", Encoding: "utf-8", SizeBytes: 10, SampleID: "s1"}
	require.NoError(t, store.UpsertFingerprint(ctx, rec))

	got, err := store.GetFingerprint(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Fingerprint)
	assert.Equal(t, "s1", got.SampleID)
	assert.True(t, got.SampleExists)

	// Newest fingerprint wins
	rec.Fingerprint = "v2"
	require.NoError(t, store.UpsertFingerprint(ctx, rec))
	got, err = store.GetFingerprint(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Fingerprint)

	// Deleting the sample out of band is visible on read
	require.NoError(t, store.DeleteSample(ctx, "s1"))
	got, err = store.GetFingerprint(ctx, "a.go")
	require.NoError(t, err)
	assert.False(t, got.SampleExists)
}

func TestTransaction_Rollback(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateSample(ctx, newSample("s1", "a.go", 1)))
	require.NoError(t, tx.UpsertFingerprint(ctx, &types.FingerprintRecord{Path: "a.go", Fingerprint: "v1", SampleID: "s1"}))
	require.NoError(t, tx.Rollback())

	exists, err := store.SampleExists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = store.GetFingerprint(ctx, "a.go")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
}

func TestFailures(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	n, err := store.LastAttemptCount(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, store.CreateFailure(ctx, &types.FailureRecord{
		Path: "a.go", Reason: types.ReasonTransientExhausted, AttemptCount: 1, RetryEligible: true,
	}))
	require.NoError(t, store.CreateFailure(ctx, &types.FailureRecord{
		Path: "a.go", Reason: types.ReasonPermanent, AttemptCount: 2, RetryEligible: false,
	}))
	require.NoError(t, store.CreateFailure(ctx, &types.FailureRecord{
		Path: "b.go", Reason: types.ReasonTransientExhausted, AttemptCount: 1, RetryEligible: true,
	}))

	n, err = store.LastAttemptCount(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same path and attempt count is one identity
	err = store.CreateFailure(ctx, &types.FailureRecord{Path: "b.go", Reason: types.ReasonPermanent, AttemptCount: 1})
	assert.ErrorIs(t, err, ErrStoreWrite)

	all, err := store.ListFailures(ctx, FailureFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := store.ListFailures(ctx, FailureFilter{Path: "a.go"})
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	paths, err := store.ListFailedPaths(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, paths)

	// a.go's newest record is not retry-eligible
	paths, err = store.ListFailedPaths(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, paths)

	require.NoError(t, store.DeleteFailures(ctx, "a.go"))
	forA, err = store.ListFailures(ctx, FailureFilter{Path: "a.go"})
	require.NoError(t, err)
	assert.Empty(t, forA)
}

func TestCursor(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.LoadOpenCursor(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	cursor := types.NewProgressCursor("run-1", []string{"a.go", "b.go", "c.go"})
	cursor.MarkAttempted("b.go", "fp-b")
	require.NoError(t, store.SaveCursor(ctx, cursor))

	loaded, err := store.LoadOpenCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, []string{"b.go"}, loaded.AttemptedPaths())
	assert.Equal(t, []string{"a.go", "c.go"}, loaded.PendingPaths())
	assert.Equal(t, "fp-b", loaded.Attempted["b.go"])

	// Saving again replaces the path sets
	cursor.MarkAttempted("a.go", "")
	now := time.Now()
	cursor.CompletedAt = &now
	require.NoError(t, store.SaveCursor(ctx, cursor))

	_, err = store.LoadOpenCursor(ctx)
	assert.ErrorIs(t, err, ErrNotFound, "completed runs are not resumed")

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", status.LastRunID)
	assert.True(t, status.LastRunCompleted)
}

func TestUpdateCursor_KeepsOtherPaths(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	cursor := types.NewProgressCursor("run-1", []string{"a.go", "b.go", "c.go"})
	cursor.MarkAttempted("b.go", "fp-b")
	require.NoError(t, store.SaveCursor(ctx, cursor))

	// A cursor that only knows about a.go must not drop the rows of b.go and c.go
	partial := &types.ProgressCursor{
		RunID:     cursor.RunID,
		StartedAt: cursor.StartedAt,
		UpdatedAt: time.Now(),
		Attempted: map[string]string{"a.go": "fp-a"},
		Pending:   map[string]bool{},
	}
	require.NoError(t, store.UpdateCursor(ctx, partial, []string{"a.go"}))

	loaded, err := store.LoadOpenCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, loaded.AttemptedPaths())
	assert.Equal(t, []string{"c.go"}, loaded.PendingPaths())
	assert.Equal(t, "fp-a", loaded.Attempted["a.go"])
	assert.Equal(t, "fp-b", loaded.Attempted["b.go"])

	// Paths the cursor no longer tracks are ignored
	require.NoError(t, store.UpdateCursor(ctx, partial, []string{"gone.go"}))
	loaded, err = store.LoadOpenCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.go"}, loaded.PendingPaths())

	now := time.Now()
	partial.CompletedAt = &now
	require.NoError(t, store.UpdateCursor(ctx, partial, nil))
	_, err = store.LoadOpenCursor(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStatus(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSample(ctx, newSample("s1", "a.go", 2)))
	require.NoError(t, store.UpsertFingerprint(ctx, &types.FingerprintRecord{Path: "a.go", Fingerprint: "v1", SampleID: "s1"}))
	require.NoError(t, store.CreateFailure(ctx, &types.FailureRecord{
		Path: "b.go", Reason: types.ReasonTransientExhausted, AttemptCount: 1, RetryEligible: true,
	}))

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.SamplesCount)
	assert.Equal(t, 4, status.TurnsCount)
	assert.Equal(t, 1, status.FingerprintsCount)
	assert.Equal(t, 1, status.FailedPathsCount)
	assert.Equal(t, 1, status.RetryEligibleCount)
	assert.Empty(t, status.LastRunID)
	assert.Nil(t, status.LastRunStartedAt)
}

func TestListSamplesByPath(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first := newSample("s1", "a.go", 1)
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.CreateSample(ctx, first))
	require.NoError(t, store.CreateSample(ctx, newSample("s2", "a.go", 1)))
	require.NoError(t, store.CreateSample(ctx, newSample("s3", "b.go", 1)))

	samples, err := store.ListSamplesByPath(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "s1", samples[0].ID)
	assert.Equal(t, "s2", samples[1].ID)
}
