package storage

import (
	"context"
	"time"

	"github.com/dshills/qaforge/pkg/types"
)

// Storage defines the persistence operations the pipeline performs
type Storage interface {
	// Fingerprint operations
	GetFingerprint(ctx context.Context, path string) (*types.FingerprintRecord, error)
	UpsertFingerprint(ctx context.Context, record *types.FingerprintRecord) error

	// Sample operations
	CreateSample(ctx context.Context, sample *types.Sample) error
	GetSample(ctx context.Context, sampleID string) (*types.Sample, error)
	SampleExists(ctx context.Context, sampleID string) (bool, error)
	DeleteSample(ctx context.Context, sampleID string) error
	ListSamplesByPath(ctx context.Context, path string) ([]*types.Sample, error)

	// Failure operations
	CreateFailure(ctx context.Context, failure *types.FailureRecord) error
	LastAttemptCount(ctx context.Context, path string) (int, error)
	ListFailures(ctx context.Context, filter FailureFilter) ([]*types.FailureRecord, error)
	ListFailedPaths(ctx context.Context, retryEligibleOnly bool) ([]string, error)
	DeleteFailures(ctx context.Context, path string) error

	// Progress operations
	SaveCursor(ctx context.Context, cursor *types.ProgressCursor) error
	UpdateCursor(ctx context.Context, cursor *types.ProgressCursor, paths []string) error
	LoadOpenCursor(ctx context.Context) (*types.ProgressCursor, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Storage
	Commit() error
	Rollback() error
}

// FailureFilter narrows ListFailures
type FailureFilter struct {
	Path              string
	RetryEligibleOnly bool
	Limit             int
}

// Status summarizes the store contents
type Status struct {
	SamplesCount       int        `json:"samples"`
	TurnsCount         int        `json:"turns"`
	FingerprintsCount  int        `json:"fingerprints"`
	FailedPathsCount   int        `json:"failed_paths"`
	RetryEligibleCount int        `json:"retry_eligible"`
	LastRunID          string     `json:"last_run_id,omitempty"`
	LastRunStartedAt   *time.Time `json:"last_run_started_at,omitempty"`
	LastRunCompleted   bool       `json:"last_run_completed"`
}
