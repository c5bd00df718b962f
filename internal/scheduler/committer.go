package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/qaforge/pkg/types"
)

// maxDetailLength bounds the error text stored on a failure record
const maxDetailLength = 2000

// fatalSignal is raised once, by the committer's first store failure
type fatalSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newFatalSignal() *fatalSignal {
	return &fatalSignal{ch: make(chan struct{})}
}

func (f *fatalSignal) raise() {
	f.once.Do(func() { close(f.ch) })
}

func (f *fatalSignal) raised() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

func (f *fatalSignal) done() <-chan struct{} {
	return f.ch
}

// committer is the only goroutine that writes to the store during a run. It
// owns the cursor until the run ends.
type committer struct {
	s        *Scheduler
	cursor   *types.ProgressCursor
	progress *Progress
	dirty    []string // paths settled since the last flush
}

// run drains results until the channel closes. After the first store
// failure it raises fatal, stops writing and keeps draining so workers never
// block.
func (c *committer) run(ctx context.Context, results <-chan fileResult, fatal *fatalSignal) error {
	ticker := time.NewTicker(c.s.cfg.FlushInterval)
	defer ticker.Stop()

	var firstErr error
	for {
		select {
		case res, ok := <-results:
			if !ok {
				if firstErr == nil && len(c.dirty) > 0 {
					firstErr = c.flush(ctx)
				}
				return firstErr
			}
			if firstErr != nil {
				c.progress.abandoned.Add(1)
				continue
			}
			if err := c.handle(ctx, res); err != nil {
				firstErr = err
				fatal.raise()
				c.progress.abandoned.Add(1)
				c.s.logger.Errorw("store write failed, stopping run", "path", res.unit.Path, "error", err)
			}
		case <-ticker.C:
			if firstErr != nil || len(c.dirty) == 0 {
				continue
			}
			if err := c.flush(ctx); err != nil {
				firstErr = err
				fatal.raise()
				c.s.logger.Errorw("cursor flush failed, stopping run", "error", err)
			}
		}
	}
}

func (c *committer) handle(ctx context.Context, res fileResult) error {
	fingerprint := ""
	switch res.outcome {
	case outcomeCommit:
		if err := c.s.commitSample(ctx, res.unit, res.sample); err != nil {
			return err
		}
		fingerprint = res.unit.Fingerprint
		c.progress.processed.Add(1)
		c.progress.turns.Add(int64(len(res.sample.Turns)))
		c.s.logger.Infow("file committed",
			"path", res.unit.Path, "sample_id", res.sample.ID,
			"segments", res.sample.SegmentCount, "turns", len(res.sample.Turns),
			"failed_calls", res.failedCalls)

	case outcomeFailed:
		attempt, err := c.s.recordFailure(ctx, c.cursor.RunID, res)
		if err != nil {
			return err
		}
		c.progress.failed.Add(1)
		c.s.logger.Warnw("file failed",
			"path", res.unit.Path, "reason", res.reason, "attempt", attempt, "error", res.err)

	case outcomeDeferred:
		c.progress.deferred.Add(1)
		c.s.logger.Infow("file deferred, circuit open", "path", res.unit.Path)
		return nil

	case outcomeAbandoned:
		c.progress.abandoned.Add(1)
		c.s.logger.Debugw("file abandoned, run stopping", "path", res.unit.Path)
		return nil
	}

	c.cursor.MarkAttempted(res.unit.Path, fingerprint)
	c.dirty = append(c.dirty, res.unit.Path)
	if len(c.dirty) >= c.s.cfg.FlushEvery {
		return c.flush(ctx)
	}
	return nil
}

// flush writes the paths settled since the previous flush
func (c *committer) flush(ctx context.Context) error {
	if err := c.s.store.UpdateCursor(ctx, c.cursor, c.dirty); err != nil {
		return storeErr("save cursor", err)
	}
	c.dirty = c.dirty[:0]
	return nil
}

// commitSample writes the sample, its turns, the fingerprint pointer and the
// failure cleanup in one transaction
func (s *Scheduler) commitSample(ctx context.Context, unit types.FileUnit, sample *types.Sample) (err error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return storeErr("begin commit", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.CreateSample(ctx, sample); err != nil {
		return storeErr("create sample", err)
	}
	if err = tx.UpsertFingerprint(ctx, &types.FingerprintRecord{
		Path:            unit.Path,
		Fingerprint:     unit.Fingerprint,
		Encoding:        unit.Encoding,
		SizeBytes:       unit.SizeBytes,
		LastProcessedAt: sample.CreatedAt,
		SampleID:        sample.ID,
	}); err != nil {
		return storeErr("upsert fingerprint", err)
	}
	if err = tx.DeleteFailures(ctx, unit.Path); err != nil {
		return storeErr("delete failures", err)
	}
	if err = tx.Commit(); err != nil {
		return storeErr("commit sample", err)
	}
	return nil
}

// recordFailure stores a failure record numbered after the path's previous
// attempts and returns its attempt count
func (s *Scheduler) recordFailure(ctx context.Context, runID string, res fileResult) (attempt int, err error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return 0, storeErr("begin failure", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	last, err := tx.LastAttemptCount(ctx, res.unit.Path)
	if err != nil {
		return 0, storeErr("read attempt count", err)
	}

	detail := ""
	if res.err != nil {
		detail = res.err.Error()
		if len(detail) > maxDetailLength {
			detail = detail[:maxDetailLength]
		}
	}
	rec := &types.FailureRecord{
		Path:          res.unit.Path,
		Fingerprint:   res.unit.Fingerprint,
		Reason:        res.reason,
		Detail:        detail,
		AttemptCount:  last + 1,
		RetryEligible: res.reason.RetryEligible(),
		RunID:         runID,
		FailedAt:      time.Now(),
	}
	if err = tx.CreateFailure(ctx, rec); err != nil {
		return 0, storeErr("create failure", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, storeErr("commit failure", err)
	}
	return rec.AttemptCount, nil
}
