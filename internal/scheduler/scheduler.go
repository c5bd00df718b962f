package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/qaforge/internal/chunker"
	"github.com/dshills/qaforge/internal/detector"
	"github.com/dshills/qaforge/internal/resilience"
	"github.com/dshills/qaforge/internal/resource"
	"github.com/dshills/qaforge/internal/storage"
	"github.com/dshills/qaforge/pkg/types"
)

// Run modes
const (
	ModeRun   = "run"
	ModeRetry = "retry"
)

// Config contains the scheduler knobs
type Config struct {
	Concurrency          int           // simultaneous file attempts (default: 3)
	PerFileParallelism   int           // concurrent answer calls within one file (default: 2)
	MaxInflightCalls     int           // generation calls outstanding across the run (default: 4)
	FlushEvery           int           // flush the cursor after this many attempts (default: 10)
	FlushInterval        time.Duration // and at least this often (default: 5s)
	ResourcePollInterval time.Duration // resource re-check period while paused (default: 30s)
	ContextWindow        int           // model context window in tokens (default: 4096)
	MaxAnswerTokens      int           // tokens reserved for the answer (default: 1024)
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Concurrency:          3,
		PerFileParallelism:   2,
		MaxInflightCalls:     4,
		FlushEvery:           10,
		FlushInterval:        5 * time.Second,
		ResourcePollInterval: 30 * time.Second,
		ContextWindow:        4096,
		MaxAnswerTokens:      1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.PerFileParallelism <= 0 {
		c.PerFileParallelism = def.PerFileParallelism
	}
	if c.MaxInflightCalls <= 0 {
		c.MaxInflightCalls = def.MaxInflightCalls
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = def.FlushEvery
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = def.FlushInterval
	}
	if c.ResourcePollInterval <= 0 {
		c.ResourcePollInterval = def.ResourcePollInterval
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = def.ContextWindow
	}
	if c.MaxAnswerTokens < 0 {
		c.MaxAnswerTokens = 0
	}
	return c
}

// Generator is the two-phase generation protocol driven by the scheduler.
// *generation.Client implements it.
type Generator interface {
	EnsureReady(ctx context.Context) error
	Questions(ctx context.Context, seg types.Segment, fileSize int64) ([]string, error)
	Answer(ctx context.Context, seg types.Segment, question string, fileSize int64) (string, error)
	ModelLabel() string
	ContextWindow() int
}

// FileLoader reloads files by path for retry runs. *filetree.Walker
// implements it.
type FileLoader interface {
	Load(ctx context.Context, paths []string) ([]types.FileUnit, error)
}

// Dependencies are the collaborators of a Scheduler
type Dependencies struct {
	Store     storage.Storage
	Generator Generator
	Policy    *resilience.Policy
	Monitor   resource.Monitor   // nil never pauses
	Chunker   *chunker.Chunker   // nil uses chunker.New()
	Logger    *zap.SugaredLogger // nil discards
}

// Summary is the outcome of one run
type Summary struct {
	RunID     string
	Mode      string
	Resumed   bool
	Total     int
	Skipped   int
	Processed int
	Failed    int
	Deferred  int
	Abandoned int
	Turns     int64
	Stopped   bool
	Duration  time.Duration
}

// Scheduler runs files through chunking and generation with bounded
// concurrency and commits the results through a single writer
type Scheduler struct {
	store    storage.Storage
	detector *detector.Detector
	chunker  *chunker.Chunker
	gen      Generator
	policy   *resilience.Policy
	monitor  resource.Monitor
	cfg      Config
	logger   *zap.SugaredLogger

	lock     RunLock
	progress atomic.Pointer[Progress]
	newRunID func() string
}

// New creates a Scheduler
func New(deps Dependencies, cfg Config) (*Scheduler, error) {
	if deps.Store == nil {
		return nil, errors.New("scheduler requires a store")
	}
	if deps.Generator == nil {
		return nil, errors.New("scheduler requires a generator")
	}
	if deps.Policy == nil {
		deps.Policy = resilience.NewPolicy(resilience.DefaultRetryConfig(), nil, nil, deps.Logger)
	}
	if deps.Monitor == nil {
		deps.Monitor = resource.Always
	}
	if deps.Chunker == nil {
		deps.Chunker = chunker.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}

	return &Scheduler{
		store:    deps.Store,
		detector: detector.New(deps.Store),
		chunker:  deps.Chunker,
		gen:      deps.Generator,
		policy:   deps.Policy,
		monitor:  deps.Monitor,
		cfg:      cfg.withDefaults(),
		logger:   deps.Logger,
		newRunID: func() string { return ulid.Make().String() },
	}, nil
}

// Running reports whether a run is active
func (s *Scheduler) Running() bool {
	return s.lock.Held()
}

// Progress returns the counters of the active or most recent run. ok is false
// if no run has started in this process.
func (s *Scheduler) Progress() (snap Snapshot, ok bool) {
	p := s.progress.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return p.Snapshot(), true
}

// Run processes every new or modified file in units. Unchanged files are
// skipped. An unfinished run recorded in the store is resumed: files it
// already attempted are not attempted again.
//
// Cancelling ctx stops admission; files in flight finish their current call
// and are abandoned without a commit. The cursor is flushed before Run
// returns. A store write failure aborts the run and is returned.
func (s *Scheduler) Run(ctx context.Context, units []types.FileUnit) (*Summary, error) {
	return s.execute(ctx, ModeRun, units)
}

// RetryFailed reprocesses the files with retry-eligible failure records,
// regardless of their fingerprints
func (s *Scheduler) RetryFailed(ctx context.Context, loader FileLoader) (*Summary, error) {
	paths, err := s.store.ListFailedPaths(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed paths: %w", err)
	}
	units, err := loader.Load(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to load failed files: %w", err)
	}
	return s.execute(ctx, ModeRetry, units)
}

func (s *Scheduler) execute(ctx context.Context, mode string, units []types.FileUnit) (*Summary, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer s.lock.Release()

	startTime := time.Now()
	units = uniqueByPath(units)

	eligible, skipped := units, []types.FileUnit(nil)
	if mode == ModeRun {
		var err error
		eligible, skipped, err = s.detector.Partition(ctx, units)
		if err != nil {
			return nil, fmt.Errorf("failed to detect changes: %w", err)
		}
	}

	cursor, resumed, err := s.openCursor(ctx, mode, eligible)
	if err != nil {
		return nil, err
	}
	skippedCount := len(skipped)
	if resumed {
		// Only content this run already committed is skipped; failed and
		// since-modified paths go through again
		remaining := eligible[:0:0]
		for _, u := range eligible {
			if cursor.Committed(u.Path, u.Fingerprint) {
				skippedCount++
				continue
			}
			remaining = append(remaining, u)
		}
		eligible = remaining
	}

	// Persisting the whole cursor first makes an interruption before the
	// first commit resumable; later flushes only write settled paths
	storeCtx := context.WithoutCancel(ctx)
	if err := s.store.SaveCursor(storeCtx, cursor); err != nil {
		return nil, storeErr("save cursor", err)
	}

	progress := newProgress(cursor.RunID, mode, len(units), skippedCount)
	s.progress.Store(progress)
	defer progress.finish()

	s.logger.Infow("run started",
		"run_id", cursor.RunID, "mode", mode, "resumed", resumed,
		"files", len(units), "eligible", len(eligible), "skipped", skippedCount)

	budget := 0
	if len(eligible) > 0 {
		budget = s.segmentBudget(ctx)
	}

	runErr := s.dispatch(ctx, eligible, budget, cursor, progress)

	if len(cursor.Pending) == 0 && runErr == nil {
		now := time.Now()
		cursor.CompletedAt = &now
	}
	if err := s.store.UpdateCursor(storeCtx, cursor, nil); err != nil {
		runErr = errors.Join(runErr, storeErr("save cursor", err))
	}

	snap := progress.Snapshot()
	summary := &Summary{
		RunID:     cursor.RunID,
		Mode:      mode,
		Resumed:   resumed,
		Total:     snap.Total,
		Skipped:   snap.Skipped,
		Processed: snap.Processed,
		Failed:    snap.Failed,
		Deferred:  snap.Deferred,
		Abandoned: snap.Abandoned,
		Turns:     snap.Turns,
		Stopped:   ctx.Err() != nil,
		Duration:  time.Since(startTime),
	}

	s.logger.Infow("run finished",
		"run_id", summary.RunID, "processed", summary.Processed, "skipped", summary.Skipped,
		"failed", summary.Failed, "deferred", summary.Deferred, "abandoned", summary.Abandoned,
		"stopped", summary.Stopped, "duration", summary.Duration)

	return summary, runErr
}

// dispatch admits eligible files into the worker pool and waits for the
// committer to drain every result
func (s *Scheduler) dispatch(ctx context.Context, eligible []types.FileUnit, budget int, cursor *types.ProgressCursor, progress *Progress) error {
	// In-flight calls are not cut short by a stop request; workers check
	// stopping between steps instead
	workCtx := context.WithoutCancel(ctx)

	fatal := newFatalSignal()
	stopping := func() bool {
		return ctx.Err() != nil || fatal.raised()
	}

	results := make(chan fileResult, s.cfg.Concurrency)
	committerDone := make(chan error, 1)
	c := &committer{s: s, cursor: cursor, progress: progress}
	go func() {
		committerDone <- c.run(workCtx, results, fatal)
	}()

	pool, err := ants.NewPool(s.cfg.Concurrency)
	if err != nil {
		close(results)
		<-committerDone
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	gate := semaphore.NewWeighted(int64(s.cfg.Concurrency))
	w := &fileWorker{
		s:        s,
		calls:    semaphore.NewWeighted(int64(s.cfg.MaxInflightCalls)),
		budget:   budget,
		stopping: stopping,
	}

	var (
		wg        sync.WaitGroup
		submitErr error
	)
	for _, unit := range eligible {
		if stopping() || !s.waitForResources(ctx, progress, fatal.done()) {
			break
		}
		if err := gate.Acquire(ctx, 1); err != nil {
			break
		}
		if stopping() {
			gate.Release(1)
			break
		}

		progress.inFlight.Add(1)
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			defer gate.Release(1)
			res := w.process(workCtx, unit)
			progress.inFlight.Add(-1)
			results <- res
		})
		if err != nil {
			progress.inFlight.Add(-1)
			wg.Done()
			gate.Release(1)
			submitErr = fmt.Errorf("failed to submit %s: %w", unit.Path, err)
			break
		}
	}

	wg.Wait()
	close(results)
	return errors.Join(submitErr, <-committerDone)
}

// waitForResources blocks admission while the monitor reports insufficient
// resources. It returns false when the run is stopping.
func (s *Scheduler) waitForResources(ctx context.Context, progress *Progress, fatal <-chan struct{}) bool {
	if s.monitor.Sufficient(ctx) {
		return true
	}

	progress.paused.Store(true)
	defer progress.paused.Store(false)
	s.logger.Warnw("resources insufficient, pausing admission", "poll_interval", s.cfg.ResourcePollInterval)

	ticker := time.NewTicker(s.cfg.ResourcePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-fatal:
			return false
		case <-ticker.C:
			if s.monitor.Sufficient(ctx) {
				s.logger.Infow("resources recovered, resuming admission")
				return true
			}
		}
	}
}

// segmentBudget is the per-request token budget handed to the chunker: the
// context window minus the answer reservation. A backend that reports a
// smaller window than configured lowers it.
func (s *Scheduler) segmentBudget(ctx context.Context) int {
	window := s.cfg.ContextWindow
	if err := s.gen.EnsureReady(ctx); err != nil {
		s.logger.Warnw("generation backend not ready, using configured context window", "error", err)
	} else if w := s.gen.ContextWindow(); w > 0 && w < window {
		s.logger.Infow("lowering context window to model limit", "configured", window, "model", w)
		window = w
	}
	return window - s.cfg.MaxAnswerTokens
}

func (s *Scheduler) openCursor(ctx context.Context, mode string, eligible []types.FileUnit) (*types.ProgressCursor, bool, error) {
	paths := make([]string, len(eligible))
	for i, u := range eligible {
		paths[i] = u.Path
	}

	if mode == ModeRun {
		cursor, err := s.store.LoadOpenCursor(ctx)
		switch {
		case err == nil:
			// Pending is rebuilt from the current tree so deleted files
			// cannot keep the run open forever
			cursor.Pending = make(map[string]bool, len(eligible))
			for _, u := range eligible {
				cursor.AddPending(u.Path, u.Fingerprint)
			}
			return cursor, true, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, false, fmt.Errorf("failed to load progress cursor: %w", err)
		}
	}
	return types.NewProgressCursor(s.newRunID(), paths), false, nil
}

func uniqueByPath(units []types.FileUnit) []types.FileUnit {
	seen := make(map[string]bool, len(units))
	out := make([]types.FileUnit, 0, len(units))
	for _, u := range units {
		if seen[u.Path] {
			continue
		}
		seen[u.Path] = true
		out = append(out, u)
	}
	return out
}

// storeErr makes sure a persistence failure carries the store-write
// classification
func storeErr(op string, err error) error {
	if errors.Is(err, storage.ErrStoreWrite) {
		return err
	}
	return &storage.WriteError{Op: op, Err: err}
}
