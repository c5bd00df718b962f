package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/qaforge/internal/filetree"
	"github.com/dshills/qaforge/internal/generation"
	"github.com/dshills/qaforge/internal/resilience"
	"github.com/dshills/qaforge/pkg/types"
)

type outcome int

const (
	outcomeCommit outcome = iota
	outcomeFailed
	outcomeDeferred
	outcomeAbandoned
)

// fileResult is what a worker hands to the committer for one file attempt
type fileResult struct {
	unit        types.FileUnit
	outcome     outcome
	sample      *types.Sample
	reason      types.FailureReason
	err         error
	failedCalls int
}

var errStopped = errors.New("run stopping")

// fileWorker processes one file at a time; a single instance is shared by all
// pool goroutines and holds no per-file state
type fileWorker struct {
	s        *Scheduler
	calls    *semaphore.Weighted
	budget   int
	stopping func() bool
}

// process runs a file through chunking and both generation phases. It never
// writes to the store.
func (w *fileWorker) process(ctx context.Context, unit types.FileUnit) fileResult {
	res := fileResult{unit: unit}

	text, err := filetree.Decode(unit.Content, unit.Encoding)
	if err != nil {
		return res.fail(types.ReasonDecode, err)
	}

	sample := &types.Sample{
		ID:          uuid.NewString(),
		SourcePath:  unit.Path,
		Fingerprint: unit.Fingerprint,
		ModelLabel:  w.s.gen.ModelLabel(),
	}

	// Whitespace-only files are committed without turns so they are not
	// revisited on every run
	if strings.TrimSpace(text) == "" {
		sample.CreatedAt = time.Now()
		return res.commit(sample)
	}

	segments, err := w.s.chunker.Split(unit.Path, text, w.budget)
	if err != nil {
		return res.fail(types.ReasonBudget, err)
	}
	sample.SegmentCount = len(segments)

	var (
		turns   []types.ConversationTurn
		lastErr error
		seen    = make(map[string]bool)
	)
	for _, seg := range segments {
		if w.stopping() {
			return res.abandon()
		}
		if seg.LossySplit {
			sample.LossySplit = true
		}
		// Blank runs between code have nothing to ask about
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}

		questions, err := callGenerator(ctx, w, "question", func(ctx context.Context) ([]string, error) {
			return w.s.gen.Questions(ctx, seg, unit.SizeBytes)
		})
		if err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return res.deferFile()
			}
			res.failedCalls++
			lastErr = err
			w.s.logger.Debugw("question phase failed", "path", unit.Path, "segment", seg.Index, "error", err)
			continue
		}

		// A question repeated by a later segment is answered once
		unique := questions[:0:0]
		for _, q := range questions {
			key := strings.ToLower(q)
			if !seen[key] {
				seen[key] = true
				unique = append(unique, q)
			}
		}

		answers, errs := w.answerAll(ctx, seg, unique, unit.SizeBytes)
		for _, err := range errs {
			switch {
			case errors.Is(err, resilience.ErrCircuitOpen):
				return res.deferFile()
			case errors.Is(err, errStopped):
				return res.abandon()
			}
		}
		for i, q := range unique {
			if errs[i] != nil {
				res.failedCalls++
				lastErr = errs[i]
				w.s.logger.Debugw("answer phase failed", "path", unit.Path, "segment", seg.Index, "question", i, "error", errs[i])
				continue
			}
			turns = append(turns,
				types.ConversationTurn{Role: types.RoleAsker, Content: q, Metadata: turnMetadata(seg, i)},
				types.ConversationTurn{Role: types.RoleAnswerer, Content: answers[i], Metadata: turnMetadata(seg, i)},
			)
		}
	}

	if len(turns) == 0 && res.failedCalls > 0 {
		return res.fail(failureReason(lastErr), lastErr)
	}

	for i := range turns {
		turns[i].Index = i
		turns[i].SampleID = sample.ID
	}
	sample.Turns = turns
	sample.IsMultiTurn = len(turns) > 2
	sample.CreatedAt = time.Now()
	if err := sample.ValidateTurns(); err != nil {
		return res.fail(types.ReasonPermanent, fmt.Errorf("invalid turn sequence: %w", err))
	}
	return res.commit(sample)
}

// answerAll answers questions concurrently, bounded by the per-file limit.
// Results keep the order of questions.
func (w *fileWorker) answerAll(ctx context.Context, seg types.Segment, questions []string, fileSize int64) ([]string, []error) {
	answers := make([]string, len(questions))
	errs := make([]error, len(questions))

	var g errgroup.Group
	g.SetLimit(w.s.cfg.PerFileParallelism)
	for i, q := range questions {
		g.Go(func() error {
			if w.stopping() {
				errs[i] = errStopped
				return nil
			}
			answers[i], errs[i] = callGenerator(ctx, w, "answer", func(ctx context.Context) (string, error) {
				return w.s.gen.Answer(ctx, seg, q, fileSize)
			})
			return nil
		})
	}
	_ = g.Wait()
	return answers, errs
}

// callGenerator runs one generation call under the retry policy while
// holding a slot of the run-wide call limit
func callGenerator[T any](ctx context.Context, w *fileWorker, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.Do(ctx, w.s.policy, op, func(ctx context.Context) (T, error) {
		if err := w.calls.Acquire(ctx, 1); err != nil {
			var zero T
			return zero, err
		}
		defer w.calls.Release(1)
		return fn(ctx)
	})
}

func turnMetadata(seg types.Segment, question int) map[string]string {
	meta := map[string]string{
		"segment":       strconv.Itoa(seg.Index),
		"question":      strconv.Itoa(question),
		"segment_start": strconv.Itoa(seg.Start),
		"segment_end":   strconv.Itoa(seg.End),
	}
	if seg.LossySplit {
		meta["lossy_split"] = "true"
	}
	return meta
}

func failureReason(err error) types.FailureReason {
	if generation.IsTransient(err) {
		return types.ReasonTransientExhausted
	}
	return types.ReasonPermanent
}

func (r fileResult) commit(sample *types.Sample) fileResult {
	r.outcome = outcomeCommit
	r.sample = sample
	return r
}

func (r fileResult) fail(reason types.FailureReason, err error) fileResult {
	r.outcome = outcomeFailed
	r.reason = reason
	r.err = err
	return r
}

func (r fileResult) deferFile() fileResult {
	r.outcome = outcomeDeferred
	return r
}

func (r fileResult) abandon() fileResult {
	r.outcome = outcomeAbandoned
	return r
}
