package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/qaforge/pkg/types"
)

// Timeout defaults
const (
	DefaultPhaseTimeout = 300 * time.Second
	MaxPhaseTimeout     = 3600 * time.Second

	// timeoutReferenceSize is the file size at which scaling is neutral
	timeoutReferenceSize = 1 << 20
)

var errEmptyAnswer = errors.New("backend returned an empty answer")

// ClientConfig holds the per-call knobs of the two-phase protocol
type ClientConfig struct {
	QuestionsPerSegment int
	Temperature         float64
	MaxAnswerTokens     int
	QuestionTimeout     time.Duration
	AnswerTimeout       time.Duration
	ScaleTimeouts       bool
	Filter              QuestionFilter
	ModelLabel          string // overrides the backend's model name on samples
}

// DefaultClientConfig returns the configured defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		QuestionsPerSegment: 5,
		Temperature:         0.7,
		MaxAnswerTokens:     1024,
		QuestionTimeout:     DefaultPhaseTimeout,
		AnswerTimeout:       DefaultPhaseTimeout,
		ScaleTimeouts:       true,
		Filter:              DefaultQuestionFilter(),
	}
}

// Client runs the question and answer phases against an injected Backend.
// Each call is independent; the only state is the backend's readiness.
type Client struct {
	backend   Backend
	lifecycle *Lifecycle
	cfg       ClientConfig
	logger    *zap.SugaredLogger
}

// NewClient creates a client for backend
func NewClient(backend Backend, cfg ClientConfig, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.QuestionsPerSegment <= 0 {
		cfg.QuestionsPerSegment = DefaultClientConfig().QuestionsPerSegment
	}
	if cfg.QuestionTimeout <= 0 {
		cfg.QuestionTimeout = DefaultPhaseTimeout
	}
	if cfg.AnswerTimeout <= 0 {
		cfg.AnswerTimeout = DefaultPhaseTimeout
	}
	return &Client{
		backend:   backend,
		lifecycle: NewLifecycle(backend.Init),
		cfg:       cfg,
		logger:    logger,
	}
}

// EnsureReady initializes the backend on first use
func (c *Client) EnsureReady(ctx context.Context) error {
	if c.lifecycle.State() == StateReady {
		return nil
	}
	if err := c.lifecycle.EnsureReady(ctx); err != nil {
		return err
	}
	c.logger.Infow("generation backend ready", "backend", c.backend.Name(), "model", c.backend.Model())
	return nil
}

// State reports whether the backend has been initialized
func (c *Client) State() LifecycleState {
	return c.lifecycle.State()
}

// ModelLabel is the target-model label recorded on samples
func (c *Client) ModelLabel() string {
	if c.cfg.ModelLabel != "" {
		return c.cfg.ModelLabel
	}
	return c.backend.Model()
}

// ContextWindow returns the backend's reported context length, 0 if unknown
func (c *Client) ContextWindow() int {
	return ContextWindowOf(c.backend)
}

// Questions runs the question phase for one segment. fileSize scales the
// timeout. An empty result is valid.
func (c *Client) Questions(ctx context.Context, seg types.Segment, fileSize int64) ([]string, error) {
	if strings.TrimSpace(seg.Text) == "" {
		return nil, Permanent("question", fmt.Errorf("%w: empty segment", ErrInvalidRequest))
	}

	var raw []string
	timeout := c.timeout(c.cfg.QuestionTimeout, fileSize)
	err := c.invoke(ctx, "question", timeout, func(ctx context.Context) error {
		resp, err := c.backend.Questions(ctx, QuestionRequest{
			Content:     seg.Text,
			Count:       c.cfg.QuestionsPerSegment,
			Temperature: c.cfg.Temperature,
		})
		if err != nil {
			return err
		}
		raw = resp.Questions
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ParseQuestions(strings.Join(raw, "\n"), c.cfg.QuestionsPerSegment, c.cfg.Filter), nil
}

// Answer runs the answer phase for one question, with the segment text as
// the only context
func (c *Client) Answer(ctx context.Context, seg types.Segment, question string, fileSize int64) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", Permanent("answer", fmt.Errorf("%w: empty question", ErrInvalidRequest))
	}

	var answer string
	timeout := c.timeout(c.cfg.AnswerTimeout, fileSize)
	err := c.invoke(ctx, "answer", timeout, func(ctx context.Context) error {
		resp, err := c.backend.Answer(ctx, AnswerRequest{
			Context:   seg.Text,
			Question:  question,
			MaxTokens: c.cfg.MaxAnswerTokens,
		})
		if err != nil {
			return err
		}
		answer = strings.TrimSpace(resp.Answer)
		return nil
	})
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", Permanent("answer", errEmptyAnswer)
	}
	return answer, nil
}

// invoke runs fn under the phase timeout and makes sure the returned error
// is classified. Cancellation of ctx itself is returned unchanged.
func (c *Client) invoke(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	if err := c.EnsureReady(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(ctx, "init", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if callCtx.Err() != nil && !IsTransient(err) {
		return Transient(op, fmt.Errorf("timed out after %s: %w", timeout, err))
	}
	return classify(ctx, op, err)
}

func classify(ctx context.Context, op string, err error) error {
	if IsTransient(err) || IsPermanent(err) {
		return err
	}
	return TransportError(ctx, op, err)
}

func (c *Client) timeout(base time.Duration, fileSize int64) time.Duration {
	if !c.cfg.ScaleTimeouts {
		return base
	}
	return ScaledTimeout(base, fileSize)
}

// ScaledTimeout grows base with the square root of the file size relative to
// 1 MiB. The result is never below base and never above MaxPhaseTimeout
// unless base itself is larger.
func ScaledTimeout(base time.Duration, fileSize int64) time.Duration {
	if fileSize <= timeoutReferenceSize {
		return base
	}
	scaled := time.Duration(float64(base) * math.Sqrt(float64(fileSize)/timeoutReferenceSize))
	if scaled > MaxPhaseTimeout {
		scaled = MaxPhaseTimeout
	}
	if scaled < base {
		return base
	}
	return scaled
}

// Backend returns the injected backend
func (c *Client) Backend() Backend {
	return c.backend
}

// Close releases the backend
func (c *Client) Close() error {
	return c.backend.Close()
}
