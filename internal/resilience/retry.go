package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxAttempts int           // total attempts per operation, first call included
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap for any single delay
	Multiplier  float64       // backoff growth per attempt
	Jitter      float64       // +/- fraction applied to each delay
}

// DefaultRetryConfig returns the stock retry settings
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Policy retries retryable failures and routes every attempt through a Breaker
type Policy struct {
	cfg       RetryConfig
	breaker   *Breaker
	retryable func(error) bool
	logger    *zap.SugaredLogger

	sleep  func(ctx context.Context, d time.Duration) error
	random func() float64
}

// NewPolicy creates a Policy. retryable decides which errors are transient;
// only those are retried and only those count against the breaker.
func NewPolicy(cfg RetryConfig, breaker *Breaker, retryable func(error) bool, logger *zap.SugaredLogger) *Policy {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = def.Jitter
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	return &Policy{
		cfg:       cfg,
		breaker:   breaker,
		retryable: retryable,
		logger:    logger,
		sleep:     sleepCtx,
		random:    rand.Float64,
	}
}

// Breaker returns the breaker shared by this policy
func (p *Policy) Breaker() *Breaker {
	return p.breaker
}

// Do runs fn under the policy. Breaker rejections return immediately without
// calling fn. Non-retryable errors return after one attempt. Exhausted
// retries return the last error wrapped with the attempt count.
func Do[T any](ctx context.Context, p *Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if p.breaker != nil {
			if err := p.breaker.Allow(); err != nil {
				return zero, err
			}
		}

		result, err := fn(ctx)
		p.record(ctx, err)
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil || !p.retryable(err) {
			return zero, err
		}
		if attempt >= p.cfg.MaxAttempts {
			return zero, fmt.Errorf("%s failed after %d attempts: %w", op, attempt, err)
		}

		delay := p.backoff(attempt)
		p.logger.Debugw("retrying after transient failure",
			"op", op, "attempt", attempt, "delay", delay, "error", err)
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func (p *Policy) record(ctx context.Context, err error) {
	if p.breaker == nil {
		return
	}
	switch {
	case err == nil:
		p.breaker.Success()
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		p.breaker.Release()
	case p.retryable(err):
		p.breaker.Failure()
	default:
		// The backend answered; the request itself was bad
		p.breaker.Success()
	}
}

// backoff returns the delay after the given failed attempt
func (p *Policy) backoff(attempt int) time.Duration {
	d := float64(p.cfg.BaseDelay) * math.Pow(p.cfg.Multiplier, float64(attempt-1))
	if p.cfg.Jitter > 0 {
		d *= 1 + p.cfg.Jitter*(2*p.random()-1)
	}
	if d > float64(p.cfg.MaxDelay) {
		d = float64(p.cfg.MaxDelay)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
