package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is a circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned instead of calling the backend while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError reports a rejected call. It matches ErrCircuitOpen.
type OpenError struct {
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open, retry after %s", e.RetryAfter.Round(time.Millisecond))
}

// Is reports whether target is ErrCircuitOpen
func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// BreakerConfig configures trip and cool-down behavior
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the breaker
	Cooldown         time.Duration // first open interval
	MaxCooldown      time.Duration // cap for repeated re-opens
}

// DefaultBreakerConfig returns the stock breaker settings
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		MaxCooldown:      10 * time.Minute,
	}
}

// Breaker is a consecutive-failure circuit breaker shared by all operations
// against one backend. It is safe for concurrent use.
type Breaker struct {
	cfg    BreakerConfig
	logger *zap.SugaredLogger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	cooldown time.Duration
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker
func NewBreaker(cfg BreakerConfig, logger *zap.SugaredLogger) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.MaxCooldown < cfg.Cooldown {
		cfg.MaxCooldown = cfg.Cooldown
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Breaker{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		state:    StateClosed,
		cooldown: cfg.Cooldown,
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow admits a call or returns an *OpenError. Once the cool-down has
// elapsed a single probe is admitted; concurrent callers keep failing fast
// until the probe reports back.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.cooldown {
			return &OpenError{RetryAfter: b.cooldown - elapsed}
		}
		b.logger.Infow("circuit breaker half-open, probing backend", "cooldown", b.cooldown)
		b.state = StateHalfOpen
		b.probing = true
		return nil
	default:
		if b.probing {
			return &OpenError{}
		}
		b.probing = true
		return nil
	}
}

// Success records a healthy backend response
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.logger.Infow("circuit breaker closed after successful probe")
		b.cooldown = b.cfg.Cooldown
	}
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// Failure records a transient backend failure
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.cooldown *= 2
		if b.cooldown > b.cfg.MaxCooldown {
			b.cooldown = b.cfg.MaxCooldown
		}
		b.trip()
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

// Release gives up an admitted call without a verdict, e.g. on cancellation
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// trip opens the breaker; callers hold mu
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.probing = false
	b.logger.Warnw("circuit breaker opened",
		"consecutive_failures", b.failures,
		"cooldown", b.cooldown)
}
