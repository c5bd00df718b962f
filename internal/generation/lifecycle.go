package generation

import (
	"context"
	"fmt"
	"sync"
)

// LifecycleState is the readiness of a backend
type LifecycleState int

const (
	StateUninitialized LifecycleState = iota
	StateReady
)

func (s LifecycleState) String() string {
	if s == StateReady {
		return "ready"
	}
	return "uninitialized"
}

// Lifecycle runs a backend's initialization at most once successfully.
// A failed initialization leaves it uninitialized so the next call retries.
type Lifecycle struct {
	init func(ctx context.Context) error

	mu    sync.Mutex
	state LifecycleState
}

// NewLifecycle wraps an initialization function
func NewLifecycle(init func(ctx context.Context) error) *Lifecycle {
	return &Lifecycle{init: init}
}

// EnsureReady initializes on first use and is a no-op afterwards. Concurrent
// callers wait for the in-progress initialization.
func (l *Lifecycle) EnsureReady(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateReady {
		return nil
	}
	if l.init != nil {
		if err := l.init(ctx); err != nil {
			return fmt.Errorf("failed to initialize backend: %w", err)
		}
	}
	l.state = StateReady
	return nil
}

// State returns the current lifecycle state
func (l *Lifecycle) State() LifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
