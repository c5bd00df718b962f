package scheduler

import (
	"errors"
	"sync/atomic"
)

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// RunLock allows at most one pipeline run per process without blocking the
// caller that loses the race
type RunLock struct {
	state atomic.Int32 // 0 = idle, 1 = running
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *RunLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *RunLock) Release() {
	l.state.Store(0)
}

// Held reports whether a run currently holds the lock
func (l *RunLock) Held() bool {
	return l.state.Load() == 1
}
