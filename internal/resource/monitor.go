package resource

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Monitor reports whether the machine has enough resources to admit more work
type Monitor interface {
	Sufficient(ctx context.Context) bool
}

// MonitorFunc adapts a function to Monitor
type MonitorFunc func(ctx context.Context) bool

func (f MonitorFunc) Sufficient(ctx context.Context) bool {
	return f(ctx)
}

// Always is a Monitor that never pauses admission
var Always Monitor = MonitorFunc(func(context.Context) bool { return true })

// All is sufficient only when every monitor is. Nil monitors are ignored.
func All(monitors ...Monitor) Monitor {
	var active []Monitor
	for _, m := range monitors {
		if m != nil {
			active = append(active, m)
		}
	}
	if len(active) == 0 {
		return Always
	}
	return MonitorFunc(func(ctx context.Context) bool {
		ok := true
		// Every monitor is sampled so each keeps its own hysteresis state current
		for _, m := range active {
			if !m.Sufficient(ctx) {
				ok = false
			}
		}
		return ok
	})
}

// Heap pauses admission while the Go heap is above a ceiling
type Heap struct {
	maxBytes uint64
	logger   *zap.SugaredLogger

	readHeap func() uint64

	mu   sync.Mutex
	over bool
}

// NewHeap creates a heap monitor. maxMB <= 0 disables the ceiling.
func NewHeap(maxMB int, logger *zap.SugaredLogger) *Heap {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	var maxBytes uint64
	if maxMB > 0 {
		maxBytes = uint64(maxMB) << 20
	}
	return &Heap{
		maxBytes: maxBytes,
		logger:   logger,
		readHeap: func() uint64 {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return ms.HeapAlloc
		},
	}
}

func (h *Heap) Sufficient(ctx context.Context) bool {
	if h.maxBytes == 0 {
		return true
	}
	alloc := h.readHeap()
	over := alloc > h.maxBytes

	h.mu.Lock()
	defer h.mu.Unlock()
	if over != h.over {
		if over {
			h.logger.Warnw("heap above ceiling, pausing admission", "heap_mb", alloc>>20, "max_mb", h.maxBytes>>20)
		} else {
			h.logger.Infow("heap below ceiling, resuming admission", "heap_mb", alloc>>20)
		}
		h.over = over
	}
	return !over
}
