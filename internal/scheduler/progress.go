package scheduler

import (
	"sync/atomic"
	"time"
)

// Progress tracks a run with atomic counters so it can be read while the
// run is active
type Progress struct {
	runID     string
	mode      string
	startedAt time.Time

	total     atomic.Int32
	skipped   atomic.Int32
	processed atomic.Int32
	failed    atomic.Int32
	deferred  atomic.Int32
	abandoned atomic.Int32
	inFlight  atomic.Int32
	turns     atomic.Int64
	paused    atomic.Bool
	done      atomic.Bool
	endedAt   atomic.Int64 // unix nanos, set when done
}

func newProgress(runID, mode string, total, skipped int) *Progress {
	p := &Progress{runID: runID, mode: mode, startedAt: time.Now()}
	p.total.Store(int32(total))
	p.skipped.Store(int32(skipped))
	return p
}

func (p *Progress) finish() {
	p.endedAt.Store(time.Now().UnixNano())
	p.done.Store(true)
}

// Snapshot is a point-in-time copy of Progress
type Snapshot struct {
	RunID     string     `json:"run_id"`
	Mode      string     `json:"mode"`
	Running   bool       `json:"running"`
	Paused    bool       `json:"paused"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Total     int        `json:"total"`
	Skipped   int        `json:"skipped"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
	Deferred  int        `json:"deferred"`
	Abandoned int        `json:"abandoned"`
	InFlight  int        `json:"in_flight"`
	Turns     int64      `json:"turns"`
}

// Snapshot copies the current counters
func (p *Progress) Snapshot() Snapshot {
	s := Snapshot{
		RunID:     p.runID,
		Mode:      p.mode,
		Running:   !p.done.Load(),
		Paused:    p.paused.Load(),
		StartedAt: p.startedAt,
		Total:     int(p.total.Load()),
		Skipped:   int(p.skipped.Load()),
		Processed: int(p.processed.Load()),
		Failed:    int(p.failed.Load()),
		Deferred:  int(p.deferred.Load()),
		Abandoned: int(p.abandoned.Load()),
		InFlight:  int(p.inFlight.Load()),
		Turns:     p.turns.Load(),
	}
	if p.done.Load() {
		ended := time.Unix(0, p.endedAt.Load())
		s.EndedAt = &ended
	}
	return s
}
