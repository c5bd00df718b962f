package types

import (
	"sort"
	"time"
)

// ProgressCursor tracks which paths a run has attempted and which remain
// pending. It is owned by a single goroutine; it is not safe for concurrent use.
type ProgressCursor struct {
	RunID       string
	StartedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time

	// Attempted maps each settled path to the fingerprint of the content its
	// sample was committed for. A failed attempt maps to "".
	Attempted map[string]string
	Pending   map[string]bool
}

// NewProgressCursor creates a cursor for a fresh run over paths
func NewProgressCursor(runID string, paths []string) *ProgressCursor {
	now := time.Now()
	c := &ProgressCursor{
		RunID:     runID,
		StartedAt: now,
		UpdatedAt: now,
		Attempted: make(map[string]string),
		Pending:   make(map[string]bool, len(paths)),
	}
	for _, p := range paths {
		c.Pending[p] = true
	}
	return c
}

// MarkAttempted moves path from pending to attempted. fingerprint is the
// committed content's fingerprint, or "" when the attempt failed.
func (c *ProgressCursor) MarkAttempted(path, fingerprint string) {
	delete(c.Pending, path)
	c.Attempted[path] = fingerprint
	c.UpdatedAt = time.Now()
}

// Committed reports whether this run already committed path at fingerprint
func (c *ProgressCursor) Committed(path, fingerprint string) bool {
	fp, ok := c.Attempted[path]
	return ok && fp != "" && fp == fingerprint
}

// AddPending registers path as pending unless this run already committed it
// at fingerprint. A failed or since-modified path is moved back to pending.
func (c *ProgressCursor) AddPending(path, fingerprint string) {
	if c.Committed(path, fingerprint) {
		return
	}
	delete(c.Attempted, path)
	c.Pending[path] = true
}

// Done reports whether the cursor belongs to a finished run
func (c *ProgressCursor) Done() bool {
	return c.CompletedAt != nil
}

// PendingPaths returns pending paths in sorted order
func (c *ProgressCursor) PendingPaths() []string {
	return sortedKeys(c.Pending)
}

// AttemptedPaths returns attempted paths in sorted order
func (c *ProgressCursor) AttemptedPaths() []string {
	return sortedKeys(c.Attempted)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
