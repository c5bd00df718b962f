package types

import (
	"errors"
	"fmt"
)

// Segment is a token-bounded slice of a file's decoded text. Segments are
// never persisted.
type Segment struct {
	Index int
	Text  string

	// Start and End are byte offsets into the decoded text
	Start int
	End   int

	EstimatedTokens int

	// LossySplit marks a segment that ends mid-line because a single line
	// exceeded the budget
	LossySplit bool
}

// Validate checks the segment's offsets against its text
func (s *Segment) Validate() error {
	if s.Index < 0 {
		return errors.New("segment index must be non-negative")
	}
	if s.Start < 0 || s.End < s.Start {
		return fmt.Errorf("invalid segment offsets [%d,%d)", s.Start, s.End)
	}
	if s.End-s.Start != len(s.Text) {
		return fmt.Errorf("segment %d length %d does not match offsets [%d,%d)", s.Index, len(s.Text), s.Start, s.End)
	}
	return nil
}
