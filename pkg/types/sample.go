package types

import (
	"fmt"
	"time"
)

// Role identifies the speaker of a ConversationTurn
type Role string

const (
	RoleAsker    Role = "asker"
	RoleAnswerer Role = "answerer"
)

// Sample is the Q&A output for one source file. It is immutable once committed.
type Sample struct {
	ID           string
	SourcePath   string
	Fingerprint  string
	CreatedAt    time.Time
	ModelLabel   string
	QualityScore *float64 // placeholder, unset by the pipeline
	IsMultiTurn  bool
	SegmentCount int
	LossySplit   bool

	Turns []ConversationTurn
}

// ConversationTurn is one ordered message inside a Sample
type ConversationTurn struct {
	ID       int64
	SampleID string
	Index    int
	Role     Role
	Content  string
	Metadata map[string]string
}

// ValidateTurns checks that turn indices are contiguous from zero and that
// roles alternate asker/answerer starting with the asker.
func (s *Sample) ValidateTurns() error {
	for i, turn := range s.Turns {
		if turn.Index != i {
			return fmt.Errorf("turn %d has index %d", i, turn.Index)
		}
		want := RoleAsker
		if i%2 == 1 {
			want = RoleAnswerer
		}
		if turn.Role != want {
			return fmt.Errorf("turn %d has role %q, want %q", i, turn.Role, want)
		}
	}
	if len(s.Turns)%2 != 0 {
		return fmt.Errorf("sample has %d turns, want an even count", len(s.Turns))
	}
	return nil
}

// QuestionCount returns the number of answered questions in the sample
func (s *Sample) QuestionCount() int {
	return len(s.Turns) / 2
}
