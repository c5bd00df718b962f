package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileUnit(t *testing.T) {
	u := NewFileUnit("./internal/../pkg/a.go", []byte("package a\n"), "utf-8")
	assert.Equal(t, "pkg/a.go", u.Path)
	assert.Equal(t, int64(10), u.SizeBytes)
	assert.Len(t, u.Fingerprint, 64)
	assert.Equal(t, Fingerprint([]byte("package a\n")), u.Fingerprint)
	assert.NotEqual(t, u.Fingerprint, Fingerprint([]byte("package b\n")))
}

func TestSample_ValidateTurns(t *testing.T) {
	valid := &Sample{Turns: []ConversationTurn{
		{Index: 0, Role: RoleAsker},
		{Index: 1, Role: RoleAnswerer},
		{Index: 2, Role: RoleAsker},
		{Index: 3, Role: RoleAnswerer},
	}}
	require.NoError(t, valid.ValidateTurns())
	assert.Equal(t, 2, valid.QuestionCount())
	require.NoError(t, (&Sample{}).ValidateTurns())

	tests := []struct {
		name  string
		turns []ConversationTurn
	}{
		{"gap in indices", []ConversationTurn{{Index: 0, Role: RoleAsker}, {Index: 2, Role: RoleAnswerer}}},
		{"starts with answer", []ConversationTurn{{Index: 0, Role: RoleAnswerer}, {Index: 1, Role: RoleAsker}}},
		{"two askers", []ConversationTurn{{Index: 0, Role: RoleAsker}, {Index: 1, Role: RoleAsker}}},
		{"dangling question", []ConversationTurn{{Index: 0, Role: RoleAsker}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, (&Sample{Turns: tt.turns}).ValidateTurns())
		})
	}
}

func TestProgressCursor(t *testing.T) {
	c := NewProgressCursor("run-1", []string{"b.go", "a.go"})
	assert.Equal(t, []string{"a.go", "b.go"}, c.PendingPaths())
	assert.False(t, c.Done())

	c.MarkAttempted("a.go", "fp-a")
	c.AddPending("a.go", "fp-a")
	c.AddPending("c.go", "fp-c")
	assert.Equal(t, []string{"b.go", "c.go"}, c.PendingPaths())
	assert.Equal(t, []string{"a.go"}, c.AttemptedPaths())
	assert.True(t, c.Committed("a.go", "fp-a"))
}

func TestProgressCursor_ReadmitsChangedAndFailed(t *testing.T) {
	c := NewProgressCursor("run-1", []string{"a.go", "b.go"})
	c.MarkAttempted("a.go", "fp-a1")
	c.MarkAttempted("b.go", "")
	require.Empty(t, c.PendingPaths())

	// a.go was edited after its commit; b.go failed
	c.AddPending("a.go", "fp-a2")
	c.AddPending("b.go", "fp-b")
	assert.Equal(t, []string{"a.go", "b.go"}, c.PendingPaths())
	assert.Empty(t, c.AttemptedPaths())
	assert.False(t, c.Committed("a.go", "fp-a1"))
	assert.False(t, c.Committed("b.go", ""))
}

func TestFailureReason_RetryEligible(t *testing.T) {
	assert.True(t, ReasonTransientExhausted.RetryEligible())
	assert.False(t, ReasonPermanent.RetryEligible())
	assert.False(t, ReasonDecode.RetryEligible())
	assert.False(t, ReasonBudget.RetryEligible())
}

func TestSegment_Validate(t *testing.T) {
	ok := Segment{Index: 0, Text: "abc", Start: 3, End: 6}
	require.NoError(t, ok.Validate())

	bad := Segment{Index: 0, Text: "abc", Start: 3, End: 5}
	assert.Error(t, bad.Validate())
	neg := Segment{Index: -1}
	assert.Error(t, neg.Validate())
}
