package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/qaforge/pkg/types"
)

func join(segments []types.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestNew(t *testing.T) {
	c := New()
	assert.NotNil(t, c)
	assert.Equal(t, 3, c.EstimateTokens("0123456789"))
	assert.Equal(t, 0, c.EstimateTokens(""))
}

func TestSplit_UnderBudget(t *testing.T) {
	c := New()
	text := "package a\n\nfunc A() {}\n"

	segments, err := c.Split("a.go", text, 4096)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, text, segments[0].Text)
	assert.Equal(t, 0, segments[0].Start)
	assert.Equal(t, len(text), segments[0].End)
	assert.False(t, segments[0].LossySplit)
}

func TestSplit_Empty(t *testing.T) {
	segments, err := New().Split("a.go", "", 4096)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Empty(t, segments[0].Text)
}

func TestSplit_LargeFile(t *testing.T) {
	c := New()
	line := "\tresult := compute(alpha, beta, gamma) // keep going\n"
	var b strings.Builder
	for b.Len() < 40000 {
		b.WriteString(line)
	}
	text := b.String()
	require.GreaterOrEqual(t, c.EstimateTokens(text), 10000)

	const budget = 4096
	segments, err := c.Split("big.txt", text, budget)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(segments), 3)
	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
		assert.LessOrEqual(t, seg.EstimatedTokens, budget-DefaultMargin)
		assert.False(t, seg.LossySplit)
		assert.True(t, strings.HasSuffix(seg.Text, "\n"), "segment %d should end on a line boundary", i)
		require.NoError(t, seg.Validate())
	}
	assert.Equal(t, text, join(segments))
}

func TestSplit_Deterministic(t *testing.T) {
	c := New()
	text := strings.Repeat("fmt.Println(\"x\")\n\n", 3000)

	first, err := c.Split("a.go", text, 2048)
	require.NoError(t, err)
	second, err := c.Split("a.go", text, 2048)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplit_PrefersBlankLine(t *testing.T) {
	c := NewWithConfig(Config{BytesPerToken: 1, Margin: 0, SlackRatio: 0.5})
	text := "aaaa\nbbbb\n\ncccc\ndddd\neeee\n"

	segments, err := c.Split("notes.txt", text, 20)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "aaaa\nbbbb\n\n", segments[0].Text)
	assert.Equal(t, text, join(segments))
}

func TestSplit_PrefersStatementDelimiter(t *testing.T) {
	c := NewWithConfig(Config{BytesPerToken: 1, Margin: 0, SlackRatio: 0.5})
	text := "xx{\nyyyy;\nzzzzz\nwwwwwwwww\n"

	segments, err := c.Split("main.c", text, 20)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "xx{\nyyyy;\n", segments[0].Text)
}

func TestSplit_LossyLongLine(t *testing.T) {
	c := New()
	text := strings.Repeat("a", 20000)

	segments, err := c.Split("min.js", text, 1024)
	require.NoError(t, err)
	require.Len(t, segments, 10)

	for _, seg := range segments[:len(segments)-1] {
		assert.True(t, seg.LossySplit)
		assert.LessOrEqual(t, seg.EstimatedTokens, 1024-DefaultMargin)
	}
	assert.False(t, segments[len(segments)-1].LossySplit)
	assert.Equal(t, text, join(segments))
}

func TestSplit_LongLinesStayLineAligned(t *testing.T) {
	c := NewWithConfig(Config{BytesPerToken: 1, Margin: 0, SlackRatio: 0.2})
	line := strings.Repeat("a", 699) + "\n"
	text := strings.Repeat(line, 5)

	segments, err := c.Split("wide.txt", text, 1000)
	require.NoError(t, err)
	require.Len(t, segments, 5)

	for _, seg := range segments {
		assert.False(t, seg.LossySplit)
		assert.Equal(t, line, seg.Text)
		assert.Zero(t, seg.Start%len(line))
	}
	assert.Equal(t, text, join(segments))
}

func TestSplit_RuneBoundary(t *testing.T) {
	c := NewWithConfig(Config{BytesPerToken: 1, Margin: 0})
	text := strings.Repeat("é", 100)

	segments, err := c.Split("accents.txt", text, 11)
	require.NoError(t, err)
	for _, seg := range segments {
		assert.True(t, utf8.ValidString(seg.Text))
		assert.LessOrEqual(t, len(seg.Text), 11)
	}
	assert.Equal(t, text, join(segments))
}

func TestSplit_BudgetTooTight(t *testing.T) {
	_, err := New().Split("a.go", "package a\n", 100)
	assert.ErrorIs(t, err, types.ErrBudgetTooTight)
}
