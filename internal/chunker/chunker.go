package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/qaforge/internal/parser"
	"github.com/dshills/qaforge/pkg/types"
)

const (
	// DefaultBytesPerToken is the heuristic for estimating tokens (bytes/4)
	DefaultBytesPerToken = 4

	// DefaultMargin is the token reserve for prompt scaffolding
	DefaultMargin = 512

	// DefaultSlackRatio is the fraction of a segment, measured back from the
	// budget boundary, searched for a clean cut
	DefaultSlackRatio = 0.2
)

// Config tunes the chunker
type Config struct {
	BytesPerToken int
	Margin        int
	SlackRatio    float64
}

// DefaultConfig returns the stock chunker settings
func DefaultConfig() Config {
	return Config{
		BytesPerToken: DefaultBytesPerToken,
		Margin:        DefaultMargin,
		SlackRatio:    DefaultSlackRatio,
	}
}

// Chunker splits decoded file text into token-bounded segments
type Chunker struct {
	cfg    Config
	parser *parser.Parser
}

// New creates a Chunker with default settings
func New() *Chunker {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Chunker; zero fields fall back to defaults
func NewWithConfig(cfg Config) *Chunker {
	if cfg.BytesPerToken <= 0 {
		cfg.BytesPerToken = DefaultBytesPerToken
	}
	if cfg.Margin < 0 {
		cfg.Margin = DefaultMargin
	}
	if cfg.SlackRatio <= 0 || cfg.SlackRatio >= 1 {
		cfg.SlackRatio = DefaultSlackRatio
	}
	return &Chunker{cfg: cfg, parser: parser.New()}
}

// EstimateTokens returns ceil(len(s) / bytesPerToken)
func (c *Chunker) EstimateTokens(s string) int {
	return (len(s) + c.cfg.BytesPerToken - 1) / c.cfg.BytesPerToken
}

// SegmentLimit returns the per-segment token limit for a request budget
func (c *Chunker) SegmentLimit(budget int) (int, error) {
	limit := budget - c.cfg.Margin
	if limit*c.cfg.BytesPerToken < utf8.UTFMax {
		return 0, fmt.Errorf("%w: budget %d, margin %d", types.ErrBudgetTooTight, budget, c.cfg.Margin)
	}
	return limit, nil
}

// Split cuts text into ordered segments whose estimated token count never
// exceeds budget minus the margin. Concatenating the segment texts yields
// text exactly. Identical input always yields identical segments.
func (c *Chunker) Split(path, text string, budget int) ([]types.Segment, error) {
	limit, err := c.SegmentLimit(budget)
	if err != nil {
		return nil, err
	}
	maxBytes := limit * c.cfg.BytesPerToken

	if len(text) <= maxBytes {
		return []types.Segment{c.segment(0, text, 0, len(text), false)}, nil
	}

	structural := make(map[int]bool)
	for _, off := range c.parser.Boundaries(path, text) {
		structural[off] = true
	}

	slack := int(float64(maxBytes) * c.cfg.SlackRatio)
	if slack < 1 {
		slack = 1
	}

	var segments []types.Segment
	start := 0
	for start < len(text) {
		if len(text)-start <= maxBytes {
			segments = append(segments, c.segment(len(segments), text, start, len(text), false))
			break
		}

		hard := start + maxBytes
		for hard > start && !utf8.RuneStart(text[hard]) {
			hard--
		}
		if hard == start {
			// Not valid UTF-8; cut on bytes
			hard = start + maxBytes
		}

		low := hard - slack
		if low <= start {
			low = start + 1
		}

		cut := pickCut(text, low, hard, structural)
		if cut < 0 {
			cut = lastLineStart(text, start, low)
		}
		lossy := false
		if cut < 0 {
			// No line starts after start: the line itself exceeds the budget
			cut = hard
			lossy = true
		}

		segments = append(segments, c.segment(len(segments), text, start, cut, lossy))
		start = cut
	}

	return segments, nil
}

func (c *Chunker) segment(index int, text string, start, end int, lossy bool) types.Segment {
	body := text[start:end]
	return types.Segment{
		Index:           index,
		Text:            body,
		Start:           start,
		End:             end,
		EstimatedTokens: c.EstimateTokens(body),
		LossySplit:      lossy,
	}
}

// Cut preference, best first
const (
	tierStructural = iota // declaration/block start or after a blank line
	tierStatement         // after a line ending in a statement delimiter
	tierLine              // any line start
	tierCount
)

// pickCut returns the best line start in [low, hard], or -1. Within a tier the
// latest offset wins so segments stay as large as possible.
func pickCut(text string, low, hard int, structural map[int]bool) int {
	var best [tierCount]int
	for i := range best {
		best[i] = -1
	}

	for p := hard; p >= low; p-- {
		if text[p-1] != '\n' {
			continue
		}
		tier := classify(text, p, structural)
		if best[tier] < 0 {
			best[tier] = p
		}
		if tier == tierStructural {
			break
		}
	}

	for _, cut := range best {
		if cut >= 0 {
			return cut
		}
	}
	return -1
}

// lastLineStart returns the latest line start in (start, low), or -1
func lastLineStart(text string, start, low int) int {
	i := strings.LastIndexByte(text[start:low-1], '\n')
	if i < 0 {
		return -1
	}
	return start + i + 1
}

// classify ranks the line start p, where text[p-1] is a newline
func classify(text string, p int, structural map[int]bool) int {
	if structural[p] {
		return tierStructural
	}

	prevStart := strings.LastIndexByte(text[:p-1], '\n') + 1
	prev := strings.TrimRight(text[prevStart:p-1], " \t\r")
	if prev == "" {
		return tierStructural
	}

	switch prev[len(prev)-1] {
	case ';', '{', '}', ')', ']', ':':
		return tierStatement
	}
	return tierLine
}
