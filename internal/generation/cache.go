package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultQuestionCacheSize is used when a non-positive size is given
const DefaultQuestionCacheSize = 256

// CachedBackend memoizes question-phase responses by request content.
// Identical segments (vendored copies, generated files) are asked once per
// process. Answers are not cached. Only successful responses are stored.
type CachedBackend struct {
	Backend
	cache *lru.Cache[string, []string]
}

// NewCachedBackend wraps inner with a question LRU of the given size
func NewCachedBackend(inner Backend, size int) *CachedBackend {
	if size <= 0 {
		size = DefaultQuestionCacheSize
	}
	cache, err := lru.New[string, []string](size)
	if err != nil {
		// Only fails for non-positive sizes
		cache, _ = lru.New[string, []string](DefaultQuestionCacheSize)
	}
	return &CachedBackend{Backend: inner, cache: cache}
}

func (c *CachedBackend) Questions(ctx context.Context, req QuestionRequest) (*QuestionResponse, error) {
	key := questionKey(c.Backend.Model(), req)
	if qs, ok := c.cache.Get(key); ok {
		return &QuestionResponse{Questions: append([]string(nil), qs...)}, nil
	}

	resp, err := c.Backend.Questions(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]string(nil), resp.Questions...))
	return resp, nil
}

// Len returns the number of cached question lists
func (c *CachedBackend) Len() int {
	return c.cache.Len()
}

func questionKey(model string, req QuestionRequest) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\x00%d\x00%s\x00", model, req.Count, strconv.FormatFloat(req.Temperature, 'f', -1, 64))
	_, _ = h.Write([]byte(req.Content))
	return hex.EncodeToString(h.Sum(nil))
}

// Unwrap returns the wrapped backend
func (c *CachedBackend) Unwrap() Backend {
	return c.Backend
}
