package generation

import (
	"fmt"
	"strings"
)

// Backend identifiers
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendLocal  = "local"
)

// BackendConfig selects and configures a concrete backend
type BackendConfig struct {
	Backend           string
	BaseURL           string
	APIKey            string
	Model             string
	PromptDir         string
	Theme             string
	RequestsPerSecond float64
	QuestionCacheSize int // 0 disables the question cache
}

// NewBackend creates the backend named by cfg.Backend
func NewBackend(cfg BackendConfig) (Backend, error) {
	prompts, err := LoadPrompts(cfg.PromptDir, cfg.Theme)
	if err != nil {
		return nil, err
	}

	var backend Backend
	switch strings.ToLower(cfg.Backend) {
	case BackendOpenAI:
		backend, err = NewOpenAIBackend(cfg.BaseURL, cfg.APIKey, cfg.Model, prompts, cfg.RequestsPerSecond)
	case BackendOllama:
		backend, err = NewOllamaBackend(cfg.BaseURL, cfg.Model, prompts, cfg.RequestsPerSecond)
	case BackendLocal:
		backend = NewLocalBackend()
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidRequest, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.QuestionCacheSize > 0 {
		return NewCachedBackend(backend, cfg.QuestionCacheSize), nil
	}
	return backend, nil
}

type contextWindower interface {
	ContextWindow() int
}

type unwrapper interface {
	Unwrap() Backend
}

// ContextWindowOf returns the context length reported by b or by a backend it
// wraps, or 0 when none is known
func ContextWindowOf(b Backend) int {
	for b != nil {
		if cw, ok := b.(contextWindower); ok {
			return cw.ContextWindow()
		}
		u, ok := b.(unwrapper)
		if !ok {
			return 0
		}
		b = u.Unwrap()
	}
	return 0
}
