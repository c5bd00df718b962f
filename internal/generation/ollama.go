package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// OllamaBackend talks to a local Ollama server's native chat API
type OllamaBackend struct {
	transport *httpTransport
	prompts   *Prompts
	model     string

	mu            sync.RWMutex
	contextWindow int
}

// NewOllamaBackend creates a backend for an Ollama server at baseURL
func NewOllamaBackend(baseURL, model string, prompts *Prompts, requestsPerSecond float64) (*OllamaBackend, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidRequest)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: ollama requires a model", ErrInvalidRequest)
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &OllamaBackend{
		transport: newHTTPTransport(strings.TrimRight(baseURL, "/"), "", requestsPerSecond),
		prompts:   prompts,
		model:     model,
	}, nil
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Init checks that the model is available and reads its context length
func (b *OllamaBackend) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	var show struct {
		Parameters string         `json:"parameters"`
		ModelInfo  map[string]any `json:"model_info"`
	}
	if err := b.transport.do(ctx, "init", http.MethodPost, "/api/show", map[string]string{"model": b.model}, &show); err != nil {
		return err
	}

	window := parseNumCtx(show.Parameters)
	if window == 0 {
		for key, v := range show.ModelInfo {
			if strings.HasSuffix(key, ".context_length") {
				if f, ok := v.(float64); ok {
					window = int(f)
				}
			}
		}
	}

	b.mu.Lock()
	b.contextWindow = window
	b.mu.Unlock()
	return nil
}

// parseNumCtx reads "num_ctx <n>" from an Ollama parameters block
func parseNumCtx(params string) int {
	for _, line := range strings.Split(params, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "num_ctx" {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				return n
			}
		}
	}
	return 0
}

// ContextWindow returns the model's context length in tokens, or 0 when
// unknown or before Init
func (b *OllamaBackend) ContextWindow() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.contextWindow
}

func (b *OllamaBackend) Questions(ctx context.Context, req QuestionRequest) (*QuestionResponse, error) {
	user, err := b.prompts.QuestionUser(req)
	if err != nil {
		return nil, Permanent("question", err)
	}
	text, err := b.chat(ctx, "question", b.prompts.QuestionSystem, user, map[string]any{"temperature": req.Temperature})
	if err != nil {
		return nil, err
	}
	return &QuestionResponse{Questions: splitLines(text)}, nil
}

func (b *OllamaBackend) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	user, err := b.prompts.AnswerUser(req)
	if err != nil {
		return nil, Permanent("answer", err)
	}
	var opts map[string]any
	if req.MaxTokens > 0 {
		opts = map[string]any{"num_predict": req.MaxTokens}
	}
	text, err := b.chat(ctx, "answer", b.prompts.AnswerSystem, user, opts)
	if err != nil {
		return nil, err
	}
	return &AnswerResponse{Answer: strings.TrimSpace(text)}, nil
}

func (b *OllamaBackend) chat(ctx context.Context, op, system, user string, opts map[string]any) (string, error) {
	body := ollamaChatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  false,
		Options: opts,
	}

	var resp ollamaChatResponse
	if err := b.transport.do(ctx, op, http.MethodPost, "/api/chat", body, &resp); err != nil {
		return "", err
	}
	if !resp.Done {
		return "", Transient(op, errors.New("incomplete response"))
	}
	return resp.Message.Content, nil
}

func (b *OllamaBackend) Name() string {
	return BackendOllama
}

func (b *OllamaBackend) Model() string {
	return b.model
}

func (b *OllamaBackend) Close() error {
	b.transport.close()
	return nil
}
