package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, vLLM, LM Studio, llama.cpp server).
type OpenAIBackend struct {
	transport *httpTransport
	prompts   *Prompts

	mu    sync.RWMutex
	model string
}

// NewOpenAIBackend creates a backend for baseURL (without the /v1 suffix)
func NewOpenAIBackend(baseURL, apiKey, model string, prompts *Prompts, requestsPerSecond float64) (*OpenAIBackend, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidRequest)
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &OpenAIBackend{
		transport: newHTTPTransport(strings.TrimRight(baseURL, "/"), apiKey, requestsPerSecond),
		prompts:   prompts,
		model:     model,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Init lists the served models. When the configured model is unset or not
// served, the first listed model is used instead.
func (o *OpenAIBackend) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := o.transport.do(ctx, "init", http.MethodGet, "/v1/models", nil, &listing); err != nil {
		return err
	}
	if len(listing.Data) == 0 {
		return Permanent("init", errors.New("backend serves no models"))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range listing.Data {
		if m.ID == o.model {
			return nil
		}
	}
	o.model = listing.Data[0].ID
	return nil
}

func (o *OpenAIBackend) Questions(ctx context.Context, req QuestionRequest) (*QuestionResponse, error) {
	user, err := o.prompts.QuestionUser(req)
	if err != nil {
		return nil, Permanent("question", err)
	}
	text, err := o.chat(ctx, "question", o.prompts.QuestionSystem, user, req.Temperature, 0)
	if err != nil {
		return nil, err
	}
	return &QuestionResponse{Questions: splitLines(text)}, nil
}

func (o *OpenAIBackend) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	user, err := o.prompts.AnswerUser(req)
	if err != nil {
		return nil, Permanent("answer", err)
	}
	text, err := o.chat(ctx, "answer", o.prompts.AnswerSystem, user, 0, req.MaxTokens)
	if err != nil {
		return nil, err
	}
	return &AnswerResponse{Answer: strings.TrimSpace(text)}, nil
}

func (o *OpenAIBackend) chat(ctx context.Context, op, system, user string, temperature float64, maxTokens int) (string, error) {
	body := openAIChatRequest{
		Model: o.Model(),
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var resp openAIChatResponse
	if err := o.transport.do(ctx, op, http.MethodPost, "/v1/chat/completions", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", Transient(op, errors.New("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIBackend) Name() string {
	return BackendOpenAI
}

func (o *OpenAIBackend) Model() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.model
}

func (o *OpenAIBackend) Close() error {
	o.transport.close()
	return nil
}

// splitLines returns the non-empty trimmed lines of text
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
