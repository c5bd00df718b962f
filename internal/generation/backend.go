package generation

import "context"

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/dshills/qaforge/internal/generation Backend

// QuestionRequest asks the backend for questions about content
type QuestionRequest struct {
	Content     string
	Count       int
	Temperature float64
}

// QuestionResponse holds ordered questions; an empty list is valid
type QuestionResponse struct {
	Questions []string
}

// AnswerRequest asks the backend to answer one question using only Context
type AnswerRequest struct {
	Context   string
	Question  string
	MaxTokens int
}

// AnswerResponse holds the generated answer
type AnswerResponse struct {
	Answer string
}

// Backend is a concrete generative service. Implementations classify their
// failures with Transient/Permanent so callers can decide on retries.
type Backend interface {
	// Init prepares the backend for use (model discovery, warm-up)
	Init(ctx context.Context) error

	Questions(ctx context.Context, req QuestionRequest) (*QuestionResponse, error)
	Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error)

	// Name returns the backend identifier (e.g., "openai", "ollama")
	Name() string

	// Model returns the model label recorded on samples
	Model() string

	// Close releases any resources held by the backend
	Close() error
}
