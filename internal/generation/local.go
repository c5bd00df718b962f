package generation

import (
	"context"
	"fmt"
	"strings"
)

// LocalBackend is an offline backend that derives questions and answers
// directly from the segment text. Output is deterministic, which makes it
// useful for dry runs and pipeline tests; it carries no model quality.
type LocalBackend struct{}

// NewLocalBackend creates an offline backend
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (l *LocalBackend) Init(ctx context.Context) error {
	return nil
}

func (l *LocalBackend) Questions(ctx context.Context, req QuestionRequest) (*QuestionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var questions []string
	for _, line := range strings.Split(req.Content, "\n") {
		if req.Count > 0 && len(questions) >= req.Count {
			break
		}
		line = strings.TrimSpace(line)
		if len(line) < 8 || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) > 120 {
			line = line[:120]
		}
		questions = append(questions, fmt.Sprintf("What is the purpose of `%s` in this code?", line))
	}
	return &QuestionResponse{Questions: questions}, nil
}

func (l *LocalBackend) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	excerpt := req.Context
	if req.MaxTokens > 0 && len(excerpt) > req.MaxTokens*4 {
		excerpt = excerpt[:req.MaxTokens*4]
	}
	return &AnswerResponse{
		Answer: fmt.Sprintf("The question %q refers to the following source:\n\n%s", req.Question, excerpt),
	}, nil
}

func (l *LocalBackend) Name() string {
	return BackendLocal
}

func (l *LocalBackend) Model() string {
	return "local-extractive"
}

func (l *LocalBackend) Close() error {
	return nil
}
