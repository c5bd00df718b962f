package generation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed prompts/*.txt
var defaultPrompts embed.FS

// Prompt file names, shared by the embedded defaults and theme directories
const (
	PromptQuestionSystem = "question_system"
	PromptQuestionUser   = "question_user"
	PromptAnswerSystem   = "answer_system"
	PromptAnswerUser     = "answer_user"
)

var promptNames = []string{PromptQuestionSystem, PromptQuestionUser, PromptAnswerSystem, PromptAnswerUser}

// Prompts holds the four prompt templates used by chat backends
type Prompts struct {
	QuestionSystem string
	questionUser   *template.Template
	AnswerSystem   string
	answerUser     *template.Template
}

// DefaultPrompts returns the embedded prompt set
func DefaultPrompts() *Prompts {
	p, err := LoadPrompts("", "")
	if err != nil {
		// The embedded templates are fixed at build time
		panic(err)
	}
	return p
}

// LoadPrompts builds a prompt set. Files in dir/theme named after the prompt
// (e.g. question_user.txt) override the embedded defaults one by one.
func LoadPrompts(dir, theme string) (*Prompts, error) {
	texts := make(map[string]string, len(promptNames))
	for _, name := range promptNames {
		b, err := defaultPrompts.ReadFile("prompts/" + name + ".txt")
		if err != nil {
			return nil, fmt.Errorf("failed to read default prompt %s: %w", name, err)
		}
		texts[name] = strings.TrimSpace(string(b))

		if dir == "" {
			continue
		}
		override := filepath.Join(dir, theme, name+".txt")
		b, err = os.ReadFile(override)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt %s: %w", override, err)
		}
		texts[name] = strings.TrimSpace(string(b))
	}

	questionUser, err := template.New(PromptQuestionUser).Parse(texts[PromptQuestionUser])
	if err != nil {
		return nil, fmt.Errorf("invalid %s prompt: %w", PromptQuestionUser, err)
	}
	answerUser, err := template.New(PromptAnswerUser).Parse(texts[PromptAnswerUser])
	if err != nil {
		return nil, fmt.Errorf("invalid %s prompt: %w", PromptAnswerUser, err)
	}

	return &Prompts{
		QuestionSystem: texts[PromptQuestionSystem],
		questionUser:   questionUser,
		AnswerSystem:   texts[PromptAnswerSystem],
		answerUser:     answerUser,
	}, nil
}

// QuestionUser renders the question-phase user prompt
func (p *Prompts) QuestionUser(req QuestionRequest) (string, error) {
	var buf bytes.Buffer
	if err := p.questionUser.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("failed to render question prompt: %w", err)
	}
	return buf.String(), nil
}

// AnswerUser renders the answer-phase user prompt
func (p *Prompts) AnswerUser(req AnswerRequest) (string, error) {
	var buf bytes.Buffer
	if err := p.answerUser.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("failed to render answer prompt: %w", err)
	}
	return buf.String(), nil
}
