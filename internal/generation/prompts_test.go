package generation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPrompts(t *testing.T) {
	p := DefaultPrompts()
	assert.NotEmpty(t, p.QuestionSystem)
	assert.NotEmpty(t, p.AnswerSystem)

	user, err := p.QuestionUser(QuestionRequest{Content: "func main() {}", Count: 3})
	require.NoError(t, err)
	assert.Contains(t, user, "func main() {}")
	assert.Contains(t, user, "at most 3 questions")

	user, err = p.AnswerUser(AnswerRequest{Context: "package x", Question: "What is x?"})
	require.NoError(t, err)
	assert.Contains(t, user, "package x")
	assert.Contains(t, user, "What is x?")
}

func TestLoadPromptsTheme(t *testing.T) {
	dir := t.TempDir()
	themeDir := filepath.Join(dir, "security")
	require.NoError(t, os.MkdirAll(themeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(themeDir, "question_user.txt"),
		[]byte("Find {{.Count}} security questions in:\n{{.Content}}"), 0o644))

	p, err := LoadPrompts(dir, "security")
	require.NoError(t, err)

	user, err := p.QuestionUser(QuestionRequest{Content: "exec(cmd)", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, "Find 2 security questions in:\nexec(cmd)", user)

	// Files not overridden keep their defaults
	assert.Equal(t, DefaultPrompts().AnswerSystem, p.AnswerSystem)
}

func TestLoadPromptsInvalidTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answer_user.txt"), []byte("{{.Question"), 0o644))

	_, err := LoadPrompts(dir, "")
	assert.Error(t, err)
}
