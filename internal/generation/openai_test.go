package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, chat http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "qwen2.5-coder"}, {"id": "llama3"}},
		})
	})
	if chat != nil {
		mux.HandleFunc("/v1/chat/completions", chat)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
}

func TestOpenAIBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("init falls back to first served model", func(t *testing.T) {
		server := newOpenAIServer(t, nil)
		b, err := NewOpenAIBackend(server.URL, "", "missing-model", nil, 0)
		require.NoError(t, err)

		require.NoError(t, b.Init(ctx))
		assert.Equal(t, "qwen2.5-coder", b.Model())
	})

	t.Run("init keeps configured model when served", func(t *testing.T) {
		server := newOpenAIServer(t, nil)
		b, err := NewOpenAIBackend(server.URL, "", "llama3", nil, 0)
		require.NoError(t, err)

		require.NoError(t, b.Init(ctx))
		assert.Equal(t, "llama3", b.Model())
	})

	t.Run("questions and answers", func(t *testing.T) {
		var got openAIChatRequest
		server := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			if got.MaxTokens > 0 {
				writeChoice(w, "  It returns the sum.  ")
				return
			}
			writeChoice(w, "What does Add return?\n\nHow are overflows handled?")
		})
		b, err := NewOpenAIBackend(server.URL+"/", "secret", "llama3", nil, 0)
		require.NoError(t, err)

		qs, err := b.Questions(ctx, QuestionRequest{Content: "func Add(a, b int) int", Count: 2, Temperature: 0.7})
		require.NoError(t, err)
		assert.Equal(t, []string{"What does Add return?", "How are overflows handled?"}, qs.Questions)
		assert.Equal(t, "llama3", got.Model)
		require.Len(t, got.Messages, 2)
		assert.Contains(t, got.Messages[1].Content, "func Add(a, b int) int")

		ans, err := b.Answer(ctx, AnswerRequest{Context: "func Add(a, b int) int", Question: "What does Add return?", MaxTokens: 64})
		require.NoError(t, err)
		assert.Equal(t, "It returns the sum.", ans.Answer)
		assert.Equal(t, 64, got.MaxTokens)
	})

	t.Run("rate limited is transient", func(t *testing.T) {
		server := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		})
		b, err := NewOpenAIBackend(server.URL, "", "llama3", nil, 0)
		require.NoError(t, err)

		_, err = b.Questions(ctx, QuestionRequest{Content: "x", Count: 1})
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})

	t.Run("bad request is permanent", func(t *testing.T) {
		server := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "context length exceeded", http.StatusBadRequest)
		})
		b, err := NewOpenAIBackend(server.URL, "", "llama3", nil, 0)
		require.NoError(t, err)

		_, err = b.Answer(ctx, AnswerRequest{Context: "x", Question: "y?"})
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
		assert.Contains(t, err.Error(), "context length exceeded")
	})

	t.Run("garbled body is transient", func(t *testing.T) {
		server := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices": [`))
		})
		b, err := NewOpenAIBackend(server.URL, "", "llama3", nil, 0)
		require.NoError(t, err)

		_, err = b.Answer(ctx, AnswerRequest{Context: "x", Question: "y?"})
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})

	t.Run("unreachable server is transient", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		b, err := NewOpenAIBackend(url, "", "llama3", nil, 0)
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err = b.Questions(cctx, QuestionRequest{Content: "x", Count: 1})
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})

	t.Run("requires base url", func(t *testing.T) {
		_, err := NewOpenAIBackend("", "", "", nil, 0)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}
