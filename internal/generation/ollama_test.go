package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaBackend(t *testing.T) {
	ctx := context.Background()

	var lastChat ollamaChatRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["model"] != "codellama" {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"parameters": "stop \"<|end|>\"\nnum_ctx 2048",
		})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastChat))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "What is num_ctx used for?"},
			"done":    true,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	t.Run("init reads context window", func(t *testing.T) {
		b, err := NewOllamaBackend(server.URL, "codellama", nil, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, b.ContextWindow())

		require.NoError(t, b.Init(ctx))
		assert.Equal(t, 2048, b.ContextWindow())
		assert.Equal(t, 2048, ContextWindowOf(NewCachedBackend(b, 4)))
	})

	t.Run("unknown model is permanent", func(t *testing.T) {
		b, err := NewOllamaBackend(server.URL, "nope", nil, 0)
		require.NoError(t, err)

		err = b.Init(ctx)
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	})

	t.Run("chat is not streamed", func(t *testing.T) {
		b, err := NewOllamaBackend(server.URL, "codellama", nil, 0)
		require.NoError(t, err)

		qs, err := b.Questions(ctx, QuestionRequest{Content: "num_ctx 2048", Count: 1, Temperature: 0.2})
		require.NoError(t, err)
		assert.Equal(t, []string{"What is num_ctx used for?"}, qs.Questions)
		assert.False(t, lastChat.Stream)
		assert.Equal(t, "codellama", lastChat.Model)
		assert.InDelta(t, 0.2, lastChat.Options["temperature"], 1e-9)
	})

	t.Run("requires model", func(t *testing.T) {
		_, err := NewOllamaBackend(server.URL, "", nil, 0)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestParseNumCtx(t *testing.T) {
	assert.Equal(t, 8192, parseNumCtx("temperature 0.1\nnum_ctx                        8192"))
	assert.Equal(t, 0, parseNumCtx("temperature 0.1"))
}
