package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PocketChat/internal/llm"
)

func TestOllamaComplete(t *testing.T) {
	var gotReq OllamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3:latest",
			"created_at":        "2025-03-01T12:00:00.000Z",
			"message":           map[string]string{"role": "assistant", "content": "Paris."},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 11,
			"eval_count":        4,
		})
	}))
	defer server.Close()

	o, err := NewOllama(Options{OllamaHost: server.URL})
	require.NoError(t, err)

	conv := llm.NewConversation("What is the capital of France?", "Answer briefly.")
	result, err := o.Complete(context.Background(), conv, llm.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Paris.", result.Text)
	assert.Equal(t, "stop", result.FinishReason)
	assert.Equal(t, int64(11), result.Usage.PromptTokens)
	assert.Equal(t, int64(4), result.Usage.CompletionTokens)
	assert.Equal(t, int64(15), result.Usage.TotalTokens)
	assert.Equal(t, result.Usage.TotalTokens, result.Usage.PromptTokens+result.Usage.CompletionTokens)

	// The whole conversation travels in the request, system first.
	assert.Equal(t, "llama3:latest", gotReq.Model)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0]["role"])
	assert.Equal(t, "Answer briefly.", gotReq.Messages[0]["content"])
	assert.Equal(t, "user", gotReq.Messages[1]["role"])
}

func TestOllamaCompleteModelOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OllamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mistral:7b", req.Model)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "ok"},
			"done":    true,
		})
	}))
	defer server.Close()

	o, _ := NewOllama(Options{OllamaHost: server.URL})
	result, err := o.Complete(context.Background(),
		llm.NewConversation("hi", ""), llm.Options{Model: "mistral:7b"})
	require.NoError(t, err)
	assert.Equal(t, "stop", result.FinishReason)
}

func TestOllamaCompleteErrors(t *testing.T) {
	t.Run("server error is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model load failed", http.StatusInternalServerError)
		}))
		defer server.Close()

		o, _ := NewOllama(Options{OllamaHost: server.URL})
		_, err := o.Complete(context.Background(), llm.NewConversation("hi", ""), llm.Options{})
		require.Error(t, err)
		assert.True(t, llm.IsTransient(err))
	})

	t.Run("unknown model is invalid request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		}))
		defer server.Close()

		o, _ := NewOllama(Options{OllamaHost: server.URL})
		_, err := o.Complete(context.Background(), llm.NewConversation("hi", ""), llm.Options{})
		require.Error(t, err)
		assert.True(t, llm.IsInvalidRequest(err))
	})

	t.Run("malformed body is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		o, _ := NewOllama(Options{OllamaHost: server.URL})
		_, err := o.Complete(context.Background(), llm.NewConversation("hi", ""), llm.Options{})
		require.Error(t, err)
		assert.True(t, llm.IsTransient(err))
	})

	t.Run("empty reply content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": ""},
				"done":    true,
			})
		}))
		defer server.Close()

		o, _ := NewOllama(Options{OllamaHost: server.URL})
		_, err := o.Complete(context.Background(), llm.NewConversation("hi", ""), llm.Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
	})

	t.Run("unreachable server is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		o, _ := NewOllama(Options{OllamaHost: server.URL})
		_, err := o.Complete(context.Background(), llm.NewConversation("hi", ""), llm.Options{})
		require.Error(t, err)
		assert.True(t, llm.IsTransient(err))
	})
}

func TestOllamaListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(OllamaTagsResponse{
			Models: []OllamaModel{
				{Name: "llama3:latest", Size: 4 * 1024 * 1024 * 1024},
				{Name: "mistral:7b", Size: 3 * 1024 * 1024 * 1024},
			},
		})
	}))
	defer server.Close()

	o, _ := NewOllama(Options{OllamaHost: server.URL})
	models, err := o.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3:latest", models[0].Name)
}

func TestOllamaListModelsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	o, _ := NewOllama(Options{OllamaHost: server.URL})
	_, err := o.ListModels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is Ollama running?")
}
