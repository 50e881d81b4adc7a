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

func TestNewAnthropicMissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewAnthropic(Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
	assert.True(t, llm.IsConfiguration(err))
}

func TestAnthropicComplete(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_01",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "Paris."},
			},
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 19, "output_tokens": 3},
		})
	}))
	defer server.Close()

	a, err := NewAnthropic(Options{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	conv := llm.NewConversation("What is the capital of France?", "Answer tersely.")
	result, err := a.Complete(context.Background(), conv, llm.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Paris.", result.Text)
	assert.Equal(t, "end_turn", result.FinishReason)
	assert.Equal(t, int64(19), result.Usage.PromptTokens)
	assert.Equal(t, int64(3), result.Usage.CompletionTokens)
	assert.Equal(t, int64(22), result.Usage.TotalTokens)
	assert.Equal(t, result.Usage.TotalTokens, result.Usage.PromptTokens+result.Usage.CompletionTokens)

	// The instruction travels out of band, not as a message.
	system, ok := gotBody["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "Answer tersely.", system[0].(map[string]any)["text"])

	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.EqualValues(t, 1024, gotBody["max_tokens"])
}

func TestAnthropicCompleteErrors(t *testing.T) {
	respond := func(status int, message string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{
				"type":  "error",
				"error": map[string]any{"type": "api_error", "message": message},
			})
		}))
	}

	t.Run("authentication", func(t *testing.T) {
		server := respond(http.StatusUnauthorized, "invalid x-api-key")
		defer server.Close()

		a, err := NewAnthropic(Options{APIKey: "bad", BaseURL: server.URL})
		require.NoError(t, err)
		_, err = a.Complete(context.Background(), llm.NewConversation("hi", ""), llm.Options{})
		require.Error(t, err)
		assert.True(t, llm.IsAuthentication(err))
	})

	t.Run("overloaded is transient", func(t *testing.T) {
		server := respond(http.StatusServiceUnavailable, "overloaded")
		defer server.Close()

		a, err := NewAnthropic(Options{APIKey: "k", BaseURL: server.URL})
		require.NoError(t, err)
		_, err = a.Complete(context.Background(), llm.NewConversation("hi", ""), llm.Options{})
		require.Error(t, err)
		assert.True(t, llm.IsTransient(err))
	})
}
