package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"PocketChat/internal/llm"
)

// DefaultOllamaModel is the local model used when none is selected.
const DefaultOllamaModel = "llama3:latest"

// DefaultOllamaHost is the default local Ollama endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaRequest is the request body for the Ollama chat API.
type OllamaRequest struct {
	Model    string              `json:"model"`
	Messages []map[string]string `json:"messages"`
	Stream   bool                `json:"stream"`
}

// OllamaResponse is the non-streaming response from the Ollama chat API.
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int64  `json:"prompt_eval_count"`
	EvalCount       int64  `json:"eval_count"`
}

// OllamaTagsResponse is the response from the Ollama /api/tags endpoint.
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel is a single model in the Ollama tags response.
type OllamaModel struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

// Ollama completes conversations through a local Ollama server. No
// credential is required.
type Ollama struct {
	DefaultModel string

	host       string
	httpClient *http.Client
}

// NewOllama creates the Ollama completer against opts.OllamaHost, which
// defaults to the standard local endpoint.
func NewOllama(opts Options) (*Ollama, error) {
	host := opts.OllamaHost
	if host == "" {
		host = DefaultOllamaHost
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Ollama{
		DefaultModel: DefaultOllamaModel,
		host:         host,
		httpClient:   httpClient,
	}, nil
}

func (o *Ollama) Name() string { return NameOllama }

func (o *Ollama) Complete(ctx context.Context, conv llm.Conversation, opts llm.Options) (*llm.CompletionResult, error) {
	const op = "ollama.Complete"

	model := opts.Model
	if model == "" {
		model = o.DefaultModel
	}

	reqMessages := make([]map[string]string, len(conv))
	for i, msg := range conv {
		reqMessages[i] = map[string]string{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
	}

	reqBody := OllamaRequest{
		Model:    model,
		Messages: reqMessages,
		Stream:   false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, llm.NewInternalError(op, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.host+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, llm.NewInternalError(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("content-type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, llm.ClassifyTransport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewTransientError(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, llm.ClassifyStatus(op, resp.StatusCode, string(body))
	}

	var apiResp OllamaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, llm.NewTransientError(op, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if apiResp.Message.Content == "" {
		return nil, llm.NewTransientError(op, llm.ErrEmptyCompletion)
	}

	finish := apiResp.DoneReason
	if finish == "" && apiResp.Done {
		finish = "stop"
	}

	usage := llm.TokenUsage{
		PromptTokens:     apiResp.PromptEvalCount,
		CompletionTokens: apiResp.EvalCount,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	created, _ := time.Parse(time.RFC3339Nano, apiResp.CreatedAt)

	return &llm.CompletionResult{
		Text:         apiResp.Message.Content,
		FinishReason: finish,
		Usage:        usage,
		Model:        apiResp.Model,
		Created:      created,
	}, nil
}

// ListModels fetches the models installed on the Ollama server.
func (o *Ollama) ListModels(ctx context.Context) ([]OllamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request (is Ollama running?): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	var tagsResp OllamaTagsResponse
	if err := json.Unmarshal(body, &tagsResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return tagsResp.Models, nil
}
