package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"PocketChat/internal/llm"
)

// DefaultGeminiModel is the Gemini model used when none is selected.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini completes conversations through the Gemini API.
type Gemini struct {
	DefaultModel string

	client *genai.Client
}

// NewGemini creates the Gemini completer. The credential comes from
// opts.APIKey or GEMINI_API_KEY.
func NewGemini(opts Options) (*Gemini, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		return nil, llm.NewConfigurationError("gemini.New",
			fmt.Errorf("GEMINI_API_KEY: %w", llm.ErrMissingAPIKey))
	}

	config := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.HTTPClient != nil {
		config.HTTPClient = opts.HTTPClient
	}
	if opts.BaseURL != "" {
		config.HTTPOptions.BaseURL = opts.BaseURL
	}

	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, llm.NewConfigurationError("gemini.New", err)
	}

	return &Gemini{
		DefaultModel: DefaultGeminiModel,
		client:       client,
	}, nil
}

func (g *Gemini) Name() string { return NameGemini }

func (g *Gemini) Complete(ctx context.Context, conv llm.Conversation, opts llm.Options) (*llm.CompletionResult, error) {
	const op = "gemini.Complete"

	model := opts.Model
	if model == "" {
		model = g.DefaultModel
	}

	config := &genai.GenerateContentConfig{
		CandidateCount: 1,
	}
	if system, ok := conv.SystemInstruction(); ok {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature != nil {
		temp := float32(*opts.Temperature)
		config.Temperature = &temp
	}

	contents := make([]*genai.Content, 0, len(conv))
	for _, msg := range conv.WithoutSystem() {
		content := &genai.Content{
			Parts: []*genai.Part{{Text: msg.Content}},
		}
		switch msg.Role {
		case llm.RoleUser:
			content.Role = genai.RoleUser
		case llm.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			return nil, llm.NewInvalidRequestError(op, &llm.UnknownRoleError{Role: msg.Role})
		}
		contents = append(contents, content)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, classifyGeminiError(op, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, llm.NewTransientError(op, llm.ErrEmptyCompletion)
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return nil, llm.NewTransientError(op, llm.ErrEmptyCompletion)
	}

	var usage llm.TokenUsage
	if meta := resp.UsageMetadata; meta != nil {
		usage = llm.TokenUsage{
			PromptTokens:     int64(meta.PromptTokenCount),
			CompletionTokens: int64(meta.CandidatesTokenCount),
			TotalTokens:      int64(meta.TotalTokenCount),
		}
	}

	return &llm.CompletionResult{
		Text:         text.String(),
		FinishReason: string(candidate.FinishReason),
		Usage:        usage,
		ID:           resp.ResponseID,
		Model:        resp.ModelVersion,
	}, nil
}

func classifyGeminiError(op string, err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return llm.ClassifyStatus(op, apierr.Code, apierr.Message)
	}
	return llm.ClassifyTransport(op, err)
}
