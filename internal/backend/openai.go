package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"PocketChat/internal/llm"
)

// DefaultOpenAIModel matches the service default used by the chat UI.
const DefaultOpenAIModel = "gpt-3.5-turbo"

// OpenAI completes conversations through the OpenAI chat completions
// API, or any compatible endpoint when constructed with a base URL
// override.
type OpenAI struct {
	DefaultModel string

	name   string
	client *openai.Client
}

// NewOpenAI creates the OpenAI completer. The credential comes from
// opts.APIKey or the OPENAI_API_KEY environment variable; without one
// construction fails so a missing key surfaces at startup.
func NewOpenAI(opts Options) (*OpenAI, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, llm.NewConfigurationError("openai.New",
			fmt.Errorf("OPENAI_API_KEY: %w", llm.ErrMissingAPIKey))
	}

	// One attempt per request; failures surface to the caller instead
	// of the SDK's built-in retry loop.
	requestOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		requestOpts = append(requestOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	client := openai.NewClient(requestOpts...)
	return &OpenAI{
		DefaultModel: DefaultOpenAIModel,
		name:         NameOpenAI,
		client:       &client,
	}, nil
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Complete(ctx context.Context, conv llm.Conversation, opts llm.Options) (*llm.CompletionResult, error) {
	op := o.name + ".Complete"

	model := opts.Model
	if model == "" {
		model = o.DefaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv))
	for _, msg := range conv {
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case llm.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			return nil, llm.NewInvalidRequestError(op, &llm.UnknownRoleError{Role: msg.Role})
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
		N:        openai.Int(1),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(opts.MaxTokens)
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(op, err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewTransientError(op, llm.ErrEmptyCompletion)
	}

	choice := resp.Choices[0]
	return &llm.CompletionResult{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		ID:      resp.ID,
		Model:   resp.Model,
		Created: time.Unix(resp.Created, 0),
	}, nil
}

func classifyOpenAIError(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return llm.ClassifyStatus(op, apierr.StatusCode, apierr.Error())
	}
	return llm.ClassifyTransport(op, err)
}
