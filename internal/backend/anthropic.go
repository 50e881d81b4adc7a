package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"PocketChat/internal/llm"
)

// DefaultAnthropicModel is the Claude model used when none is selected.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// The messages API requires an output cap on every request.
const defaultAnthropicMaxTokens = 1024

// Anthropic completes conversations through the Anthropic messages API.
type Anthropic struct {
	DefaultModel string
	MaxTokens    int64

	client *anthropic.Client
}

// NewAnthropic creates the Anthropic completer. The credential comes
// from opts.APIKey or ANTHROPIC_API_KEY.
func NewAnthropic(opts Options) (*Anthropic, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, llm.NewConfigurationError("anthropic.New",
			fmt.Errorf("ANTHROPIC_API_KEY: %w", llm.ErrMissingAPIKey))
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

	client := anthropic.NewClient(requestOpts...)
	return &Anthropic{
		DefaultModel: DefaultAnthropicModel,
		MaxTokens:    defaultAnthropicMaxTokens,
		client:       &client,
	}, nil
}

func (a *Anthropic) Name() string { return NameAnthropic }

func (a *Anthropic) Complete(ctx context.Context, conv llm.Conversation, opts llm.Options) (*llm.CompletionResult, error) {
	const op = "anthropic.Complete"

	model := opts.Model
	if model == "" {
		model = a.DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.MaxTokens
	}

	// The system instruction travels out of band in this API.
	messages := make([]anthropic.MessageParam, 0, len(conv))
	for _, msg := range conv.WithoutSystem() {
		var role anthropic.MessageParamRole
		switch msg.Role {
		case llm.RoleUser:
			role = anthropic.MessageParamRoleUser
		case llm.RoleAssistant:
			role = anthropic.MessageParamRoleAssistant
		default:
			return nil, llm.NewInvalidRequestError(op, &llm.UnknownRoleError{Role: msg.Role})
		}
		messages = append(messages, anthropic.MessageParam{
			Role: role,
			Content: []anthropic.ContentBlockParamUnion{
				{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
			},
		})
	}

	params := anthropic.MessageNewParams{
		MaxTokens: maxTokens,
		Model:     anthropic.Model(model),
		Messages:  messages,
	}
	if system, ok := conv.SystemInstruction(); ok {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = param.NewOpt(*opts.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(op, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, llm.NewTransientError(op, llm.ErrEmptyCompletion)
	}

	usage := llm.TokenUsage{
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return &llm.CompletionResult{
		Text:         text.String(),
		FinishReason: string(msg.StopReason),
		Usage:        usage,
		ID:           msg.ID,
		Model:        string(msg.Model),
	}, nil
}

func classifyAnthropicError(op string, err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return llm.ClassifyStatus(op, apierr.StatusCode, apierr.Error())
	}
	return llm.ClassifyTransport(op, err)
}
