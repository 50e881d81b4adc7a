package backend

import (
	"fmt"
	"os"

	"PocketChat/internal/llm"
)

// DefaultGrokModel is the xAI model used when none is selected.
const DefaultGrokModel = "grok-1"

const grokBaseURL = "https://api.grok.x.ai/v1"

// NewGrok creates a completer for the xAI endpoint, which speaks the
// OpenAI chat completions protocol. The credential comes from
// opts.APIKey or GROK_API_KEY.
func NewGrok(opts Options) (*OpenAI, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("GROK_API_KEY")
	}
	if key == "" {
		return nil, llm.NewConfigurationError("grok.New",
			fmt.Errorf("GROK_API_KEY: %w", llm.ErrMissingAPIKey))
	}

	if opts.BaseURL == "" {
		opts.BaseURL = grokBaseURL
	}
	opts.APIKey = key

	completer, err := NewOpenAI(opts)
	if err != nil {
		return nil, err
	}
	completer.name = NameGrok
	completer.DefaultModel = DefaultGrokModel
	return completer, nil
}
