package llm

import (
	"context"
	"time"
)

// TokenUsage reports the token accounting a completion service attaches
// to a response. TotalTokens is the service's own sum of the other two.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// CompletionResult is the structured outcome of one completion call:
// the reply text of the single requested choice plus the diagnostic
// fields the service reports alongside it.
type CompletionResult struct {
	Text         string     `json:"text"`
	FinishReason string     `json:"finish_reason"`
	Usage        TokenUsage `json:"usage"`

	ID      string    `json:"id,omitempty"`
	Model   string    `json:"model,omitempty"`
	Created time.Time `json:"created,omitempty"`
}

// Options carries per-request tuning. Zero values defer to backend
// defaults.
type Options struct {
	// Model selects the service-side model identifier for this request.
	Model string
	// MaxTokens caps the completion length when non-zero.
	MaxTokens int64
	// Temperature overrides sampling temperature when non-nil.
	Temperature *float64
}

// Completer submits one conversation synchronously and returns the
// completion. Implementations request exactly one choice, perform no
// retries, and map service failures onto the error kinds in this
// package.
type Completer interface {
	Complete(ctx context.Context, conv Conversation, opts Options) (*CompletionResult, error)
	Name() string
}
