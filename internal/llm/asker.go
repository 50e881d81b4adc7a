package llm

import (
	"context"
	"strings"
)

// Asker turns a plain-text question into a one-shot completion request
// and hands back the reply text. Each call builds a fresh conversation
// from only the current question, so the service sees no earlier turns.
type Asker struct {
	Model       string
	MaxTokens   int64
	Temperature *float64

	// DefaultSystemInstruction is applied by Ask when the caller does
	// not supply an instruction of its own.
	DefaultSystemInstruction string

	completer Completer
}

// Modifier adjusts an Asker during construction.
type Modifier func(*Asker)

// WithModel sets the model identifier sent with every request.
func WithModel(model string) Modifier {
	return func(a *Asker) {
		a.Model = model
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(maxTokens int64) Modifier {
	return func(a *Asker) {
		a.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Modifier {
	return func(a *Asker) {
		a.Temperature = &temperature
	}
}

// WithDefaultSystemInstruction sets the instruction Ask falls back to.
func WithDefaultSystemInstruction(instruction string) Modifier {
	return func(a *Asker) {
		a.DefaultSystemInstruction = instruction
	}
}

// NewAsker creates an Asker over the given completer.
func NewAsker(c Completer, mods ...Modifier) *Asker {
	a := &Asker{completer: c}
	for _, mod := range mods {
		mod(a)
	}
	return a
}

// Ask submits the question with the default system instruction (none
// unless configured) and returns the reply text.
func (a *Asker) Ask(ctx context.Context, question string) (string, error) {
	return a.AskWithSystemInstruction(ctx, question, a.DefaultSystemInstruction)
}

// AskWithSystemInstruction submits the question framed by the given
// instruction. An empty instruction sends the question alone.
func (a *Asker) AskWithSystemInstruction(ctx context.Context, question, instruction string) (string, error) {
	result, err := a.AskResult(ctx, question, instruction)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// AskResult is AskWithSystemInstruction returning the full completion
// result for callers that inspect finish reason and token usage.
func (a *Asker) AskResult(ctx context.Context, question, instruction string) (*CompletionResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, NewInvalidRequestError("Asker.Ask", ErrEmptyQuestion)
	}

	conv := NewConversation(question, instruction)
	if err := conv.Validate(); err != nil {
		return nil, err
	}

	result, err := a.completer.Complete(ctx, conv, Options{
		Model:       a.Model,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if result == nil || result.Text == "" {
		return nil, NewTransientError("Asker.Ask", ErrEmptyCompletion)
	}
	return result, nil
}

// Completer exposes the underlying completer, for callers that need
// its name for logging.
func (a *Asker) Completer() Completer {
	return a.completer
}
