// Package llmtest provides canned completers for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"PocketChat/internal/llm"
)

// Call records one Complete invocation.
type Call struct {
	Conversation llm.Conversation
	Options      llm.Options
}

// Completer is a scripted llm.Completer. Set Response or Err for canned
// behavior, or ReplyFunc to compute replies per call. Every call is
// recorded for inspection.
type Completer struct {
	// Backend is reported by Name. Defaults to "stub".
	Backend string

	// Response is returned (copied) when ReplyFunc and Err are unset.
	Response *llm.CompletionResult

	// Err, when set, is returned instead of a result.
	Err error

	// ReplyFunc, when set, overrides Response and Err.
	ReplyFunc func(ctx context.Context, conv llm.Conversation, opts llm.Options) (*llm.CompletionResult, error)

	mu    sync.Mutex
	calls []Call
}

func (c *Completer) Name() string {
	if c.Backend == "" {
		return "stub"
	}
	return c.Backend
}

func (c *Completer) Complete(ctx context.Context, conv llm.Conversation, opts llm.Options) (*llm.CompletionResult, error) {
	recorded := make(llm.Conversation, len(conv))
	copy(recorded, conv)

	c.mu.Lock()
	c.calls = append(c.calls, Call{Conversation: recorded, Options: opts})
	c.mu.Unlock()

	if c.ReplyFunc != nil {
		return c.ReplyFunc(ctx, conv, opts)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Response != nil {
		result := *c.Response
		return &result, nil
	}
	return Reply("ok", conv), nil
}

// Calls returns a snapshot of all recorded invocations.
func (c *Completer) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// LastCall returns the most recent invocation.
func (c *Completer) LastCall() (Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return Call{}, false
	}
	return c.calls[len(c.calls)-1], true
}

// CallCount returns how many times Complete ran.
func (c *Completer) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// Reply builds a completion result for the given text with token usage
// derived from the conversation, keeping total = prompt + completion.
func Reply(text string, conv llm.Conversation) *llm.CompletionResult {
	var promptTokens int64
	for _, msg := range conv {
		promptTokens += int64(len(strings.Fields(msg.Content)))
	}
	completionTokens := int64(len(strings.Fields(text)))
	return &llm.CompletionResult{
		Text:         text,
		FinishReason: "stop",
		Usage: llm.TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		ID:      fmt.Sprintf("cmpl-test-%d", time.Now().UnixNano()),
		Model:   "stub-model",
		Created: time.Now(),
	}
}

// Echo returns a completer whose reply restates the question.
func Echo() *Completer {
	return &Completer{
		ReplyFunc: func(_ context.Context, conv llm.Conversation, _ llm.Options) (*llm.CompletionResult, error) {
			question := conv[len(conv)-1].Content
			return Reply("echo: "+question, conv), nil
		},
	}
}
