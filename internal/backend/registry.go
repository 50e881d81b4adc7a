// Package backend provides llm.Completer implementations for the
// supported chat completion services and a registry to construct them
// by name.
package backend

import (
	"fmt"
	"net/http"
	"sync"

	"PocketChat/internal/llm"
)

// Backend names accepted by New and the -backend flag.
const (
	NameOllama    = "ollama"
	NameAnthropic = "anthropic"
	NameGrok      = "grok"
	NameOpenAI    = "openai"
	NameGemini    = "gemini"
)

// Names lists the known backends in flag-help order.
func Names() []string {
	return []string{NameOllama, NameAnthropic, NameGrok, NameOpenAI, NameGemini}
}

// Known reports whether name is a registered backend.
func Known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Options configures completer construction. Zero values select the
// environment credential and default endpoints.
type Options struct {
	// APIKey overrides the environment credential lookup.
	APIKey string

	// BaseURL overrides the service endpoint.
	BaseURL string

	// OllamaHost overrides the Ollama endpoint.
	OllamaHost string

	// HTTPClient overrides the transport for raw-HTTP and SDK calls.
	HTTPClient *http.Client
}

// New constructs the named completer. A missing credential surfaces
// here as a configuration error, before any request is attempted.
func New(name string, opts Options) (llm.Completer, error) {
	switch name {
	case NameOllama:
		return NewOllama(opts)
	case NameAnthropic:
		return NewAnthropic(opts)
	case NameGrok:
		return NewGrok(opts)
	case NameOpenAI:
		return NewOpenAI(opts)
	case NameGemini:
		return NewGemini(opts)
	default:
		return nil, llm.NewConfigurationError("backend.New",
			fmt.Errorf("%w: %s", llm.ErrUnknownBackend, name))
	}
}

// Registry hands out completers by name, constructing each at most
// once. Safe for concurrent use.
type Registry struct {
	opts Options

	mu         sync.Mutex
	completers map[string]llm.Completer
}

// NewRegistry creates a registry sharing opts across all completers.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:       opts,
		completers: make(map[string]llm.Completer),
	}
}

// Get returns the named completer, constructing it on first use.
func (r *Registry) Get(name string) (llm.Completer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.completers[name]; ok {
		return c, nil
	}
	c, err := New(name, r.opts)
	if err != nil {
		return nil, err
	}
	r.completers[name] = c
	return c, nil
}

// Register installs a pre-built completer under name, replacing any
// existing one. Tests use this to inject stubs.
func (r *Registry) Register(name string, c llm.Completer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completers[name] = c
}
