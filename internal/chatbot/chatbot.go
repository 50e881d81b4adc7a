package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"PocketChat/internal/backend"
	"PocketChat/internal/cache"
	"PocketChat/internal/config"
	"PocketChat/internal/ledger"
	"PocketChat/internal/llm"
	"PocketChat/internal/session"
)

// ChatBot drives one chat session: it turns each submitted message into
// a single completion request against the selected backend and keeps
// the display transcript. The transcript only grows on success; a
// failed request leaves it exactly as it was.
//
// Requests do not carry earlier turns. The model sees only the current
// question (plus the session's system instruction), so replies have no
// conversational memory. The transcript is display history, not model
// context.
type ChatBot struct {
	config     config.Config
	registry   *backend.Registry
	transcript *session.Transcript
	store      cache.Store
	ledger     *ledger.Ledger
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	// One request at a time per session. A second submission while one
	// is in flight is rejected with llm.ErrBusy.
	busy atomic.Bool

	mu                sync.Mutex
	backendName       string
	model             string
	systemInstruction string
}

// Option overrides a ChatBot dependency.
type Option func(*ChatBot)

// WithRegistry installs a pre-built backend registry.
func WithRegistry(r *backend.Registry) Option {
	return func(cb *ChatBot) { cb.registry = r }
}

// WithCache installs a response cache store.
func WithCache(s cache.Store) Option {
	return func(cb *ChatBot) { cb.store = s }
}

// WithLedger installs the usage ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(cb *ChatBot) { cb.ledger = l }
}

// WithLogger installs the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cb *ChatBot) { cb.logger = logger }
}

// WithTelemetry installs the tracer and meter.
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(cb *ChatBot) {
		cb.tracer = tracer
		cb.meter = meter
	}
}

// New creates a ChatBot for the configured backend. The backend's
// completer is constructed here, so a missing credential fails at
// startup rather than on the first message.
func New(cfg config.Config, opts ...Option) (*ChatBot, error) {
	cb := &ChatBot{
		config:            cfg,
		transcript:        session.New(),
		backendName:       cfg.Backend,
		model:             cfg.Model,
		systemInstruction: cfg.SystemInstruction,
	}
	for _, opt := range opts {
		opt(cb)
	}

	if cb.logger == nil {
		cb.logger = slog.Default()
	}
	if cb.tracer == nil {
		cb.tracer = otel.Tracer("pocketchat")
	}
	if cb.meter == nil {
		cb.meter = otel.Meter("pocketchat")
	}
	if cb.registry == nil {
		cb.registry = backend.NewRegistry(backend.Options{OllamaHost: cfg.OllamaHost})
	}

	if _, err := cb.registry.Get(cb.backendName); err != nil {
		return nil, fmt.Errorf("failed to initialize backend %s: %w", cb.backendName, err)
	}

	cb.logger.Info("created new session",
		"session_id", cb.transcript.ID(), "backend", cb.backendName)
	return cb, nil
}

// SessionID returns the transcript's session identifier.
func (cb *ChatBot) SessionID() string {
	return cb.transcript.ID()
}

// Transcript returns a snapshot of the display history.
func (cb *ChatBot) Transcript() []session.Message {
	return cb.transcript.Messages()
}

// Clear discards the display history. Nothing else resets; the next
// request behaves like the first one.
func (cb *ChatBot) Clear() {
	cb.transcript.Clear()
	cb.logger.Info("transcript cleared", "session_id", cb.transcript.ID())
}

// Backend returns the active backend name.
func (cb *ChatBot) Backend() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.backendName
}

// SetBackend switches the session to another backend. The target's
// completer is constructed immediately so a missing credential is
// reported here, not on the next message.
func (cb *ChatBot) SetBackend(name string) error {
	if !backend.Known(name) {
		return llm.NewConfigurationError("chatbot.SetBackend",
			fmt.Errorf("%w: %s", llm.ErrUnknownBackend, name))
	}
	if _, err := cb.registry.Get(name); err != nil {
		return err
	}

	cb.mu.Lock()
	cb.backendName = name
	cb.model = ""
	cb.mu.Unlock()

	cb.logger.Info("switched backend", "backend", name)
	return nil
}

// Model returns the per-session model override, empty for the backend
// default.
func (cb *ChatBot) Model() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.model
}

// SetModel sets the model used for subsequent requests.
func (cb *ChatBot) SetModel(model string) {
	cb.mu.Lock()
	cb.model = model
	cb.mu.Unlock()
}

// SystemInstruction returns the session's default system instruction.
func (cb *ChatBot) SystemInstruction() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.systemInstruction
}

// SetSystemInstruction replaces the session's default instruction. An
// empty string sends future questions unframed.
func (cb *ChatBot) SetSystemInstruction(instruction string) {
	cb.mu.Lock()
	cb.systemInstruction = instruction
	cb.mu.Unlock()
}

// Send submits one user message and returns the reply. On success the
// user message and the reply are appended to the transcript as a pair;
// on any failure the transcript is untouched and the typed error is
// returned. An empty systemInstruction falls back to the session
// instruction, an empty model to the session model.
func (cb *ChatBot) Send(ctx context.Context, userMessage, systemInstruction, model string) (string, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return "", llm.NewInvalidRequestError("chatbot.Send", llm.ErrEmptyQuestion)
	}

	if !cb.busy.CompareAndSwap(false, true) {
		return "", llm.ErrBusy
	}
	defer cb.busy.Store(false)

	cb.mu.Lock()
	backendName := cb.backendName
	if systemInstruction == "" {
		systemInstruction = cb.systemInstruction
	}
	if model == "" {
		model = cb.model
	}
	cb.mu.Unlock()

	completer, err := cb.registry.Get(backendName)
	if err != nil {
		return "", err
	}

	conv := llm.NewConversation(userMessage, systemInstruction)
	cacheKey := cache.Key(backendName, model, conv)

	if reply, ok := cb.checkCache(ctx, cacheKey); ok {
		cb.transcript.AppendExchange(userMessage, reply)
		cb.recordExchange(ctx, ledger.Entry{
			Backend: backendName, Model: model, FinishReason: "cached", Cached: true,
		})
		return reply, nil
	}

	ctx, span := cb.tracer.Start(ctx, backendName+"_api_call")
	defer span.End()

	mods := []llm.Modifier{
		llm.WithModel(model),
		llm.WithMaxTokens(cb.config.MaxTokens),
	}
	if cb.config.Temperature != nil {
		mods = append(mods, llm.WithTemperature(*cb.config.Temperature))
	}
	asker := llm.NewAsker(completer, mods...)

	start := time.Now()
	result, err := asker.AskResult(ctx, userMessage, systemInstruction)
	duration := time.Since(start)

	if err != nil {
		cb.logger.Error("completion failed",
			"backend", backendName, "kind", llm.KindOf(err), "error", err)
		return "", err
	}

	histogram, herr := cb.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if herr == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}
	cb.recordUsage(ctx, result.Usage)

	cb.transcript.AppendExchange(userMessage, result.Text)
	cb.storeCache(ctx, cacheKey, result.Text)
	cb.recordExchange(ctx, ledger.Entry{
		Backend:          backendName,
		Model:            result.Model,
		FinishReason:     result.FinishReason,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
		DurationMS:       duration.Milliseconds(),
	})

	cb.logger.Info("completed exchange",
		"backend", backendName,
		"model", result.Model,
		"finish_reason", result.FinishReason,
		"total_tokens", result.Usage.TotalTokens,
		"duration_ms", duration.Milliseconds(),
	)
	return result.Text, nil
}

// checkCache checks if a response is cached.
func (cb *ChatBot) checkCache(ctx context.Context, cacheKey string) (string, bool) {
	if cb.store == nil {
		return "", false
	}
	reply, ok, err := cb.store.Get(ctx, cacheKey)
	if err != nil {
		cb.logger.Warn("cache read failed", "error", err)
		return "", false
	}
	if ok {
		cb.logger.Info("cache hit", "key", cacheKey[:16])
	}
	return reply, ok
}

// storeCache stores a response in cache.
func (cb *ChatBot) storeCache(ctx context.Context, cacheKey, response string) {
	if cb.store == nil {
		return
	}
	if err := cb.store.Set(ctx, cacheKey, response); err != nil {
		cb.logger.Warn("cache write failed", "error", err)
		return
	}
	cb.logger.Info("cached response", "key", cacheKey[:16])
}

// recordExchange appends to the usage ledger.
func (cb *ChatBot) recordExchange(ctx context.Context, entry ledger.Entry) {
	if cb.ledger == nil {
		return
	}
	if err := cb.ledger.Record(ctx, entry); err != nil {
		cb.logger.Warn("failed to record exchange", "error", err)
	}
}

// recordUsage records OpenTelemetry counters from usage data.
func (cb *ChatBot) recordUsage(ctx context.Context, usage llm.TokenUsage) {
	counts := map[string]int64{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	}
	for key, value := range counts {
		counter, err := cb.meter.Int64Counter(
			fmt.Sprintf("llm.usage.%s", key),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
		)
		if err != nil {
			cb.logger.Warn("failed to create counter", "key", key, "error", err)
			continue
		}
		counter.Add(ctx, value)
	}
}

// Asker builds a request asker over the active backend with the
// session's model and sampling settings. Document Q&A goes through
// this rather than Send because those answers are not chat turns.
func (cb *ChatBot) Asker() (*llm.Asker, error) {
	cb.mu.Lock()
	backendName := cb.backendName
	model := cb.model
	cb.mu.Unlock()

	completer, err := cb.registry.Get(backendName)
	if err != nil {
		return nil, err
	}

	mods := []llm.Modifier{
		llm.WithModel(model),
		llm.WithMaxTokens(cb.config.MaxTokens),
	}
	if cb.config.Temperature != nil {
		mods = append(mods, llm.WithTemperature(*cb.config.Temperature))
	}
	return llm.NewAsker(completer, mods...), nil
}

// Usage returns the ledger's token totals and exchange count.
func (cb *ChatBot) Usage(ctx context.Context) (llm.TokenUsage, int64, error) {
	if cb.ledger == nil {
		return llm.TokenUsage{}, 0, nil
	}
	return cb.ledger.Totals(ctx)
}

// Models lists the models offered for the active backend: the live
// server list for Ollama, the configured picker list otherwise.
func (cb *ChatBot) Models(ctx context.Context) ([]string, error) {
	completer, err := cb.registry.Get(cb.Backend())
	if err != nil {
		return nil, err
	}
	if o, ok := completer.(*backend.Ollama); ok {
		models, err := o.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(models))
		for i, m := range models {
			names[i] = m.Name
		}
		return names, nil
	}
	return append([]string(nil), cb.config.Models...), nil
}

// Close releases the cache store and ledger.
func (cb *ChatBot) Close() error {
	var firstErr error
	if cb.store != nil {
		if err := cb.store.Close(); err != nil {
			firstErr = err
		}
	}
	if cb.ledger != nil {
		if err := cb.ledger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
