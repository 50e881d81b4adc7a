// Package web serves the chat session over HTTP: an embedded
// single-page widget, a websocket channel for the widget, and a JSON
// API for scripting.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"PocketChat/internal/backend"
	"PocketChat/internal/chatbot"
	"PocketChat/internal/docqa"
	"PocketChat/internal/llm"
	"PocketChat/internal/session"
)

//go:embed static
var staticFS embed.FS

// maxUploadBytes caps document uploads for /api/docqa.
const maxUploadBytes = 10 << 20

// Server exposes one chat session over HTTP.
type Server struct {
	httpServer *http.Server
	bot        *chatbot.ChatBot
	logger     *slog.Logger
}

// NewServer builds a server for the bot listening on addr.
func NewServer(addr string, bot *chatbot.ChatBot, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{bot: bot, logger: logger}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table, for tests that serve it directly.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("web server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/backend", s.handleBackend)
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("POST /api/docqa", s.handleDocQA)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// chatRequest is the JSON body of POST /api/chat.
type chatRequest struct {
	Message           string `json:"message"`
	SystemInstruction string `json:"system_instruction,omitempty"`
	Model             string `json:"model,omitempty"`
}

// chatResponse is the JSON reply of POST /api/chat.
type chatResponse struct {
	Reply      string            `json:"reply"`
	Transcript []session.Message `json:"transcript"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			llm.NewInvalidRequestError("web.handleChat", fmt.Errorf("failed to decode request: %w", err)))
		return
	}

	reply, err := s.bot.Send(r.Context(), req.Message, req.SystemInstruction, req.Model)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, Transcript: s.bot.Transcript()})
}

// transcriptResponse is the JSON reply of the transcript and clear
// endpoints.
type transcriptResponse struct {
	SessionID  string            `json:"session_id"`
	Transcript []session.Message `json:"transcript"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, transcriptResponse{
		SessionID:  s.bot.SessionID(),
		Transcript: s.bot.Transcript(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.bot.Clear()
	writeJSON(w, http.StatusOK, transcriptResponse{
		SessionID:  s.bot.SessionID(),
		Transcript: s.bot.Transcript(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.bot.Models(r.Context())
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":  s.bot.Backend(),
		"backends": backend.Names(),
		"model":    s.bot.Model(),
		"models":   models,
	})
}

func (s *Server) handleBackend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Backend string `json:"backend"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			llm.NewInvalidRequestError("web.handleBackend", fmt.Errorf("failed to decode request: %w", err)))
		return
	}
	if err := s.bot.SetBackend(req.Backend); err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"backend": s.bot.Backend()})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	usage, count, err := s.bot.Usage(r.Context())
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"exchanges":         count,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	})
}

// handleDocQA answers a question about an uploaded document. The file
// is staged to a temp path so the reader's format dispatch applies to
// the original filename's extension.
func (s *Server) handleDocQA(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest,
			llm.NewInvalidRequestError("web.handleDocQA", fmt.Errorf("failed to parse form: %w", err)))
		return
	}

	question := r.FormValue("question")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest,
			llm.NewInvalidRequestError("web.handleDocQA", fmt.Errorf("failed to read file field: %w", err)))
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "pocketchat-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError,
			llm.NewInternalError("web.handleDocQA", err))
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, io.LimitReader(file, maxUploadBytes)); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError,
			llm.NewInternalError("web.handleDocQA", err))
		return
	}
	tmp.Close()

	asker, err := s.bot.Asker()
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	agent := docqa.NewAgent(asker)
	answer, err := agent.Ask(r.Context(), tmp.Name(), question)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"document": header.Filename,
		"reply":    answer,
	})
}

// writeChatError maps a typed failure onto an HTTP status: busy
// sessions conflict, bad input is the caller's fault, everything the
// upstream service caused is a bad gateway.
func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, llm.ErrBusy):
		status = http.StatusConflict
	case llm.IsInvalidRequest(err), errors.Is(err, llm.ErrUnknownBackend):
		status = http.StatusBadRequest
	case llm.IsAuthentication(err), llm.IsRateLimit(err), llm.IsTransient(err):
		status = http.StatusBadGateway
	}
	s.logger.Warn("request failed", "status", status, "kind", llm.KindOf(err), "error", err)
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	kind := llm.KindOf(err)
	if errors.Is(err, llm.ErrBusy) {
		kind = "busy"
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
