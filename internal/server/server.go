// Package server exposes the chat relay over HTTP alongside the static UI,
// health probes and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/efebarandurmaz/twin/internal/chat"
	"github.com/efebarandurmaz/twin/internal/observability"
)

// maxBodyBytes bounds the size of a chat request body.
const maxBodyBytes = 1 << 20

// Config holds chat server configuration.
type Config struct {
	Addr    string // e.g. ":3000"
	Version string
	Static  fs.FS // UI assets; must contain index.html
	Logger  *slog.Logger
}

// Server serves the chat API and UI.
type Server struct {
	config  *Config
	relay   *chat.Relay
	health  *HealthServer
	metrics *observability.ChatMetrics
	logger  *slog.Logger
	server  *http.Server
}

// New wires the routes and middleware. metrics may be nil.
func New(config *Config, relay *chat.Relay, health *HealthServer, metrics *observability.ChatMetrics) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  config,
		relay:   relay,
		health:  health,
		metrics: metrics,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	if health != nil {
		health.Register(mux)
	}
	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	mux.Handle("/", spaHandler(config.Static, logger))

	handler := requestIDMiddleware(loggingMiddleware(logger, recoverMiddleware(logger, mux)))

	s.server = &http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("Digital twin UI running", "addr", s.config.Addr, "provider", s.relay.ProviderName())
	if !s.relay.Configured() {
		s.logger.Warn("Set GROQ_API_KEY (preferred) or OPENAI_API_KEY before chatting")
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("chat server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping chat server")
	return s.server.Shutdown(ctx)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	// A body that does not decode is handled as a missing message.
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.DebugContext(r.Context(), "Undecodable chat body", "error", err)
		req.Message = ""
	}

	reply, err := s.relay.Reply(r.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		respondJSON(w, http.StatusOK, chatResponse{Reply: reply})
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// spaHandler serves files from fsys and falls back to index.html for any
// path that does not name a file.
func spaHandler(fsys fs.FS, logger *slog.Logger) http.Handler {
	files := http.FileServer(http.FS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && name != "index.html" {
			if info, err := fs.Stat(fsys, name); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}

		index, err := fs.ReadFile(fsys, "index.html")
		if err != nil {
			logger.ErrorContext(r.Context(), "Failed to read index.html", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write(index)
		}
	})
}
