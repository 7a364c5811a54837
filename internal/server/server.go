// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/broadcast"
	"github.com/FenixFighter/WebWibe/internal/config"
	"github.com/FenixFighter/WebWibe/internal/evaluator"
	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/ledger"
	"github.com/FenixFighter/WebWibe/internal/router"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize is the maximum accepted request body (1 MiB).
	MaxRequestBodySize = 1 << 20

	// MaxSearchLimit caps the limit query parameter of knowledge search.
	MaxSearchLimit = 50

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP surface of the support router.
type Server struct {
	cfg    config.ServerConfig
	mux    *http.ServeMux
	server *http.Server

	router      *router.Router
	index       *knowledge.Index
	evaluator   *evaluator.Evaluator
	directory   *agents.Directory
	ledger      *ledger.Ledger
	transcripts storage.Store
	hub         *broadcast.Hub

	cors    *CORSConfig
	limiter *RateLimiter
	logger  *slog.Logger

	startTime time.Time
	mu        sync.RWMutex
}

// NewServer creates a Server for the given settings. Collaborators are
// attached with the With* methods; endpoints whose collaborator is missing
// answer 503.
func NewServer(cfg config.ServerConfig, rt *router.Router) *Server {
	if cfg.Port == 0 {
		cfg.Port = config.Default().Server.Port
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		router:    rt,
		cors:      DefaultCORSConfig(cfg.CORSOrigins...),
		logger:    slog.Default().With("component", "server"),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// WithLogger sets the logger used for access and error logs.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger.With("component", "server")
	return s
}

// WithIndex attaches the knowledge index.
func (s *Server) WithIndex(ix *knowledge.Index) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = ix
	return s
}

// WithEvaluator attaches the standalone evaluator.
func (s *Server) WithEvaluator(e *evaluator.Evaluator) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluator = e
	return s
}

// WithDirectory attaches the agent directory used for login and auth.
func (s *Server) WithDirectory(d *agents.Directory) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory = d
	return s
}

// WithLedger attaches the assignment ledger for the agent dashboard.
func (s *Server) WithLedger(l *ledger.Ledger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = l
	return s
}

// WithTranscripts attaches the transcript store.
func (s *Server) WithTranscripts(store storage.Store) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = store
	return s
}

// WithHub attaches the hub that feeds GET /v1/events.
func (s *Server) WithHub(h *broadcast.Hub) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub = h
	return s
}

// WithRateLimiter replaces the per-IP limiter.
func (s *Server) WithRateLimiter(rl *RateLimiter) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = rl
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr()
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	// Conversation traffic
	s.mux.HandleFunc("POST /v1/messages", s.handleMessage)
	s.mux.HandleFunc("POST /v1/conversations/join", s.handleJoin)
	s.mux.HandleFunc("POST /v1/conversations/{id}/escalate", s.handleEscalate)
	s.mux.HandleFunc("POST /v1/conversations/{id}/release", s.handleRelease)
	s.mux.HandleFunc("GET /v1/events", s.handleEvents)

	// Agent dashboard
	s.mux.HandleFunc("GET /v1/conversations", s.agentOnly(s.handleListConversations))
	s.mux.HandleFunc("GET /v1/conversations/{id}/messages", s.agentOnly(s.handleTranscript))
	s.mux.HandleFunc("GET /v1/conversations/{id}/assignments", s.agentOnly(s.handleAssignments))
	s.mux.HandleFunc("GET /v1/agents/me/assignments", s.agentOnly(s.handleMyAssignments))
	s.mux.HandleFunc("POST /v1/agents/login", s.handleLogin)
	s.mux.HandleFunc("POST /v1/agents/logout", s.handleLogout)

	// Knowledge and evaluation
	s.mux.HandleFunc("GET /v1/knowledge/search", s.handleSearch)
	s.mux.HandleFunc("GET /v1/categories", s.handleCategories)
	s.mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)

	// Health, stats and metrics
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// agentOnly requires a support agent session. It answers 503 when no
// directory is attached.
func (s *Server) agentOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		dir := s.directory
		logger := s.logger
		s.mu.RUnlock()

		if dir == nil {
			writeError(w, http.StatusServiceUnavailable, "Agent directory not configured")
			return
		}
		RequireAgent(dir, agents.RoleSupport, logger, next)(w, r)
	}
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	if s.limiter == nil {
		rl := s.cfg.RateLimit
		burst := s.cfg.RateBurst
		if rl <= 0 {
			s.limiter = DefaultRateLimiter()
		} else {
			s.limiter = NewRateLimiter(rl, burst)
		}
	}
	limiter := s.limiter
	logger := s.logger
	s.mu.Unlock()

	return Chain(
		RecoveryMiddleware(logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(s.cors),
		RateLimitMiddleware(limiter, logger),
	)(s.mux)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until the server
// stops. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadTimeout:       durationOr(s.cfg.ReadTimeout, 15*time.Second),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      durationOr(s.cfg.WriteTimeout, 60*time.Second),
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("server starting", slog.String("addr", srv.Addr), slog.String("version", Version))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	limiter := s.limiter
	srv := s.server
	s.mu.RUnlock()
	if limiter != nil {
		limiter.Close()
	}
	if srv == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Message: message, Code: status}})
}

// decodeJSON reads a size-limited JSON body into v and writes the error
// response itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

// statusFor maps router and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrValidation), errors.Is(err, storage.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, router.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, router.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, status, "Internal Server Error")
		return
	}
	writeError(w, status, errorMessage(err))
}

// errorMessage strips the sentinel prefix so clients see the notice only.
func errorMessage(err error) string {
	if errors.Is(err, router.ErrUnavailable) {
		return router.NoticeNoAgents
	}
	msg := err.Error()
	for _, sentinel := range []error{router.ErrValidation, router.ErrUnauthorized} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok && rest != "" {
			return rest
		}
	}
	return msg
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
