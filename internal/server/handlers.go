// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/ledger"
	"github.com/FenixFighter/WebWibe/internal/router"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

// ============================================================================
// CONVERSATION HANDLERS
// ============================================================================

// handleMessage handles POST /v1/messages. A bearer token marks the message
// as coming from an agent.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusServiceUnavailable, "Router not configured")
		return
	}

	var in router.Inbound
	if !decodeJSON(w, r, &in) {
		return
	}
	in.Credential = BearerToken(r)

	out, err := s.router.HandleMessage(r.Context(), in)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

// handleJoin handles POST /v1/conversations/join. It opens a conversation,
// or resumes one by id and replays its transcript. Knowing the id is the
// access check, as for the event stream.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusServiceUnavailable, "Router not configured")
		return
	}

	var req router.JoinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	joined, err := s.router.Join(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	status := http.StatusOK
	if joined.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, joined)
}

// handleEscalate handles POST /v1/conversations/{id}/escalate.
func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusServiceUnavailable, "Router not configured")
		return
	}

	a, err := s.router.Escalate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ReleaseResponse reports the outcome of a release.
type ReleaseResponse struct {
	Released   bool               `json:"released"`
	Assignment *ledger.Assignment `json:"assignment,omitempty"`
}

// handleRelease handles POST /v1/conversations/{id}/release.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusServiceUnavailable, "Router not configured")
		return
	}

	a, released, err := s.router.Release(r.Context(), r.PathValue("id"), BearerToken(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp := ReleaseResponse{Released: released}
	if released {
		resp.Assignment = &a
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// AGENT DASHBOARD HANDLERS
// ============================================================================

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	store := s.transcriptStore()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcript store not configured")
		return
	}

	metas, err := store.ListConversations(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if metas == nil {
		metas = []storage.ConversationMeta{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": metas})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	store := s.transcriptStore()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcript store not configured")
		return
	}

	conv, err := store.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	l := s.assignmentLedger()
	if l == nil {
		writeError(w, http.StatusServiceUnavailable, "Ledger not configured")
		return
	}
	id := r.PathValue("id")
	if !storage.ValidID(id) {
		writeError(w, http.StatusBadRequest, router.NoticeInvalidID)
		return
	}

	history, err := l.History(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if history == nil {
		history = []ledger.Assignment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": history})
}

func (s *Server) handleMyAssignments(w http.ResponseWriter, r *http.Request) {
	l := s.assignmentLedger()
	if l == nil {
		writeError(w, http.StatusServiceUnavailable, "Ledger not configured")
		return
	}
	ident, _ := IdentityFrom(r.Context())

	active, err := l.ActiveByAgent(r.Context(), ident.AgentID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if active == nil {
		active = []ledger.Assignment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":       ident,
		"assignments": active,
	})
}

// LoginRequest is the body of POST /v1/agents/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	dir := s.agentDirectory()
	if dir == nil {
		writeError(w, http.StatusServiceUnavailable, "Agent directory not configured")
		return
	}

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	sess, err := dir.Login(req.Username, req.Password, req.TOTPCode)
	switch {
	case errors.Is(err, agents.ErrMFARequired):
		writeError(w, http.StatusUnauthorized, "One-time code required")
		return
	case err != nil:
		s.logger.Info("login failed", slog.String("ip", GetClientIP(r)))
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	dir := s.agentDirectory()
	if dir == nil {
		writeError(w, http.StatusServiceUnavailable, "Agent directory not configured")
		return
	}
	token := BearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, router.NoticeUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"logged_out": dir.Logout(token)})
}

// ============================================================================
// KNOWLEDGE AND EVALUATION HANDLERS
// ============================================================================

// SearchResponse is the body of GET /v1/knowledge/search.
type SearchResponse struct {
	Query    string             `json:"query"`
	Stage    string             `json:"stage"`
	Category string             `json:"category,omitempty"`
	Results  []knowledge.Result `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ix := s.index
	s.mu.RUnlock()
	if ix == nil {
		writeError(w, http.StatusServiceUnavailable, "Knowledge index not configured")
		return
	}

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxSearchLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(MaxSearchLimit))
			return
		}
		limit = n
	}

	res := ix.SearchDetailed(query, q.Get("category"), limit)
	results := res.Results
	if results == nil {
		results = []knowledge.Result{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:    query,
		Stage:    res.Stage.String(),
		Category: res.Category,
		Results:  results,
	})
}

// handleCategories handles GET /v1/categories, the labels a customer may
// pass as a message's category hint.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ix := s.index
	s.mu.RUnlock()
	if ix == nil {
		writeError(w, http.StatusServiceUnavailable, "Knowledge index not configured")
		return
	}

	categories := ix.Categories()
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

// EvaluateRequest is the body of POST /v1/evaluate.
type EvaluateRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ev := s.evaluator
	s.mu.RUnlock()
	if ev == nil {
		writeError(w, http.StatusServiceUnavailable, "Evaluator not configured")
		return
	}

	var req EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "Answer is required")
		return
	}
	writeJSON(w, http.StatusOK, ev.Evaluate(req.Question, req.Answer))
}

// ============================================================================
// HEALTH AND STATS HANDLERS
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	KnowledgeEntries int    `json:"knowledge_entries"`
	OnlineAgents     int    `json:"online_agents"`
	Subscribers      int    `json:"subscribers"`
}

// handleHealth handles GET /health. An empty corpus degrades the service
// without failing it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ix, dir, hub := s.index, s.directory, s.hub
	s.mu.RUnlock()

	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if ix != nil {
		health.KnowledgeEntries = ix.Len()
	}
	if ix == nil || health.KnowledgeEntries == 0 {
		health.Status = "degraded"
	}
	if dir != nil {
		health.OnlineAgents = len(dir.OnlineAgents(agents.RoleSupport))
	}
	if hub != nil {
		health.Subscribers = hub.Subscribers()
	}
	writeJSON(w, http.StatusOK, health)
}

// StatsResponse represents the routing statistics response.
type StatsResponse struct {
	router.Stats
	AverageScore  float64 `json:"average_score"`
	Summary       string  `json:"summary"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusServiceUnavailable, "Router not configured")
		return
	}
	stats := s.router.Stats()
	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:         stats.Snapshot(),
		AverageScore:  stats.AverageScore(),
		Summary:       stats.Summary(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

// ============================================================================
// ACCESSORS
// ============================================================================

func (s *Server) transcriptStore() storage.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcripts
}

func (s *Server) assignmentLedger() *ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

func (s *Server) agentDirectory() *agents.Directory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.directory
}
