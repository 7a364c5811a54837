// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/broadcast"
	"github.com/FenixFighter/WebWibe/internal/config"
	"github.com/FenixFighter/WebWibe/internal/evaluator"
	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/ledger"
	"github.com/FenixFighter/WebWibe/internal/llm"
	"github.com/FenixFighter/WebWibe/internal/logging"
	"github.com/FenixFighter/WebWibe/internal/router"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

// =============================================================================
// FIXTURE
// =============================================================================

const goodAnswer = "You can reset your password from the login page: choose Forgot password, " +
	"enter your account email and follow the link we send you."

var corpus = []knowledge.Entry{
	{Question: "How do I reset my password?", Answer: "Use Forgot password on the login page.", Category: "Online banking"},
	{Question: "How do I block my card?", Answer: "Block it in the app under Cards.", Category: "Cards"},
	{Question: "What is the loan interest rate?", Answer: "Rates start at 9.9%.", Category: "Loans"},
}

type fixture struct {
	srv         *Server
	handler     http.Handler
	hub         *broadcast.Hub
	directory   *agents.Directory
	transcripts *storage.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.Discard()

	pw, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	dir, err := agents.NewDirectory([]agents.Account{
		{ID: "agent-1", Username: "alice", PasswordHash: string(pw)},
		{ID: "viewer-1", Username: "victor", Role: "viewer", PasswordHash: string(pw)},
	}, agents.WithLogger(logger))
	require.NoError(t, err)

	l := ledger.New(ledger.NewMemoryStore(), dir, ledger.WithLogger(logger))
	ix := knowledge.NewIndex(knowledge.DefaultConfig(), corpus, logger)
	ev := evaluator.New(evaluator.DefaultConfig())
	transcripts := storage.NewMemoryStore()
	hub := broadcast.NewHub(logger)

	rt, err := router.New(router.Deps{
		Ledger:      l,
		Index:       ix,
		Generator:   llm.Static(goodAnswer),
		Evaluator:   ev,
		Verifier:    dir,
		Transcripts: transcripts,
		Publisher:   hub,
	}, router.WithLogger(logger))
	require.NoError(t, err)

	cfg := config.Default().Server
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	cfg.CORSOrigins = []string{"https://chat.example.com", "*.example.org"}

	srv := NewServer(cfg, rt).
		WithLogger(logger).
		WithIndex(ix).
		WithEvaluator(ev).
		WithDirectory(dir).
		WithLedger(l).
		WithTranscripts(transcripts).
		WithHub(hub)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &fixture{
		srv:         srv,
		handler:     srv.Handler(),
		hub:         hub,
		directory:   dir,
		transcripts: transcripts,
	}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, username string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/agents/login", "", LoginRequest{Username: username, Password: "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess agents.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

type outcomeBody struct {
	ConversationID string             `json:"conversation_id"`
	Path           string             `json:"path"`
	Created        bool               `json:"created"`
	Reply          *broadcast.Message `json:"reply"`
	Quality        *evaluator.Quality `json:"quality"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorMessageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorBody](t, rec).Error.Message
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_NewConversationGetsAutomatedAnswer(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/messages", "", map[string]string{
		"content":       "How do I reset my password?",
		"customer_name": "Dana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decode[outcomeBody](t, rec)
	assert.True(t, out.Created)
	assert.Equal(t, "automated", out.Path)
	require.NotNil(t, out.Reply)
	assert.Equal(t, goodAnswer, out.Reply.Content)
	assert.Equal(t, broadcast.SenderAI, out.Reply.Sender)
	require.NotNil(t, out.Quality)

	conv, err := f.transcripts.Load(context.Background(), out.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Dana", conv.CustomerName)
	assert.Len(t, conv.Messages, 2)
}

func TestMessage_ExistingConversation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/messages", "", map[string]string{
		"conversation_id": "conv-1",
		"content":         "How do I block my card?",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[outcomeBody](t, rec)
	assert.False(t, out.Created)
	assert.Equal(t, "conv-1", out.ConversationID)
}

func TestJoin_NewAndResume(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/conversations/join", "", map[string]string{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	joined := decode[router.Joined](t, rec)
	assert.True(t, joined.Created)
	require.NotEmpty(t, joined.ConversationID)
	assert.Empty(t, joined.Messages)
	assert.Nil(t, joined.Assignment)
	id := joined.ConversationID

	rec = f.do(t, http.MethodPost, "/v1/messages", "", map[string]string{
		"conversation_id": id,
		"content":         "How do I reset my password?",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/conversations/join", "", router.JoinRequest{
		ConversationID: id,
		CustomerEmail:  "dana@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	joined = decode[router.Joined](t, rec)
	assert.False(t, joined.Created)
	require.Len(t, joined.Messages, 2)
	assert.Equal(t, storage.SenderUser, joined.Messages[0].Sender)
	assert.Equal(t, storage.SenderAutomated, joined.Messages[1].Sender)
	assert.Equal(t, goodAnswer, joined.Messages[1].Content)

	conv, err := f.transcripts.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", conv.CustomerEmail)

	f.login(t, "alice")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/conversations/"+id+"/escalate", "", nil).Code)
	rec = f.do(t, http.MethodPost, "/v1/conversations/join", "", router.JoinRequest{ConversationID: id})
	require.Equal(t, http.StatusOK, rec.Code)
	joined = decode[router.Joined](t, rec)
	require.NotNil(t, joined.Assignment)
	assert.Equal(t, "agent-1", joined.Assignment.AgentID)

	rec = f.do(t, http.MethodPost, "/v1/conversations/join", "", router.JoinRequest{ConversationID: "../x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, router.NoticeInvalidID, errorMessageOf(t, rec))
}

func TestMessage_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		token   string
		body    any
		status  int
		message string
	}{
		{"empty content", "", map[string]string{"content": "   "}, http.StatusBadRequest, router.NoticeContentRequired},
		{"malformed json", "", "{not json", http.StatusBadRequest, "Invalid request format"},
		{"unknown agent token", "nope", map[string]string{"conversation_id": "conv-1", "content": "hi"}, http.StatusUnauthorized, router.NoticeUnauthorized},
		{"invalid id", "", map[string]string{"conversation_id": "../etc", "content": "hi"}, http.StatusBadRequest, router.NoticeInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/messages", tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.message, errorMessageOf(t, rec))
		})
	}
}

func TestMessage_BodyTooLarge(t *testing.T) {
	f := newFixture(t)

	body := `{"content":"` + strings.Repeat("a", MaxRequestBodySize+10) + `"}`
	rec := f.do(t, http.MethodPost, "/v1/messages", "", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// =============================================================================
// ESCALATION AND RELEASE TESTS
// =============================================================================

func TestEscalate_NoAgentsOnline(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/conversations/conv-1/escalate", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, router.NoticeNoAgents, errorMessageOf(t, rec))
}

func TestEscalateRelease_AgentLifecycle(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice")

	rec := f.do(t, http.MethodPost, "/v1/conversations/conv-1/escalate", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[ledger.Assignment](t, rec)
	assert.Equal(t, "agent-1", a.AgentID)
	assert.True(t, a.Active())

	// Customer messages are now relayed, not answered.
	rec = f.do(t, http.MethodPost, "/v1/messages", "", map[string]string{"conversation_id": "conv-1", "content": "hello?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "human_attached", decode[outcomeBody](t, rec).Path)

	rec = f.do(t, http.MethodGet, "/v1/agents/me/assignments", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[struct {
		Agent       agents.Identity     `json:"agent"`
		Assignments []ledger.Assignment `json:"assignments"`
	}](t, rec)
	assert.Equal(t, "agent-1", mine.Agent.AgentID)
	require.Len(t, mine.Assignments, 1)
	assert.Equal(t, "conv-1", mine.Assignments[0].ConversationID)

	rec = f.do(t, http.MethodPost, "/v1/conversations/conv-1/release", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rel := decode[ReleaseResponse](t, rec)
	assert.True(t, rel.Released)
	require.NotNil(t, rel.Assignment)
	assert.Equal(t, "agent-1", rel.Assignment.AgentID)

	// Second release is a no-op.
	rec = f.do(t, http.MethodPost, "/v1/conversations/conv-1/release", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ReleaseResponse](t, rec).Released)

	rec = f.do(t, http.MethodGet, "/v1/conversations/conv-1/assignments", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Assignments []ledger.Assignment `json:"assignments"`
	}](t, rec)
	require.Len(t, history.Assignments, 1)
	assert.Equal(t, ledger.StatusResolved, history.Assignments[0].Status)
}

func TestRelease_Unauthorized(t *testing.T) {
	f := newFixture(t)
	viewer := f.login(t, "victor")

	rec := f.do(t, http.MethodPost, "/v1/conversations/conv-1/release", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, router.NoticeTokenRequired, errorMessageOf(t, rec))

	rec = f.do(t, http.MethodPost, "/v1/conversations/conv-1/release", viewer, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, router.NoticeReleaseForbidden, errorMessageOf(t, rec))
}

func TestAgentMessage_ClaimsConversation(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice")

	rec := f.do(t, http.MethodPost, "/v1/messages", token, map[string]string{
		"conversation_id": "conv-7",
		"content":         "Hi, this is Alice from support.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "agent_relay", decode[outcomeBody](t, rec).Path)
}

// =============================================================================
// AGENT SESSION AND DASHBOARD TESTS
// =============================================================================

func TestLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/agents/login", "", LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/agents/login", "", LoginRequest{Username: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	token := f.login(t, "alice")
	assert.Equal(t, []string{"agent-1"}, f.directory.OnlineAgents(agents.RoleSupport))

	rec = f.do(t, http.MethodPost, "/v1/agents/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"logged_out": true}, decode[map[string]bool](t, rec))
	assert.Empty(t, f.directory.OnlineAgents(agents.RoleSupport))

	rec = f.do(t, http.MethodPost, "/v1/agents/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboard_RequiresSupportAgent(t *testing.T) {
	f := newFixture(t)
	viewer := f.login(t, "victor")

	paths := []string{
		"/v1/conversations",
		"/v1/conversations/conv-1/messages",
		"/v1/conversations/conv-1/assignments",
		"/v1/agents/me/assignments",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, p, "", nil).Code)
			assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, p, viewer, nil).Code)
		})
	}
}

func TestDashboard_ConversationsAndTranscript(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice")

	rec := f.do(t, http.MethodPost, "/v1/messages", "", map[string]string{"conversation_id": "conv-1", "content": "How do I block my card?"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/conversations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Conversations []storage.ConversationMeta `json:"conversations"`
	}](t, rec)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "conv-1", list.Conversations[0].ID)

	rec = f.do(t, http.MethodGet, "/v1/conversations/conv-1/messages", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	conv := decode[storage.Conversation](t, rec)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, storage.SenderUser, conv.Messages[0].Sender)
	assert.Equal(t, storage.SenderAutomated, conv.Messages[1].Sender)

	rec = f.do(t, http.MethodGet, "/v1/conversations/missing/messages", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// KNOWLEDGE AND EVALUATION TESTS
// =============================================================================

func TestSearch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/knowledge/search?q=reset+my+password&limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[SearchResponse](t, rec)
	assert.Equal(t, "ranked", res.Stage)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "How do I reset my password?", res.Results[0].Entry.Question)

	tests := []struct {
		name  string
		query string
	}{
		{"missing q", "/v1/knowledge/search"},
		{"zero limit", "/v1/knowledge/search?q=card&limit=0"},
		{"limit too large", "/v1/knowledge/search?q=card&limit=500"},
		{"limit not a number", "/v1/knowledge/search?q=card&limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, tt.query, "", nil).Code)
		})
	}
}

func TestCategories(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]string](t, rec)
	assert.Equal(t, []string{"Online banking", "Cards", "Loans"}, body["categories"])
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/evaluate", "", EvaluateRequest{
		Question: "How do I reset my password?",
		Answer:   goodAnswer,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[evaluator.Quality](t, rec)
	assert.Equal(t, evaluator.New(evaluator.DefaultConfig()).Evaluate("How do I reset my password?", goodAnswer), q)

	rec = f.do(t, http.MethodPost, "/v1/evaluate", "", EvaluateRequest{Question: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HEALTH, STATS AND METRICS TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, len(corpus), h.KnowledgeEntries)
}

func TestHealth_DegradedWithoutIndex(t *testing.T) {
	srv := NewServer(config.Default().Server, nil).WithLogger(logging.Discard())
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[HealthResponse](t, rec).Status)
}

func TestMissingCollaborators(t *testing.T) {
	srv := NewServer(config.Default().Server, nil).WithLogger(logging.Discard())
	defer srv.Shutdown(context.Background())
	h := srv.Handler()

	paths := []struct{ method, path string }{
		{http.MethodPost, "/v1/messages"},
		{http.MethodPost, "/v1/conversations/c/escalate"},
		{http.MethodGet, "/v1/knowledge/search?q=x"},
		{http.MethodPost, "/v1/evaluate"},
		{http.MethodGet, "/v1/events?conversation_id=c"},
		{http.MethodGet, "/v1/conversations"},
		{http.MethodGet, "/stats"},
	}
	for _, p := range paths {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, p.path)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/v1/messages", "", map[string]string{"content": "How do I reset my password?"})
	f.do(t, http.MethodPost, "/v1/messages", "", map[string]string{"content": ""})

	rec := f.do(t, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, stats["messages"])
	assert.EqualValues(t, 1, stats["automated"])
	assert.EqualValues(t, 1, stats["rejected"])
	assert.Contains(t, stats["summary"], "Router: 2 messages")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "webwibe_router_discarded_answers_total")
}

// =============================================================================
// EVENT STREAM TESTS
// =============================================================================

func TestEvents_ConversationStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events?conversation_id=conv-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	other := broadcast.NewMessage(broadcast.TypeMessage, "conv-2", "not for you", broadcast.SenderAI)
	mine := broadcast.NewMessage(broadcast.TypeMessage, "conv-1", "for you", broadcast.SenderAI)
	require.NoError(t, f.hub.Publish(ctx, broadcast.ChannelChat, other))
	require.NoError(t, f.hub.Publish(ctx, broadcast.ChannelChat, mine))

	var id, event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(line, "id: "):
			id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	assert.Equal(t, mine.ID, id)
	assert.Equal(t, "MESSAGE", event)
	var d broadcast.Delivery
	require.NoError(t, json.Unmarshal([]byte(data), &d))
	assert.Equal(t, broadcast.ChannelChat, d.Channel)
	assert.Equal(t, "for you", d.Message.Content)
}

func TestEvents_AllConversationsRequireAgent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/events?conversation_id=../x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents_AgentStreamEndsWithSession(t *testing.T) {
	old := HeartbeatInterval
	HeartbeatInterval = 20 * time.Millisecond
	t.Cleanup(func() { HeartbeatInterval = old })

	f := newFixture(t)
	token := f.login(t, "alice")
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	// Heartbeats keep the session alive while the stream is open.
	for line != ": ping\n" {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"agent-1"}, f.directory.OnlineAgents(agents.RoleSupport))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/agents/logout", token, nil).Code)
	for err == nil {
		_, err = reader.ReadString('\n')
	}
	assert.ErrorIs(t, err, io.EOF)
}
