// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/broadcast"
	"github.com/FenixFighter/WebWibe/internal/ledger"
	"github.com/FenixFighter/WebWibe/internal/llm"
	"github.com/FenixFighter/WebWibe/internal/metrics"
	"github.com/FenixFighter/WebWibe/internal/storage"
	"github.com/FenixFighter/WebWibe/internal/util"
)

// Deps are the collaborators a Router needs. Publisher may be nil.
type Deps struct {
	Ledger      Ledger
	Index       Searcher
	Generator   llm.Generator
	Evaluator   Evaluator
	Verifier    Verifier
	Transcripts storage.Store
	Publisher   broadcast.Publisher
}

// Router decides, per inbound message, whether it is relayed to a human,
// answered automatically or rejected. Messages on one conversation are
// serialized; different conversations proceed in parallel.
type Router struct {
	ledger      Ledger
	index       Searcher
	generator   llm.Generator
	evaluator   Evaluator
	verifier    Verifier
	transcripts storage.Store
	publisher   broadcast.Publisher

	policy Policy
	locks  *util.KeyedMutex
	stats  *Stats
	logger *slog.Logger
	newID  func() string
}

// Option configures a Router.
type Option func(*Router)

// WithPolicy replaces the default escalation and generation policy.
func WithPolicy(p Policy) Option {
	return func(r *Router) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithStats shares a Stats instance.
func WithStats(s *Stats) Option {
	return func(r *Router) { r.stats = s }
}

// WithIDGenerator overrides how new conversation ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(r *Router) { r.newID = fn }
}

// New wires a Router.
func New(deps Deps, opts ...Option) (*Router, error) {
	switch {
	case deps.Ledger == nil:
		return nil, errors.New("router: ledger is required")
	case deps.Index == nil:
		return nil, errors.New("router: knowledge index is required")
	case deps.Generator == nil:
		return nil, errors.New("router: generator is required")
	case deps.Evaluator == nil:
		return nil, errors.New("router: evaluator is required")
	case deps.Verifier == nil:
		return nil, errors.New("router: credential verifier is required")
	case deps.Transcripts == nil:
		return nil, errors.New("router: transcript store is required")
	}

	r := &Router{
		ledger:      deps.Ledger,
		index:       deps.Index,
		generator:   deps.Generator,
		evaluator:   deps.Evaluator,
		verifier:    deps.Verifier,
		transcripts: deps.Transcripts,
		publisher:   deps.Publisher,
		policy:      DefaultPolicy(),
		locks:       util.NewKeyedMutex(),
		stats:       NewStats(),
		logger:      slog.Default(),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.policy = r.policy.withDefaults()
	r.logger = r.logger.With("component", "router")
	if r.publisher == nil {
		r.publisher = broadcast.NewFallback(r.logger)
	}
	return r, nil
}

// Stats returns the live counters.
func (r *Router) Stats() *Stats { return r.stats }

// Policy returns the effective policy.
func (r *Router) Policy() Policy { return r.policy }

// ============================================================================
// MESSAGE HANDLING
// ============================================================================

// HandleMessage routes one inbound message. A message carrying a credential
// is an agent message; anything else comes from the customer.
//
// Rejections are broadcast as ERROR messages and also returned, wrapping
// ErrValidation or ErrUnauthorized. Generator failures are never returned.
func (r *Router) HandleMessage(ctx context.Context, in Inbound) (Outcome, error) {
	content := strings.TrimSpace(in.Content)
	r.logger.Debug("message received",
		slog.String("conversation_id", in.ConversationID),
		slog.Bool("agent", in.Credential != ""),
		slog.Int("length", len(content)),
	)

	if content == "" {
		return r.reject(ctx, in.ConversationID, NoticeContentRequired, ErrValidation)
	}
	if in.Credential != "" {
		return r.handleAgent(ctx, in)
	}
	return r.handleCustomer(ctx, in, content)
}

func (r *Router) handleAgent(ctx context.Context, in Inbound) (Outcome, error) {
	ident, err := r.verify(in.Credential)
	if err != nil {
		r.logger.Warn("agent credential rejected",
			slog.String("conversation_id", in.ConversationID),
			slog.Any("error", err),
		)
		return r.reject(ctx, in.ConversationID, NoticeUnauthorized, ErrUnauthorized)
	}
	id := in.ConversationID
	if id == "" {
		return r.reject(ctx, "", NoticeConversationIDReq, ErrValidation)
	}
	if !storage.ValidID(id) {
		return r.reject(ctx, "", NoticeInvalidID, ErrValidation)
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	a, err := r.ledger.Claim(ctx, id, ident.AgentID)
	if err != nil {
		return Outcome{ConversationID: id}, r.fail(ctx, id, "claim conversation", err)
	}
	if a.AgentID != ident.AgentID {
		r.logger.Info("agent relaying on a conversation held by another agent",
			slog.String("conversation_id", id),
			slog.String("agent_id", ident.AgentID),
			slog.String("assigned_agent_id", a.AgentID),
		)
	}

	r.persist(ctx, id, in.Content, storage.SenderHuman)
	msg := broadcast.NewMessage(broadcast.TypeMessage, id, in.Content, broadcast.SenderSupport)
	r.publish(ctx, broadcast.ChannelChat, msg)

	out := Outcome{ConversationID: id, Path: PathAgentRelay, Relayed: &msg, Assignment: &a}
	r.finish(out, slog.String("agent_id", ident.AgentID))
	return out, nil
}

func (r *Router) handleCustomer(ctx context.Context, in Inbound, content string) (Outcome, error) {
	id := in.ConversationID
	created := false
	if id == "" {
		id = r.newID()
		created = true
	} else if !storage.ValidID(id) {
		return r.reject(ctx, "", NoticeInvalidID, ErrValidation)
	}

	if created || in.CustomerName != "" || in.CustomerEmail != "" {
		if _, err := r.transcripts.CreateConversation(ctx, id, in.CustomerName, in.CustomerEmail); err != nil {
			r.logger.Warn("create conversation failed", slog.String("conversation_id", id), slog.Any("error", err))
		}
	}
	if created {
		r.publish(ctx, broadcast.ChannelChat,
			broadcast.NewMessage(broadcast.TypeChatCreated, id, NoticeChatCreated, broadcast.SenderSystem))
	}

	out := Outcome{ConversationID: id, Created: created}

	// Relay and decide under the conversation lock.
	unlock := r.locks.Lock(id)
	history := r.history(ctx, id)
	r.persist(ctx, id, in.Content, storage.SenderUser)
	echo := broadcast.NewMessage(broadcast.TypeMessage, id, in.Content, broadcast.SenderUser)
	r.publish(ctx, broadcast.ChannelChat, echo)
	r.publish(ctx, broadcast.ChannelSupportActivity, broadcast.NewMessage(
		broadcast.TypeChatActivity, id,
		"New message in chat: "+util.Preview(content, ActivityPreviewRunes),
		broadcast.SenderSystem,
	))
	out.Relayed = &echo

	current, active, err := r.ledger.Current(ctx, id)
	if err != nil {
		unlock()
		return out, r.fail(ctx, id, "check assignment", err)
	}
	if active {
		unlock()
		out.Path = PathHumanAttached
		out.Assignment = &current
		r.finish(out, slog.String("agent_id", current.AgentID))
		return out, nil
	}

	limit := r.policy.ContextEntries
	if n := r.policy.SuggestionLimit + 1; n > limit {
		limit = n
	}
	result := r.index.SearchDetailed(content, in.Category, limit)
	matches := result.Entries()
	grounding := matches
	if len(grounding) > r.policy.ContextEntries {
		grounding = grounding[:r.policy.ContextEntries]
	}
	prompt := BuildPrompt(content, grounding, history)
	unlock()

	answer := r.generate(ctx, id, prompt)
	quality := r.evaluator.Evaluate(content, answer)
	out.Quality = &quality
	out.Stage = result.Stage.String()

	unlock = r.locks.Lock(id)
	defer unlock()

	// A human may have attached while the generator was running.
	current, active, err = r.ledger.Current(ctx, id)
	if err != nil {
		return out, r.fail(ctx, id, "check assignment", err)
	}
	if active {
		metrics.RouterDiscardedAnswers.Inc()
		out.Path = PathDiscarded
		out.Assignment = &current
		r.finish(out, slog.String("agent_id", current.AgentID))
		return out, nil
	}

	if trigger := r.policy.EscalationTrigger(answer, quality); trigger != "" {
		a, err := r.ledger.Assign(ctx, id)
		switch {
		case err == nil:
			metrics.RouterEscalations.WithLabelValues(trigger, "assigned").Inc()
			notice := r.announceEscalation(ctx, id)
			out.Path = PathEscalated
			out.Reply = &notice
			out.Assignment = &a
			r.finish(out, slog.String("trigger", trigger), slog.Int("score", quality.Score))
			return out, nil
		case errors.Is(err, ledger.ErrNoAgentsAvailable):
			metrics.RouterEscalations.WithLabelValues(trigger, "no_agents").Inc()
			r.logger.Info("auto escalation found no agents, sending answer",
				slog.String("conversation_id", id),
				slog.String("trigger", trigger),
			)
		default:
			metrics.RouterEscalations.WithLabelValues(trigger, "error").Inc()
			r.logger.Error("auto escalation failed", slog.String("conversation_id", id), slog.Any("error", err))
		}
	}

	r.persist(ctx, id, answer, storage.SenderAutomated)
	reply := broadcast.NewMessage(broadcast.TypeMessage, id, answer, broadcast.SenderAI)
	reply.Rating = &quality
	reply.Suggestions = suggestions(content, matches, r.policy.SuggestionLimit)
	r.publish(ctx, broadcast.ChannelChat, reply)

	out.Path = PathAutomated
	out.Reply = &reply
	r.stats.recordScore(quality.Score)
	r.finish(out,
		slog.Int("score", quality.Score),
		slog.String("search_stage", out.Stage),
		slog.Int("suggestions", len(reply.Suggestions)),
	)
	return out, nil
}

type generation struct {
	text string
	err  error
}

// generate calls the generator with a deadline. Any failure yields the
// fallback answer.
func (r *Router) generate(ctx context.Context, id, prompt string) string {
	gctx, cancel := context.WithTimeout(ctx, r.policy.GeneratorTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan generation, 1)
	go func() {
		text, err := r.generator.GenerateAnswer(gctx, prompt)
		done <- generation{text: text, err: err}
	}()

	var res generation
	select {
	case res = <-done:
	case <-gctx.Done():
		res.err = &llm.ClientError{Type: llm.ErrTypeTimeout, Message: "generation timed out", Cause: gctx.Err()}
	}
	metrics.GeneratorLatency.Observe(time.Since(start).Seconds())

	if res.err == nil && strings.TrimSpace(res.text) == "" {
		res.err = llm.ErrEmptyAnswer
	}
	if res.err != nil {
		reason := llm.Reason(res.err)
		if errors.Is(gctx.Err(), context.DeadlineExceeded) {
			reason = llm.ErrTypeTimeout.String()
		}
		metrics.GeneratorFailures.WithLabelValues(reason).Inc()
		r.stats.recordGeneratorFailure()
		r.logger.Warn("generator failed, using fallback answer",
			slog.String("conversation_id", id),
			slog.String("reason", reason),
			slog.Any("error", res.err),
		)
		return r.policy.FallbackAnswer
	}
	return strings.TrimSpace(res.text)
}

// ============================================================================
// ESCALATION
// ============================================================================

// Escalate hands the conversation to an online agent. With nobody online it
// broadcasts an error, leaves the conversation unassigned and returns an
// error wrapping ErrUnavailable. Escalating an already assigned conversation
// returns the existing assignment.
func (r *Router) Escalate(ctx context.Context, conversationID string) (ledger.Assignment, error) {
	if strings.TrimSpace(conversationID) == "" {
		r.publishError(ctx, "", NoticeConversationIDReq)
		return ledger.Assignment{}, fmt.Errorf("%w: %s", ErrValidation, NoticeConversationIDReq)
	}
	if !storage.ValidID(conversationID) {
		r.publishError(ctx, "", NoticeInvalidID)
		return ledger.Assignment{}, fmt.Errorf("%w: %s", ErrValidation, NoticeInvalidID)
	}

	unlock := r.locks.Lock(conversationID)
	defer unlock()

	a, err := r.ledger.Assign(ctx, conversationID)
	if errors.Is(err, ledger.ErrNoAgentsAvailable) {
		metrics.RouterEscalations.WithLabelValues(TriggerExplicit, "no_agents").Inc()
		r.stats.recordEscalation(false)
		r.publishError(ctx, conversationID, NoticeNoAgents)
		r.logger.Info("escalation failed: no agents online", slog.String("conversation_id", conversationID))
		return ledger.Assignment{}, fmt.Errorf("%w: %s", ErrUnavailable, NoticeNoAgents)
	}
	if err != nil {
		metrics.RouterEscalations.WithLabelValues(TriggerExplicit, "error").Inc()
		return ledger.Assignment{}, r.fail(ctx, conversationID, "escalate", err)
	}

	metrics.RouterEscalations.WithLabelValues(TriggerExplicit, "assigned").Inc()
	r.stats.recordEscalation(true)
	r.announceEscalation(ctx, conversationID)
	r.logger.Info("conversation escalated",
		slog.String("conversation_id", conversationID),
		slog.String("agent_id", a.AgentID),
	)
	return a, nil
}

func (r *Router) announceEscalation(ctx context.Context, id string) broadcast.Message {
	r.persist(ctx, id, NoticeEscalated, storage.SenderSystem)
	notice := broadcast.NewMessage(broadcast.TypeEscalation, id, NoticeEscalated, broadcast.SenderSystem)
	r.publish(ctx, broadcast.ChannelChat, notice)
	return notice
}

// Release returns the conversation to automated handling. The credential
// must belong to a support agent. Releasing a conversation nobody holds is a
// no-op and reports false.
func (r *Router) Release(ctx context.Context, conversationID, credential string) (ledger.Assignment, bool, error) {
	if strings.TrimSpace(conversationID) == "" {
		r.publishError(ctx, "", NoticeConversationIDReq)
		return ledger.Assignment{}, false, fmt.Errorf("%w: %s", ErrValidation, NoticeConversationIDReq)
	}
	if credential == "" {
		r.publishError(ctx, conversationID, NoticeTokenRequired)
		return ledger.Assignment{}, false, fmt.Errorf("%w: %s", ErrUnauthorized, NoticeTokenRequired)
	}
	ident, err := r.verify(credential)
	if err != nil {
		r.publishError(ctx, conversationID, NoticeReleaseForbidden)
		return ledger.Assignment{}, false, fmt.Errorf("%w: %s", ErrUnauthorized, NoticeReleaseForbidden)
	}

	unlock := r.locks.Lock(conversationID)
	defer unlock()

	a, ok, err := r.ledger.Resolve(ctx, conversationID)
	if err != nil {
		return ledger.Assignment{}, false, r.fail(ctx, conversationID, "release", err)
	}
	if !ok {
		r.logger.Debug("release with no active assignment", slog.String("conversation_id", conversationID))
		return ledger.Assignment{}, false, nil
	}

	r.stats.recordRelease()
	r.persist(ctx, conversationID, NoticeReleased, storage.SenderSystem)
	r.publish(ctx, broadcast.ChannelChat,
		broadcast.NewMessage(broadcast.TypeMessage, conversationID, NoticeReleased, broadcast.SenderSystem))
	r.logger.Info("conversation released",
		slog.String("conversation_id", conversationID),
		slog.String("agent_id", a.AgentID),
		slog.String("released_by", ident.AgentID),
	)
	return a, true, nil
}

// ============================================================================
// HELPERS
// ============================================================================

// verify accepts only credentials of the configured agent role.
func (r *Router) verify(token string) (agents.Identity, error) {
	ident, err := r.verifier.VerifyAgentCredential(token)
	if err != nil {
		return agents.Identity{}, err
	}
	if ident.Role != r.policy.AgentRole {
		return agents.Identity{}, fmt.Errorf("role %q is not %q", ident.Role, r.policy.AgentRole)
	}
	return ident, nil
}

func (r *Router) history(ctx context.Context, id string) []storage.ChatMessage {
	if r.policy.HistoryMessages <= 0 {
		return nil
	}
	msgs, err := r.transcripts.FetchTranscript(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("fetch transcript failed", slog.String("conversation_id", id), slog.Any("error", err))
		}
		return nil
	}
	return recent(msgs, r.policy.HistoryMessages)
}

func (r *Router) persist(ctx context.Context, id, content string, sender storage.SenderKind) {
	if _, err := r.transcripts.PersistTranscript(ctx, id, content, sender); err != nil {
		r.logger.Error("persist transcript failed",
			slog.String("conversation_id", id),
			slog.String("sender", string(sender)),
			slog.Any("error", err),
		)
	}
}

// publish is fire-and-forget.
func (r *Router) publish(ctx context.Context, channel string, msg broadcast.Message) {
	if err := r.publisher.Publish(ctx, channel, msg); err != nil {
		r.logger.Warn("broadcast failed",
			slog.String("channel", channel),
			slog.String("type", string(msg.Type)),
			slog.Any("error", err),
		)
	}
}

func (r *Router) publishError(ctx context.Context, id, notice string) {
	r.publish(ctx, broadcast.ChannelChatError,
		broadcast.NewMessage(broadcast.TypeError, id, notice, broadcast.SenderSystem))
}

// fail reports a collaborator failure to the conversation and wraps err.
func (r *Router) fail(ctx context.Context, id, op string, err error) error {
	r.logger.Error(op+" failed", slog.String("conversation_id", id), slog.Any("error", err))
	r.publishError(ctx, id, NoticeProcessingFailed)
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Router) reject(ctx context.Context, id, notice string, kind error) (Outcome, error) {
	r.publishError(ctx, id, notice)
	out := Outcome{ConversationID: id, Path: PathRejected}
	r.finish(out, slog.String("reason", notice))
	return out, fmt.Errorf("%w: %s", kind, notice)
}

func (r *Router) finish(out Outcome, attrs ...any) {
	metrics.RouterMessages.WithLabelValues(out.Path.String()).Inc()
	r.stats.recordPath(out.Path)
	args := append([]any{
		slog.String("conversation_id", out.ConversationID),
		slog.String("path", out.Path.String()),
	}, attrs...)
	r.logger.Info("message routed", args...)
}
