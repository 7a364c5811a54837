// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/FenixFighter/WebWibe/internal/metrics"
	"github.com/FenixFighter/WebWibe/internal/util"
)

// DefaultRole is the agent role eligible for assignment.
const DefaultRole = "support"

// Ledger serializes assignment changes per conversation.
type Ledger struct {
	store    Store
	presence Presence
	role     string
	now      func() time.Time
	logger   *slog.Logger
	locks    *util.KeyedMutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRole sets the agent role Assign picks from.
func WithRole(role string) Option {
	return func(l *Ledger) { l.role = role }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a ledger over store, picking agents from presence. The
// active-assignments gauge is seeded from the store.
func New(store Store, presence Presence, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		presence: presence,
		role:     DefaultRole,
		now:      time.Now,
		logger:   slog.Default(),
		locks:    util.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "ledger")
	l.syncActiveGauge(context.Background())
	return l
}

// syncActiveGauge sets the gauge to the store's active count, which
// includes rows left by an earlier process.
func (l *Ledger) syncActiveGauge(ctx context.Context) {
	counts, err := l.store.ActiveCounts(ctx)
	if err != nil {
		l.logger.Warn("count active assignments failed", slog.Any("error", err))
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	metrics.LedgerActiveAssignments.Set(float64(total))
}

// Assign attaches an online agent to the conversation. An existing active
// assignment is returned unchanged. With nobody online it returns
// ErrNoAgentsAvailable and leaves the conversation unassigned.
//
// The least loaded online agent is chosen; ties go to the lowest agent id.
func (l *Ledger) Assign(ctx context.Context, conversationID string) (Assignment, error) {
	unlock := l.locks.Lock(conversationID)
	defer unlock()

	if a, ok, err := l.store.Active(ctx, conversationID); err != nil {
		return Assignment{}, err
	} else if ok {
		return a, nil
	}

	agents := l.presence.OnlineAgents(l.role)
	if len(agents) == 0 {
		l.logger.Info("assign failed: no agents online", slog.String("conversation_id", conversationID))
		return Assignment{}, ErrNoAgentsAvailable
	}

	agentID, err := l.pickAgent(ctx, agents)
	if err != nil {
		return Assignment{}, err
	}
	return l.create(ctx, conversationID, agentID)
}

// Claim attaches agentID to the conversation unless another assignment is
// already active, in which case that one is returned.
func (l *Ledger) Claim(ctx context.Context, conversationID, agentID string) (Assignment, error) {
	unlock := l.locks.Lock(conversationID)
	defer unlock()

	if a, ok, err := l.store.Active(ctx, conversationID); err != nil {
		return Assignment{}, err
	} else if ok {
		return a, nil
	}
	return l.create(ctx, conversationID, agentID)
}

// Current returns the active assignment, if any. Resolved assignments are
// never returned.
func (l *Ledger) Current(ctx context.Context, conversationID string) (Assignment, bool, error) {
	return l.store.Active(ctx, conversationID)
}

// Resolve closes the active assignment. It reports false, without error,
// when there was nothing to resolve.
func (l *Ledger) Resolve(ctx context.Context, conversationID string) (Assignment, bool, error) {
	unlock := l.locks.Lock(conversationID)
	defer unlock()

	a, ok, err := l.store.Resolve(ctx, conversationID, l.now())
	if err != nil {
		return Assignment{}, false, fmt.Errorf("resolve assignment: %w", err)
	}
	if ok {
		metrics.LedgerActiveAssignments.Dec()
		l.logger.Info("assignment resolved",
			slog.String("conversation_id", conversationID),
			slog.String("agent_id", a.AgentID),
		)
	}
	return a, ok, nil
}

// History returns every assignment of the conversation, oldest first.
func (l *Ledger) History(ctx context.Context, conversationID string) ([]Assignment, error) {
	return l.store.History(ctx, conversationID)
}

// ActiveByAgent returns the conversations an agent currently holds.
func (l *Ledger) ActiveByAgent(ctx context.Context, agentID string) ([]Assignment, error) {
	return l.store.ActiveByAgent(ctx, agentID)
}

func (l *Ledger) pickAgent(ctx context.Context, agents []string) (string, error) {
	counts, err := l.store.ActiveCounts(ctx)
	if err != nil {
		return "", fmt.Errorf("load agent workload: %w", err)
	}
	sorted := append([]string(nil), agents...)
	sort.Strings(sorted)

	best := sorted[0]
	for _, id := range sorted[1:] {
		if counts[id] < counts[best] {
			best = id
		}
	}
	return best, nil
}

func (l *Ledger) create(ctx context.Context, conversationID, agentID string) (Assignment, error) {
	a := Assignment{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		AgentID:        agentID,
		Status:         StatusActive,
		AssignedAt:     l.now(),
	}
	if err := l.store.Create(ctx, a); err != nil {
		// Another process won the race; report its assignment.
		if errors.Is(err, ErrAlreadyActive) {
			if cur, ok, aerr := l.store.Active(ctx, conversationID); aerr == nil && ok {
				return cur, nil
			}
		}
		return Assignment{}, fmt.Errorf("create assignment: %w", err)
	}

	metrics.LedgerActiveAssignments.Inc()
	l.logger.Info("assignment created",
		slog.String("conversation_id", conversationID),
		slog.String("agent_id", agentID),
	)
	return a, nil
}
