// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FenixFighter/WebWibe/internal/metrics"
)

type fakePresence struct {
	mu     sync.Mutex
	agents []string
}

func (f *fakePresence) OnlineAgents(role string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.agents...)
}

func (f *fakePresence) set(agents ...string) {
	f.mu.Lock()
	f.agents = agents
	f.mu.Unlock()
}

// storeFactories runs each test against every Store implementation.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, l *Ledger, presence *fakePresence)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			presence := &fakePresence{}
			fn(t, New(factory(t), presence), presence)
		})
	}
}

func TestAssign_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, l *Ledger, presence *fakePresence) {
		ctx := context.Background()
		presence.set("agent-1", "agent-2")

		first, err := l.Assign(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, StatusActive, first.Status)
		assert.Equal(t, "agent-1", first.AgentID)

		second, err := l.Assign(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.AgentID, second.AgentID)
		assert.True(t, first.AssignedAt.Equal(second.AssignedAt))
	})
}

func TestAssign_NoAgents(t *testing.T) {
	forEachStore(t, func(t *testing.T, l *Ledger, presence *fakePresence) {
		ctx := context.Background()

		_, err := l.Assign(ctx, "conv-1")
		assert.ErrorIs(t, err, ErrNoAgentsAvailable)

		_, ok, err := l.Current(ctx, "conv-1")
		require.NoError(t, err)
		assert.False(t, ok)

		history, err := l.History(ctx, "conv-1")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestAssign_LeastLoaded(t *testing.T) {
	forEachStore(t, func(t *testing.T, l *Ledger, presence *fakePresence) {
		ctx := context.Background()
		presence.set("agent-b", "agent-a")

		a1, err := l.Assign(ctx, "conv-1")
		require.NoError(t, err)
		a2, err := l.Assign(ctx, "conv-2")
		require.NoError(t, err)
		a3, err := l.Assign(ctx, "conv-3")
		require.NoError(t, err)

		assert.Equal(t, "agent-a", a1.AgentID)
		assert.Equal(t, "agent-b", a2.AgentID)
		assert.Equal(t, "agent-a", a3.AgentID)
	})
}

func TestResolve(t *testing.T) {
	forEachStore(t, func(t *testing.T, l *Ledger, presence *fakePresence) {
		ctx := context.Background()
		presence.set("agent-1")

		_, ok, err := l.Resolve(ctx, "never-assigned")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = l.Assign(ctx, "conv-1")
		require.NoError(t, err)

		resolved, ok, err := l.Resolve(ctx, "conv-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, StatusResolved, resolved.Status)
		require.NotNil(t, resolved.ResolvedAt)

		_, ok, err = l.Current(ctx, "conv-1")
		require.NoError(t, err)
		assert.False(t, ok, "resolved assignments are never current")

		_, ok, err = l.Resolve(ctx, "conv-1")
		require.NoError(t, err)
		assert.False(t, ok)

		history, err := l.History(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, StatusResolved, history[0].Status)
	})
}

func TestReassignAfterResolve(t *testing.T) {
	forEachStore(t, func(t *testing.T, l *Ledger, presence *fakePresence) {
		ctx := context.Background()
		presence.set("agent-1")

		first, err := l.Assign(ctx, "conv-1")
		require.NoError(t, err)
		_, _, err = l.Resolve(ctx, "conv-1")
		require.NoError(t, err)

		second, err := l.Assign(ctx, "conv-1")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		history, err := l.History(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, StatusResolved, history[0].Status)
		assert.Equal(t, StatusActive, history[1].Status)
	})
}

func TestClaim(t *testing.T) {
	forEachStore(t, func(t *testing.T, l *Ledger, presence *fakePresence) {
		ctx := context.Background()

		a, err := l.Claim(ctx, "conv-1", "agent-7")
		require.NoError(t, err)
		assert.Equal(t, "agent-7", a.AgentID)

		// A second agent does not displace the first.
		b, err := l.Claim(ctx, "conv-1", "agent-8")
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)
		assert.Equal(t, "agent-7", b.AgentID)

		mine, err := l.ActiveByAgent(ctx, "agent-7")
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		theirs, err := l.ActiveByAgent(ctx, "agent-8")
		require.NoError(t, err)
		assert.Empty(t, theirs)
	})
}

func TestAssign_ConcurrentSingleActive(t *testing.T) {
	forEachStore(t, func(t *testing.T, l *Ledger, presence *fakePresence) {
		ctx := context.Background()
		presence.set("agent-1", "agent-2", "agent-3")

		const workers = 16
		ids := make([]string, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var a Assignment
				var err error
				if i%2 == 0 {
					a, err = l.Assign(ctx, "conv-race")
				} else {
					a, err = l.Claim(ctx, "conv-race", "agent-x")
				}
				if assert.NoError(t, err) {
					ids[i] = a.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
		history, err := l.History(ctx, "conv-race")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})
}

func TestStore_RejectsSecondActive(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			now := time.Now()

			require.NoError(t, s.Create(ctx, Assignment{ID: "a", ConversationID: "c", AgentID: "x", Status: StatusActive, AssignedAt: now}))
			err := s.Create(ctx, Assignment{ID: "b", ConversationID: "c", AgentID: "y", Status: StatusActive, AssignedAt: now})
			assert.ErrorIs(t, err, ErrAlreadyActive)
		})
	}
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(NewMemoryStore(), &fakePresence{agents: []string{"a"}}, WithClock(func() time.Time { return fixed }))

	a, err := l.Assign(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, fixed.Equal(a.AssignedAt))
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{StatusUnassigned, StatusActive, StatusResolved} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	_, err := ParseStatus("bogus")
	assert.Error(t, err)
}

func TestActiveGauge_SeededFromStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	presence := &fakePresence{agents: []string{"agent-1"}}

	first, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	l := New(first, presence)
	for _, id := range []string{"conv-1", "conv-2"} {
		_, err := l.Assign(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, first.Close())

	// A fresh process starts with the gauge at zero.
	metrics.LedgerActiveAssignments.Set(0)

	second, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })
	l = New(second, presence)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LedgerActiveAssignments))

	_, ok, err := l.Resolve(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LedgerActiveAssignments))
}
