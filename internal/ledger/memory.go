// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps assignments in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	byConv map[string][]Assignment
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byConv: make(map[string][]Assignment)}
}

func (m *MemoryStore) Active(_ context.Context, conversationID string) (Assignment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.byConv[conversationID] {
		if a.Active() {
			return a, true, nil
		}
	}
	return Assignment{}, false, nil
}

func (m *MemoryStore) Create(_ context.Context, a Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byConv[a.ConversationID] {
		if existing.Active() {
			return ErrAlreadyActive
		}
	}
	m.byConv[a.ConversationID] = append(m.byConv[a.ConversationID], a)
	return nil
}

func (m *MemoryStore) Resolve(_ context.Context, conversationID string, at time.Time) (Assignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byConv[conversationID]
	for i := range list {
		if list[i].Active() {
			resolved := at
			list[i].Status = StatusResolved
			list[i].ResolvedAt = &resolved
			return list[i], true, nil
		}
	}
	return Assignment{}, false, nil
}

func (m *MemoryStore) History(_ context.Context, conversationID string) ([]Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Assignment(nil), m.byConv[conversationID]...), nil
}

func (m *MemoryStore) ActiveByAgent(_ context.Context, agentID string) ([]Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Assignment
	for _, list := range m.byConv {
		for _, a := range list {
			if a.Active() && a.AgentID == agentID {
				out = append(out, a)
			}
		}
	}
	sortByAssigned(out)
	return out, nil
}

func (m *MemoryStore) ActiveCounts(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, list := range m.byConv {
		for _, a := range list {
			if a.Active() {
				counts[a.AgentID]++
			}
		}
	}
	return counts, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortByAssigned(list []Assignment) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].AssignedAt.Before(list[j].AssignedAt)
	})
}
