// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*Conversation), now: time.Now}
}

func (m *MemoryStore) CreateConversation(ctx context.Context, id, customerName, customerEmail string) (Conversation, error) {
	if !ValidID(id) {
		return Conversation{}, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs[id]
	if !ok {
		now := m.now().UTC()
		conv = &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
		m.convs[id] = conv
	}
	if conv.fillCustomer(customerName, customerEmail) && ok {
		conv.UpdatedAt = m.now().UTC()
	}
	return copyConversation(conv), nil
}

func (m *MemoryStore) PersistTranscript(ctx context.Context, id, content string, sender SenderKind) (ChatMessage, error) {
	if !ValidID(id) {
		return ChatMessage{}, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	conv, ok := m.convs[id]
	if !ok {
		conv = &Conversation{ID: id, CreatedAt: now}
		m.convs[id] = conv
	}
	msg := ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: id,
		Content:        content,
		Sender:         sender,
		Timestamp:      now,
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = now
	return msg, nil
}

func (m *MemoryStore) FetchTranscript(ctx context.Context, id string) ([]ChatMessage, error) {
	conv, err := m.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyConversation(conv)
	return &c, nil
}

func (m *MemoryStore) ListConversations(ctx context.Context) ([]ConversationMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metas := make([]ConversationMeta, 0, len(m.convs))
	for _, c := range m.convs {
		metas = append(metas, c.Meta())
	}
	sort.SliceStable(metas, func(i, j int) bool {
		if metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

func copyConversation(c *Conversation) Conversation {
	out := *c
	out.Messages = append([]ChatMessage(nil), c.Messages...)
	return out
}
