// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FenixFighter/WebWibe/internal/util"
)

// FileStore keeps one JSON file per conversation under BaseDir.
type FileStore struct {
	// BaseDir is the transcript directory. Default: ~/.webwibe/transcripts/
	BaseDir string

	mu  sync.Mutex
	now func() time.Time
}

// NewFileStore creates a store rooted at baseDir, creating it if needed. An
// empty baseDir selects the default location.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".webwibe", "transcripts")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	return &FileStore{BaseDir: baseDir, now: time.Now}, nil
}

func (s *FileStore) CreateConversation(ctx context.Context, id, customerName, customerEmail string) (Conversation, error) {
	if !ValidID(id) {
		return Conversation{}, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(id)
	switch {
	case errors.Is(err, ErrNotFound):
		now := s.now().UTC()
		conv = &Conversation{ID: id, CreatedAt: now, UpdatedAt: now, Messages: []ChatMessage{}}
		conv.fillCustomer(customerName, customerEmail)
	case err != nil:
		return Conversation{}, err
	default:
		if !conv.fillCustomer(customerName, customerEmail) {
			return *conv, nil
		}
		conv.UpdatedAt = s.now().UTC()
	}

	if err := s.write(conv); err != nil {
		return Conversation{}, err
	}
	return *conv, nil
}

func (s *FileStore) PersistTranscript(ctx context.Context, id, content string, sender SenderKind) (ChatMessage, error) {
	if !ValidID(id) {
		return ChatMessage{}, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	conv, err := s.read(id)
	if errors.Is(err, ErrNotFound) {
		conv = &Conversation{ID: id, CreatedAt: now}
	} else if err != nil {
		return ChatMessage{}, err
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

	if err := s.write(conv); err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

func (s *FileStore) FetchTranscript(ctx context.Context, id string) ([]ChatMessage, error) {
	conv, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*Conversation, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *FileStore) ListConversations(ctx context.Context) ([]ConversationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	metas := []ConversationMeta{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // Skip corrupted files
		}
		metas = append(metas, conv.Meta())
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Delete removes a conversation.
func (s *FileStore) Delete(id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *FileStore) read(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *FileStore) write(conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	// Transcripts hold customer details.
	return util.AtomicWriteFileWithDir(s.filePath(conv.ID), data, 0600, 0700)
}

func (s *FileStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}
