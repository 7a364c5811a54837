// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversation transcripts.
//
// Transcripts are append-only: messages are stored in arrival order and read
// back oldest first. Customer details given after a conversation was created
// fill gaps but never overwrite what is already recorded.
//
// # Key Types
//
//   - Store: the transcript interface used by the router and HTTP handlers
//   - FileStore: one JSON file per conversation, written atomically
//   - MemoryStore: in-process store for tests and ephemeral runs
//   - Conversation, ChatMessage, ConversationMeta
//
// # Usage
//
//	store, err := storage.NewFileStore(dir)
//	_, err = store.CreateConversation(ctx, id, "Ada", "ada@example.com")
//	_, err = store.PersistTranscript(ctx, id, "hello", storage.SenderUser)
//	msgs, err := store.FetchTranscript(ctx, id)
//
// # Storage Location
//
// FileStore writes to ~/.webwibe/transcripts/ unless configured otherwise.
package storage
