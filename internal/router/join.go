// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FenixFighter/WebWibe/internal/broadcast"
	"github.com/FenixFighter/WebWibe/internal/ledger"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

// JoinRequest opens or resumes a customer conversation.
type JoinRequest struct {
	// ConversationID is empty to start a new conversation.
	ConversationID string `json:"conversation_id"`
	CustomerName   string `json:"customer_name,omitempty"`
	CustomerEmail  string `json:"customer_email,omitempty"`
}

// Joined is the state a customer needs to render a resumed conversation.
type Joined struct {
	ConversationID string                `json:"conversation_id"`
	Created        bool                  `json:"created"`
	Messages       []storage.ChatMessage `json:"messages"`
	// Assignment is set while a human agent holds the conversation.
	Assignment *ledger.Assignment `json:"assignment,omitempty"`
}

// Join creates the conversation when it has no id, or resumes it, and
// returns its transcript oldest first. Customer details fill in missing
// fields and never overwrite stored ones.
func (r *Router) Join(ctx context.Context, req JoinRequest) (Joined, error) {
	id := req.ConversationID
	created := false
	if id == "" {
		id = r.newID()
		created = true
	} else if !storage.ValidID(id) {
		r.publishError(ctx, "", NoticeInvalidID)
		return Joined{}, fmt.Errorf("%w: %s", ErrValidation, NoticeInvalidID)
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	if _, err := r.transcripts.CreateConversation(ctx, id, req.CustomerName, req.CustomerEmail); err != nil {
		return Joined{ConversationID: id}, r.fail(ctx, id, "join conversation", err)
	}
	if created {
		r.publish(ctx, broadcast.ChannelChat,
			broadcast.NewMessage(broadcast.TypeChatCreated, id, NoticeChatCreated, broadcast.SenderSystem))
	}

	msgs, err := r.transcripts.FetchTranscript(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Joined{ConversationID: id}, r.fail(ctx, id, "load transcript", err)
	}
	if msgs == nil {
		msgs = []storage.ChatMessage{}
	}

	out := Joined{ConversationID: id, Created: created, Messages: msgs}
	current, active, err := r.ledger.Current(ctx, id)
	if err != nil {
		return out, r.fail(ctx, id, "check assignment", err)
	}
	if active {
		out.Assignment = &current
	}

	r.logger.Info("conversation joined",
		slog.String("conversation_id", id),
		slog.Bool("created", created),
		slog.Int("messages", len(msgs)),
	)
	return out, nil
}
