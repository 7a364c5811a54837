// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package broadcast

import (
	"time"

	"github.com/google/uuid"

	"github.com/FenixFighter/WebWibe/internal/evaluator"
)

// Type identifies what a message announces.
type Type string

const (
	TypeMessage      Type = "MESSAGE"
	TypeChatCreated  Type = "CHAT_CREATED"
	TypeError        Type = "ERROR"
	TypeEscalation   Type = "ESCALATION"
	TypeChatActivity Type = "CHAT_ACTIVITY"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser    Sender = "USER"
	SenderAI      Sender = "AI"
	SenderSupport Sender = "SUPPORT"
	SenderSystem  Sender = "SYSTEM"
)

// Channels.
const (
	ChannelChat            = "chat"
	ChannelChatError       = "chat.error"
	ChannelSupportActivity = "support.activity"
)

// Message is the payload delivered to clients.
type Message struct {
	ID             string             `json:"id"`
	Type           Type               `json:"type"`
	ConversationID string             `json:"conversation_id"`
	Content        string             `json:"content"`
	Sender         Sender             `json:"sender"`
	Timestamp      time.Time          `json:"timestamp"`
	Rating         *evaluator.Quality `json:"rating,omitempty"`
	Suggestions    []string           `json:"suggestions,omitempty"`
}

// NewMessage builds a message stamped with a fresh id and the current time.
func NewMessage(t Type, conversationID, content string, sender Sender) Message {
	return Message{
		ID:             uuid.NewString(),
		Type:           t,
		ConversationID: conversationID,
		Content:        content,
		Sender:         sender,
		Timestamp:      time.Now().UTC(),
	}
}

// Delivery is a message together with the channel it was published on.
type Delivery struct {
	Channel string  `json:"channel"`
	Message Message `json:"message"`
}
