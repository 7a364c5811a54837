// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/broadcast"
	"github.com/FenixFighter/WebWibe/internal/evaluator"
	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/ledger"
)

// ============================================================================
// ERRORS
// ============================================================================

var (
	// ErrValidation marks malformed input. Nothing was changed.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks a missing or rejected agent credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable means no support agent could take the conversation.
	ErrUnavailable = errors.New("no support agents available")
)

// User-visible notices.
const (
	NoticeChatCreated       = "Chat created successfully"
	NoticeEscalated         = "Your request has been escalated to our support team. A support agent will join shortly."
	NoticeReleased          = "Support agent has left the chat. AI assistant is now available."
	NoticeNoAgents          = "No support agents available for escalation."
	NoticeUnauthorized      = "Unauthorized access"
	NoticeReleaseForbidden  = "Unauthorized to release chat."
	NoticeTokenRequired     = "Token required for chat release."
	NoticeContentRequired   = "Message content is required"
	NoticeConversationIDReq = "Conversation id is required"
	NoticeInvalidID         = "Conversation id is invalid"
	NoticeProcessingFailed  = "Error processing message"
)

// ActivityPreviewRunes is how much of a customer message the agent activity
// feed shows.
const ActivityPreviewRunes = 50

// ============================================================================
// PATH
// ============================================================================

// Path is the branch HandleMessage took for a message.
type Path int

const (
	// PathRejected means the message failed validation or authorization.
	PathRejected Path = iota
	// PathAutomated means an automated answer was emitted.
	PathAutomated
	// PathHumanAttached means a human holds the conversation; the customer
	// message was only relayed.
	PathHumanAttached
	// PathAgentRelay means an agent message was relayed.
	PathAgentRelay
	// PathDiscarded means a human attached while the answer was being
	// generated and the answer was dropped.
	PathDiscarded
	// PathEscalated means the escalation policy replaced the answer with a
	// handoff to an agent.
	PathEscalated
)

// String returns the metric/log label of the path.
func (p Path) String() string {
	switch p {
	case PathRejected:
		return "rejected"
	case PathAutomated:
		return "automated"
	case PathHumanAttached:
		return "human_attached"
	case PathAgentRelay:
		return "agent_relay"
	case PathDiscarded:
		return "discarded"
	case PathEscalated:
		return "escalated"
	default:
		return fmt.Sprintf("Path(%d)", p)
	}
}

// MarshalText encodes the label.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ============================================================================
// MESSAGES
// ============================================================================

// Inbound is one message arriving at the router.
type Inbound struct {
	// ConversationID is empty for the first customer message.
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	// Category pins the knowledge search. Optional.
	Category string `json:"category,omitempty"`
	// Credential is an agent session token. Empty for customers.
	Credential    string `json:"-"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// Outcome describes what HandleMessage did.
type Outcome struct {
	ConversationID string `json:"conversation_id"`
	Path           Path   `json:"path"`
	// Created is set when the message opened a new conversation.
	Created bool `json:"created"`
	// Relayed is the echoed customer message or the relayed agent message.
	Relayed *broadcast.Message `json:"relayed,omitempty"`
	// Reply is the automated answer or the escalation notice.
	Reply      *broadcast.Message `json:"reply,omitempty"`
	Quality    *evaluator.Quality `json:"quality,omitempty"`
	Assignment *ledger.Assignment `json:"assignment,omitempty"`
	Stage      string             `json:"search_stage,omitempty"`
}

// ============================================================================
// COLLABORATORS
// ============================================================================

// Ledger tracks which agent holds a conversation.
type Ledger interface {
	Assign(ctx context.Context, conversationID string) (ledger.Assignment, error)
	Claim(ctx context.Context, conversationID, agentID string) (ledger.Assignment, error)
	Current(ctx context.Context, conversationID string) (ledger.Assignment, bool, error)
	Resolve(ctx context.Context, conversationID string) (ledger.Assignment, bool, error)
}

// Searcher finds knowledge entries for a question.
type Searcher interface {
	SearchDetailed(query, category string, limit int) knowledge.SearchResult
}

// Evaluator scores an automated answer.
type Evaluator interface {
	Evaluate(question, answer string) evaluator.Quality
}

// Verifier resolves an agent credential to its owner.
type Verifier interface {
	VerifyAgentCredential(token string) (agents.Identity, error)
}
