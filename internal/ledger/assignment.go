// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoAgentsAvailable is returned by Assign when nobody is online.
	ErrNoAgentsAvailable = errors.New("no support agents available")
	// ErrAlreadyActive is returned by a Store when a second active
	// assignment would be created.
	ErrAlreadyActive = errors.New("conversation already has an active assignment")
)

// Status is the state of an assignment.
type Status int

const (
	StatusUnassigned Status = iota
	StatusActive
	StatusResolved
)

// String returns the storage/wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusUnassigned:
		return "unassigned"
	case StatusActive:
		return "active"
	case StatusResolved:
		return "resolved"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "unassigned":
		return StatusUnassigned, nil
	case "active":
		return StatusActive, nil
	case "resolved":
		return StatusResolved, nil
	default:
		return StatusUnassigned, fmt.Errorf("unknown assignment status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Assignment binds a conversation to a human agent.
type Assignment struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	AgentID        string     `json:"agent_id"`
	Status         Status     `json:"status"`
	AssignedAt     time.Time  `json:"assigned_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Active reports whether the assignment currently holds the conversation.
func (a Assignment) Active() bool {
	return a.Status == StatusActive
}

// Presence reports which agents are online. Reads may be slightly stale.
type Presence interface {
	OnlineAgents(role string) []string
}

// Store persists assignments. Implementations must reject a second active
// assignment for a conversation with ErrAlreadyActive.
type Store interface {
	Active(ctx context.Context, conversationID string) (Assignment, bool, error)
	Create(ctx context.Context, a Assignment) error
	Resolve(ctx context.Context, conversationID string, at time.Time) (Assignment, bool, error)
	History(ctx context.Context, conversationID string) ([]Assignment, error)
	ActiveByAgent(ctx context.Context, agentID string) ([]Assignment, error)
	ActiveCounts(ctx context.Context) (map[string]int, error)
	Close() error
}
