// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FenixFighter/WebWibe/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// SenderKind identifies who wrote a message.
type SenderKind string

const (
	SenderUser      SenderKind = "user"
	SenderAutomated SenderKind = "automated"
	SenderHuman     SenderKind = "human"
	SenderSystem    SenderKind = "system"
)

// ChatMessage is one transcript line.
type ChatMessage struct {
	ID             string     `json:"id" yaml:"id"`
	ConversationID string     `json:"conversation_id" yaml:"conversation_id"`
	Content        string     `json:"content" yaml:"content"`
	Sender         SenderKind `json:"sender" yaml:"sender"`
	Timestamp      time.Time  `json:"timestamp" yaml:"timestamp"`
}

// Conversation is a stored conversation with its full transcript.
type Conversation struct {
	ID            string        `json:"id" yaml:"id"`
	CustomerName  string        `json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
	CustomerEmail string        `json:"customer_email,omitempty" yaml:"customer_email,omitempty"`
	CreatedAt     time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" yaml:"updated_at"`
	Messages      []ChatMessage `json:"messages" yaml:"messages"`
}

// ConversationMeta is the listing view of a conversation.
type ConversationMeta struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"customer_name,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	MessageCount  int       `json:"message_count"`
	Preview       string    `json:"preview"` // first customer message, truncated
}

// Store persists transcripts.
type Store interface {
	// CreateConversation records a conversation, or fills in missing
	// customer details on an existing one.
	CreateConversation(ctx context.Context, id, customerName, customerEmail string) (Conversation, error)
	// PersistTranscript appends a message, creating the conversation if needed.
	PersistTranscript(ctx context.Context, id, content string, sender SenderKind) (ChatMessage, error)
	// FetchTranscript returns messages oldest first.
	FetchTranscript(ctx context.Context, id string) ([]ChatMessage, error)
	// Load returns the conversation with its transcript.
	Load(ctx context.Context, id string) (*Conversation, error)
	// ListConversations returns metadata, most recently updated first.
	ListConversations(ctx context.Context) ([]ConversationMeta, error)
}

// =============================================================================
// ERRORS
// =============================================================================

// ConversationError is a storage error comparable with errors.Is.
type ConversationError struct {
	Message string
}

func (e *ConversationError) Error() string {
	return e.Message
}

// Is matches errors with the same message.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	return ok && e.Message == t.Message
}

var (
	ErrNotFound  = &ConversationError{Message: "conversation not found"}
	ErrInvalidID = &ConversationError{Message: "invalid conversation id"}
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidID reports whether id is safe to use as a storage key.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// =============================================================================
// CONVERSATION HELPERS
// =============================================================================

// fillCustomer sets customer fields that are still empty. It reports whether
// anything changed.
func (c *Conversation) fillCustomer(name, email string) bool {
	changed := false
	if c.CustomerName == "" && strings.TrimSpace(name) != "" {
		c.CustomerName = strings.TrimSpace(name)
		changed = true
	}
	if c.CustomerEmail == "" && strings.TrimSpace(email) != "" {
		c.CustomerEmail = strings.TrimSpace(email)
		changed = true
	}
	return changed
}

// Meta returns the listing view.
func (c *Conversation) Meta() ConversationMeta {
	return ConversationMeta{
		ID:            c.ID,
		CustomerName:  c.CustomerName,
		CustomerEmail: c.CustomerEmail,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		MessageCount:  len(c.Messages),
		Preview:       c.Preview(),
	}
}

// Preview returns the first customer message, truncated to 80 runes.
func (c *Conversation) Preview() string {
	for _, msg := range c.Messages {
		if msg.Sender == SenderUser && msg.Content != "" {
			p := strings.ReplaceAll(msg.Content, "\n", " ")
			return util.TruncateRunes(strings.ReplaceAll(p, "\r", ""), 80)
		}
	}
	return ""
}

// ExportJSON returns the conversation as indented JSON.
func (c *Conversation) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ExportYAML returns the conversation as YAML.
func (c *Conversation) ExportYAML() ([]byte, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// ExportMarkdown renders the transcript for humans.
func (c *Conversation) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Conversation " + c.ID + "\n\n")
	if c.CustomerName != "" || c.CustomerEmail != "" {
		sb.WriteString("Customer: " + strings.TrimSpace(c.CustomerName+" <"+c.CustomerEmail+">") + "\n\n")
	}
	sb.WriteString("Created: " + c.CreatedAt.Format(time.RFC3339) + "\n\n---\n\n")

	for _, msg := range c.Messages {
		label := "**Customer**"
		switch msg.Sender {
		case SenderAutomated:
			label = "**Assistant**"
		case SenderHuman:
			label = "**Agent**"
		case SenderSystem:
			label = "**System**"
		}
		sb.WriteString(label + " (" + msg.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// FormatList renders conversation metadata as a plain text table.
func FormatList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	sb.WriteString(pad("ID", 36) + " " + pad("Updated", 16) + " " + pad("Messages", 8) + " Preview\n")
	sb.WriteString(strings.Repeat("-", 90) + "\n")
	for _, m := range metas {
		sb.WriteString(pad(m.ID, 36) + " " +
			pad(m.UpdatedAt.Format("2006-01-02 15:04"), 16) + " " +
			pad(strconv.Itoa(m.MessageCount), 8) + " " +
			util.TruncateRunes(m.Preview, 30) + "\n")
	}
	return sb.String()
}

func pad(s string, width int) string {
	if n := util.RuneLen(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
