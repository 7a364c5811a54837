// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"strings"

	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

// BuildPrompt assembles the generator input from matched knowledge entries,
// recent transcript history and the customer's question.
func BuildPrompt(question string, entries []knowledge.Entry, history []storage.ChatMessage) string {
	var b strings.Builder

	if len(entries) > 0 {
		b.WriteString("Knowledge base entries:\n")
		for i, e := range entries {
			topic := e.Category
			if e.Subcategory != "" {
				topic += " / " + e.Subcategory
			}
			fmt.Fprintf(&b, "%d. [%s]\nQ: %s\nA: %s\n", i+1, topic, e.Question, e.Answer)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No knowledge base entries matched this question.\n\n")
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", speaker(m.Sender), m.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Customer question: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

func speaker(kind storage.SenderKind) string {
	switch kind {
	case storage.SenderUser:
		return "Customer"
	case storage.SenderAutomated:
		return "Assistant"
	case storage.SenderHuman:
		return "Agent"
	default:
		return "System"
	}
}

// suggestions lists related questions from the matches, skipping the asked
// question itself and duplicates.
func suggestions(question string, entries []knowledge.Entry, limit int) []string {
	if limit <= 0 {
		return nil
	}
	asked := strings.ToLower(strings.TrimSpace(question))
	seen := map[string]bool{asked: true}

	var out []string
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Question))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e.Question)
		if len(out) == limit {
			break
		}
	}
	return out
}

// recent returns the last n messages.
func recent(history []storage.ChatMessage, n int) []storage.ChatMessage {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}
