// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"time"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/evaluator"
)

// DefaultNeedsHumanPhrases mark an automated answer as a dead end.
var DefaultNeedsHumanPhrases = []string{
	"no answers found",
	"cannot help",
	"don't understand",
	"contact support",
	"human assistance",
	"escalate",
}

// DefaultFallbackAnswer is sent when the generator fails.
const DefaultFallbackAnswer = "I'm sorry, I can't answer that right now. " +
	"Please try again in a moment or ask to speak with a support agent."

// Escalation triggers, used as metric labels.
const (
	TriggerExplicit   = "explicit"
	TriggerNeedsHuman = "needs_human"
	TriggerLowQuality = "low_quality"
)

// Policy tunes the automated path.
type Policy struct {
	// AutoEscalateOnLowQuality hands the conversation to an agent instead of
	// sending an answer that reads as a dead end or scores below
	// LowQualityThreshold. Off means escalation is explicit only.
	AutoEscalateOnLowQuality bool
	LowQualityThreshold      int
	NeedsHumanPhrases        []string

	GeneratorTimeout time.Duration
	FallbackAnswer   string

	SuggestionLimit int
	HistoryMessages int
	// ContextEntries is how many knowledge entries go into the prompt.
	ContextEntries int

	// AgentRole is the role a credential must carry to act as an agent.
	AgentRole string
}

// DefaultPolicy returns manual-only escalation with the standard limits.
func DefaultPolicy() Policy {
	return Policy{
		AutoEscalateOnLowQuality: false,
		LowQualityThreshold:      30,
		NeedsHumanPhrases:        append([]string(nil), DefaultNeedsHumanPhrases...),
		GeneratorTimeout:         30 * time.Second,
		FallbackAnswer:           DefaultFallbackAnswer,
		SuggestionLimit:          3,
		HistoryMessages:          10,
		ContextEntries:           3,
		AgentRole:                agents.RoleSupport,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.GeneratorTimeout <= 0 {
		p.GeneratorTimeout = d.GeneratorTimeout
	}
	if strings.TrimSpace(p.FallbackAnswer) == "" {
		p.FallbackAnswer = d.FallbackAnswer
	}
	if p.ContextEntries <= 0 {
		p.ContextEntries = d.ContextEntries
	}
	if p.AgentRole == "" {
		p.AgentRole = d.AgentRole
	}
	p.NeedsHumanPhrases = lowerAll(p.NeedsHumanPhrases)
	return p
}

// NeedsHuman reports whether text contains one of the needs-human phrases.
func (p Policy) NeedsHuman(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range p.NeedsHumanPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// EscalationTrigger returns the reason the policy escalates this answer, or
// "" when it does not.
func (p Policy) EscalationTrigger(answer string, q evaluator.Quality) string {
	if !p.AutoEscalateOnLowQuality {
		return ""
	}
	if p.NeedsHuman(answer) {
		return TriggerNeedsHuman
	}
	if q.Score < p.LowQualityThreshold {
		return TriggerLowQuality
	}
	return ""
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
