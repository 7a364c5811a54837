// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FenixFighter/WebWibe/internal/evaluator"
	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

func TestEscalationTrigger(t *testing.T) {
	on := DefaultPolicy()
	on.AutoEscalateOnLowQuality = true

	tests := []struct {
		name   string
		policy Policy
		answer string
		score  int
		want   string
	}{
		{"manual only", DefaultPolicy(), "Please contact support.", 0, ""},
		{"phrase", on, "Please CONTACT SUPPORT for this.", 80, TriggerNeedsHuman},
		{"low score", on, "Maybe.", 29, TriggerLowQuality},
		{"at threshold", on, "Maybe.", 30, ""},
		{"fine", on, "You can do that in the app.", 90, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.policy.withDefaults()
			got := p.EscalationTrigger(tt.answer, evaluator.Quality{Score: tt.score})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicyWithDefaults(t *testing.T) {
	p := Policy{NeedsHumanPhrases: []string{"  Talk To A Human ", ""}}.withDefaults()

	assert.Equal(t, DefaultPolicy().GeneratorTimeout, p.GeneratorTimeout)
	assert.Equal(t, DefaultFallbackAnswer, p.FallbackAnswer)
	assert.Equal(t, "support", p.AgentRole)
	assert.Equal(t, []string{"talk to a human"}, p.NeedsHumanPhrases)
	assert.True(t, p.NeedsHuman("can I talk to a human please"))
}

func TestBuildPrompt(t *testing.T) {
	entries := []knowledge.Entry{
		{Question: "How do I block my card?", Answer: "Use the app.", Category: "Cards", Subcategory: "Security"},
	}
	history := []storage.ChatMessage{
		{Content: "hi", Sender: storage.SenderUser},
		{Content: "Hello!", Sender: storage.SenderAutomated},
		{Content: "Sam here", Sender: storage.SenderHuman},
	}

	prompt := BuildPrompt("  my card is lost ", entries, history)

	assert.Contains(t, prompt, "1. [Cards / Security]\nQ: How do I block my card?\nA: Use the app.")
	assert.Contains(t, prompt, "Customer: hi\nAssistant: Hello!\nAgent: Sam here\n")
	assert.True(t, strings.HasSuffix(prompt, "Customer question: my card is lost"))

	empty := BuildPrompt("anything", nil, nil)
	assert.Contains(t, empty, "No knowledge base entries matched")
	assert.NotContains(t, empty, "Conversation so far")
}

func TestSuggestions(t *testing.T) {
	entries := []knowledge.Entry{
		{Question: "How do I reset my password?"},
		{Question: "How do I change my password?"},
		{Question: "how do i change my password?"},
		{Question: "How do I unlock my account?"},
		{Question: "How do I block my card?"},
	}

	got := suggestions("how do I reset my password? ", entries, 3)
	assert.Equal(t, []string{
		"How do I change my password?",
		"How do I unlock my account?",
		"How do I block my card?",
	}, got)

	assert.Nil(t, suggestions("x", entries, 0))
}

func TestRecent(t *testing.T) {
	msgs := make([]storage.ChatMessage, 5)
	for i := range msgs {
		msgs[i].Content = string(rune('a' + i))
	}
	got := recent(msgs, 2)
	assert.Equal(t, "d", got[0].Content)
	assert.Equal(t, "e", got[1].Content)
	assert.Len(t, recent(msgs, 10), 5)
	assert.Nil(t, recent(msgs, 0))
}

func TestPathString(t *testing.T) {
	assert.Equal(t, "automated", PathAutomated.String())
	assert.Equal(t, "human_attached", PathHumanAttached.String())
	assert.Equal(t, "agent_relay", PathAgentRelay.String())
	assert.Equal(t, "discarded", PathDiscarded.String())
	assert.Equal(t, "escalated", PathEscalated.String())
	assert.Equal(t, "rejected", PathRejected.String())
	assert.Equal(t, "Path(42)", Path(42).String())
}

func TestStats(t *testing.T) {
	s := NewStats()
	assert.Equal(t, "No messages routed yet", s.Summary())

	s.recordPath(PathAutomated)
	s.recordScore(80)
	s.recordPath(PathAutomated)
	s.recordScore(60)
	s.recordPath(PathHumanAttached)
	s.recordEscalation(false)

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Messages)
	assert.Equal(t, 2, snap.Automated)
	assert.Equal(t, 1, snap.FailedEscalations)
	assert.Equal(t, 70.0, s.AverageScore())
	assert.Contains(t, s.Summary(), "3 messages")

	s.Reset()
	assert.Equal(t, 0, s.Snapshot().Messages)
}
