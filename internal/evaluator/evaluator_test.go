// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	e := New(DefaultConfig())

	tests := []struct {
		name     string
		question string
		answer   string
		want     int
	}{
		{
			name:     "short inability answer floors at zero",
			question: "How do I close my account?",
			answer:   "contact support",
			want:     0,
		},
		{
			name:     "helpful relevant answer caps at 100",
			question: "How do I open a deposit account?",
			answer:   "Here's how you can open a deposit account: visit any branch with your passport.",
			want:     100,
		},
		{
			name:     "unprofessional tone loses the tone bonus",
			question: "What is my balance?",
			answer:   "lol you can just check your balance in the app",
			want:     85,
		},
		{
			name:     "inability marker",
			question: "Can I get a mortgage?",
			answer:   "I'm not sure about that, please contact support.",
			want:     30,
		},
		{
			name:     "greeting boilerplate",
			question: "hi",
			answer:   "Hello! How can I help you today with anything?",
			want:     55,
		},
		{
			name:     "short answer earns no bonuses",
			question: "loan",
			answer:   "you can check loan",
			want:     30,
		},
		{
			name:     "one word question is always relevant",
			question: "Loans",
			answer:   "Please visit our nearest branch office for details.",
			want:     75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := e.Evaluate(tt.question, tt.answer)
			assert.Equal(t, tt.want, q.Score)
			assert.Equal(t, Explain(tt.want), q.Explanation)
		})
	}
}

func TestEvaluate_CaseInsensitiveMarkers(t *testing.T) {
	e := New(DefaultConfig())
	lower := e.Evaluate("q", "please CONTACT SUPPORT for this request")
	upper := e.Evaluate("q", "please contact support for this request")
	assert.Equal(t, upper, lower)
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := New(DefaultConfig())
	q := "How can I repay my loan early?"
	a := "You can repay your loan early from the Loans section of the app."
	assert.Equal(t, e.Evaluate(q, a), e.Evaluate(q, a))
}

func TestEvaluate_TunableWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Base = 10
	cfg.Adjustments = Adjustments{}
	e := New(cfg)

	assert.Equal(t, 10, e.Evaluate("q", "contact support").Score)
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant("How do I reset my password quickly?", "to reset the password open settings"))
	assert.False(t, relevant("How do I reset my password quickly?", "to reset open settings"))
	assert.True(t, relevant("hi", "hi there"))
	assert.True(t, relevant("", "anything"))
	assert.True(t, relevant("password", "your password"))
}

func TestExplain(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "Excellent response with specific banking information and helpful guidance"},
		{80, "Excellent response with specific banking information and helpful guidance"},
		{79, "Good response with relevant information and professional tone"},
		{60, "Good response with relevant information and professional tone"},
		{59, "Fair response but could be more specific or helpful"},
		{40, "Fair response but could be more specific or helpful"},
		{39, "Poor response with limited helpful information"},
		{20, "Poor response with limited helpful information"},
		{19, "Very poor response - customer needs human assistance"},
		{0, "Very poor response - customer needs human assistance"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Explain(tt.score), "score %d", tt.score)
	}
}
