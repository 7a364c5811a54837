// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package evaluator

import (
	"strings"
	"unicode/utf8"

	"github.com/FenixFighter/WebWibe/internal/metrics"
)

// Quality is the rating attached to an automated answer.
type Quality struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

// Adjustments are the score deltas. Penalties are stored as positive values
// and subtracted.
type Adjustments struct {
	Helpful         int `toml:"helpful" json:"helpful"`
	DomainTerms     int `toml:"domain_terms" json:"domain_terms"`
	Relevance       int `toml:"relevance" json:"relevance"`
	Professional    int `toml:"professional" json:"professional"`
	NegativePenalty int `toml:"negative_penalty" json:"negative_penalty"`
	GenericPenalty  int `toml:"generic_penalty" json:"generic_penalty"`
}

// Markers are the lowercase phrases each rule looks for.
type Markers struct {
	Helpful        []string `toml:"helpful" json:"helpful"`
	DomainTerms    []string `toml:"domain_terms" json:"domain_terms"`
	Unprofessional []string `toml:"unprofessional" json:"unprofessional"`
	Negative       []string `toml:"negative" json:"negative"`
	Generic        []string `toml:"generic" json:"generic"`
}

// Config holds the evaluator tuning.
type Config struct {
	Base        int         `toml:"base" json:"base"`
	MinLength   int         `toml:"min_length" json:"min_length"`
	Adjustments Adjustments `toml:"adjustments" json:"adjustments"`
	Markers     Markers     `toml:"markers" json:"markers"`
}

// DefaultConfig returns the standard weights and marker lists.
func DefaultConfig() Config {
	return Config{
		Base:      50,
		MinLength: 20,
		Adjustments: Adjustments{
			Helpful:         20,
			DomainTerms:     15,
			Relevance:       15,
			Professional:    10,
			NegativePenalty: 30,
			GenericPenalty:  20,
		},
		Markers: Markers{
			Helpful: []string{
				"i can help", "let me assist", "here's how", "you can",
				"to do this", "step by step", "specific information",
			},
			DomainTerms: []string{
				"account", "balance", "transaction", "deposit", "withdrawal",
				"loan", "credit", "interest", "banking", "financial",
			},
			Unprofessional: []string{"lol", "haha", "omg", "wtf", "dude", "bro"},
			Negative: []string{
				"i don't know", "i can't help", "i'm not sure", "i don't understand",
				"no answers found", "cannot help", "don't understand",
				"contact support", "human assistance", "escalate",
			},
			Generic: []string{"hello", "hi there", "how can i help", "what can i do"},
		},
	}
}

// Explanation tiers, highest first.
var tiers = []struct {
	min  int
	text string
}{
	{80, "Excellent response with specific banking information and helpful guidance"},
	{60, "Good response with relevant information and professional tone"},
	{40, "Fair response but could be more specific or helpful"},
	{20, "Poor response with limited helpful information"},
	{0, "Very poor response - customer needs human assistance"},
}

// Explain returns the fixed explanation for a score.
func Explain(score int) string {
	for _, t := range tiers {
		if score >= t.min {
			return t.text
		}
	}
	return tiers[len(tiers)-1].text
}

// Evaluator rates answers. It is safe for concurrent use.
type Evaluator struct {
	cfg Config
}

// New creates an evaluator. Marker lists are lowercased once here.
func New(cfg Config) *Evaluator {
	m := &cfg.Markers
	m.Helpful = lowerAll(m.Helpful)
	m.DomainTerms = lowerAll(m.DomainTerms)
	m.Unprofessional = lowerAll(m.Unprofessional)
	m.Negative = lowerAll(m.Negative)
	m.Generic = lowerAll(m.Generic)
	return &Evaluator{cfg: cfg}
}

// Evaluate scores answer as a reply to question.
func (e *Evaluator) Evaluate(question, answer string) Quality {
	score := e.score(question, answer)
	metrics.EvaluatorScore.Observe(float64(score))
	return Quality{Score: score, Explanation: Explain(score)}
}

// score applies the adjustments. Answers shorter than MinLength earn no
// positive adjustment, only the penalties.
func (e *Evaluator) score(question, answer string) int {
	adj := e.cfg.Adjustments
	lower := strings.ToLower(answer)
	short := utf8.RuneCountInString(strings.TrimSpace(answer)) < e.cfg.MinLength

	score := e.cfg.Base
	if !short {
		if containsAny(lower, e.cfg.Markers.Helpful) {
			score += adj.Helpful
		}
		if containsAny(lower, e.cfg.Markers.DomainTerms) {
			score += adj.DomainTerms
		}
		if relevant(question, lower) {
			score += adj.Relevance
		}
		if !containsAny(lower, e.cfg.Markers.Unprofessional) {
			score += adj.Professional
		}
	}
	if containsAny(lower, e.cfg.Markers.Negative) {
		score -= adj.NegativePenalty
	}
	if short || containsAny(lower, e.cfg.Markers.Generic) {
		score -= adj.GenericPenalty
	}

	return clamp(score, 0, 100)
}

// relevant reports whether enough of the question's longer words appear in
// the answer: min(2, words/2) of them. A one-word question needs none.
func relevant(question, lowerAnswer string) bool {
	words := strings.Fields(strings.ToLower(question))
	need := min(2, len(words)/2)
	if need == 0 {
		return true
	}

	matches := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) > 3 && strings.Contains(lowerAnswer, w) {
			matches++
			if matches >= need {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
