// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Weights controls the blend used when neither exact nor substring rules fire.
type Weights struct {
	Token   float64 `toml:"token" json:"token"`
	Bigram  float64 `toml:"bigram" json:"bigram"`
	Keyword float64 `toml:"keyword" json:"keyword"`
}

// Config holds the tunable constants of the scorer.
type Config struct {
	Weights Weights

	// SubstringHigh is returned when the shorter text covers at least
	// SubstringRatio of the longer one; SubstringLow otherwise.
	SubstringHigh  float64
	SubstringLow   float64
	SubstringRatio float64

	// MinKeywordRunes is the minimum token length (in runes) for a corpus
	// token to count as a domain keyword.
	MinKeywordRunes int

	StopWords []string
}

// DefaultConfig returns the standard scorer constants.
func DefaultConfig() Config {
	return Config{
		Weights:         Weights{Token: 0.4, Bigram: 0.3, Keyword: 0.3},
		SubstringHigh:   0.9,
		SubstringLow:    0.8,
		SubstringRatio:  0.6,
		MinKeywordRunes: 4,
		StopWords:       DefaultStopWords,
	}
}

// =============================================================================
// SCORER
// =============================================================================

// Scorer computes lexical similarity. It is immutable after construction and
// safe for concurrent use.
type Scorer struct {
	cfg      Config
	stop     map[string]struct{}
	keywords map[string]struct{}
}

// New builds a scorer whose keyword set is extracted from corpus.
func New(cfg Config, corpus []string) *Scorer {
	s := &Scorer{
		cfg:      cfg,
		stop:     make(map[string]struct{}, len(cfg.StopWords)),
		keywords: make(map[string]struct{}),
	}
	for _, w := range cfg.StopWords {
		s.stop[Normalize(w)] = struct{}{}
	}
	for _, text := range corpus {
		for _, tok := range Tokens(text) {
			if s.isKeyword(tok) {
				s.keywords[tok] = struct{}{}
			}
		}
	}
	return s
}

func (s *Scorer) isKeyword(tok string) bool {
	if utf8.RuneCountInString(tok) < s.cfg.MinKeywordRunes {
		return false
	}
	_, stop := s.stop[tok]
	return !stop
}

// KeywordCount returns the size of the domain keyword set.
func (s *Scorer) KeywordCount() int {
	return len(s.keywords)
}

// Score returns the similarity of a and b in [0,1]. Empty input scores 0.
func (s *Scorer) Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
		shorter, longer := la, lb
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		if float64(shorter) >= s.cfg.SubstringRatio*float64(longer) {
			return s.cfg.SubstringHigh
		}
		return s.cfg.SubstringLow
	}

	ta, tb := tokenSet(na), tokenSet(nb)
	w := s.cfg.Weights
	score := w.Token*jaccard(ta, tb) +
		w.Bigram*jaccard(bigrams(na), bigrams(nb)) +
		w.Keyword*s.keywordOverlap(ta, tb)
	return clamp(score)
}

// keywordOverlap is the share of domain keywords present in either text that
// are present in both.
func (s *Scorer) keywordOverlap(a, b map[string]struct{}) float64 {
	total, matches := 0, 0
	for tok := range a {
		if _, ok := s.keywords[tok]; !ok {
			continue
		}
		total++
		if _, ok := b[tok]; ok {
			matches++
		}
	}
	for tok := range b {
		if _, ok := s.keywords[tok]; !ok {
			continue
		}
		if _, ok := a[tok]; !ok {
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matches) / float64(total)
}

// =============================================================================
// TEXT HELPERS
// =============================================================================

// Normalize applies NFKC, case folding and whitespace trimming.
func Normalize(s string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFKC.String(s)))
}

// Tokens splits s on whitespace after normalization and strips punctuation
// from token edges. Tokens that are pure punctuation are dropped.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(normalized) {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

func bigrams(normalized string) map[string]struct{} {
	runes := []rune(normalized)
	set := make(map[string]struct{})
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
