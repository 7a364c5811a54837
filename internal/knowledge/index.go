// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/FenixFighter/WebWibe/internal/metrics"
	"github.com/FenixFighter/WebWibe/internal/similarity"
)

// =============================================================================
// SEARCH STAGE
// =============================================================================

// Stage reports which step of the search produced the results.
type Stage int

const (
	// StageEmpty means the corpus (or the pinned category) produced nothing.
	StageEmpty Stage = iota
	// StageRanked means at least one entry cleared the relevance floor.
	StageRanked
	// StageCategoryFallback means results come from the best matching category.
	StageCategoryFallback
)

// String returns the metric/log label of the stage.
func (s Stage) String() string {
	switch s {
	case StageEmpty:
		return "empty"
	case StageRanked:
		return "ranked"
	case StageCategoryFallback:
		return "category_fallback"
	default:
		return fmt.Sprintf("Stage(%d)", s)
	}
}

// SearchResult is the detailed outcome of a search.
type SearchResult struct {
	Results []Result `json:"results"`
	Stage   Stage    `json:"-"`
	// Category is the fallback category when Stage is StageCategoryFallback.
	Category string `json:"category,omitempty"`
}

// Entries returns the ranked entries without scores.
func (r SearchResult) Entries() []Entry {
	out := make([]Entry, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Entry
	}
	return out
}

// =============================================================================
// INDEX
// =============================================================================

// Config holds index tuning.
type Config struct {
	// RelevanceFloor is the score an entry must exceed to count as a match.
	RelevanceFloor float64

	// DefaultLimit is used when a caller passes a non-positive limit.
	DefaultLimit int

	Scorer similarity.Config
}

// DefaultConfig returns the standard index tuning.
func DefaultConfig() Config {
	return Config{
		RelevanceFloor: 0.3,
		DefaultLimit:   5,
		Scorer:         similarity.DefaultConfig(),
	}
}

// Index ranks knowledge entries against free-text questions. The entry set can
// be swapped atomically with Replace; searches in flight keep the set they
// started with.
type Index struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	entries []Entry
	scorer  *similarity.Scorer
}

// NewIndex creates an index over entries.
func NewIndex(cfg Config, entries []Entry, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultConfig().DefaultLimit
	}
	ix := &Index{cfg: cfg, logger: logger.With("component", "knowledge")}
	ix.Replace(entries)
	return ix
}

// Load builds an index from a corpus source.
func Load(ctx context.Context, cfg Config, src Source, logger *slog.Logger) (*Index, error) {
	entries, err := src.LoadKnowledgeCorpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("load knowledge corpus: %w", err)
	}
	return NewIndex(cfg, entries, logger), nil
}

// Replace swaps the entry set and rebuilds the keyword vocabulary.
func (ix *Index) Replace(entries []Entry) {
	copied := make([]Entry, len(entries))
	copy(copied, entries)

	questions := make([]string, len(copied))
	for i, e := range copied {
		questions[i] = e.Question
	}
	scorer := similarity.New(ix.cfg.Scorer, questions)

	ix.mu.Lock()
	ix.entries = copied
	ix.scorer = scorer
	ix.mu.Unlock()

	metrics.KnowledgeEntries.Set(float64(len(copied)))
	ix.logger.Info("knowledge index loaded",
		slog.Int("entries", len(copied)),
		slog.Int("keywords", scorer.KeywordCount()),
	)
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Entries returns a copy of the entry set in insertion order.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Categories returns the distinct category labels in first-seen order.
// Labels differing only in case are treated as one.
func (ix *Index) Categories() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return distinctCategories(ix.entries)
}

// Score exposes the current scorer.
func (ix *Index) Score(a, b string) float64 {
	ix.mu.RLock()
	scorer := ix.scorer
	ix.mu.RUnlock()
	return scorer.Score(a, b)
}

// Search returns up to limit entries best first. See SearchDetailed.
func (ix *Index) Search(query, category string, limit int) []Entry {
	return ix.SearchDetailed(query, category, limit).Entries()
}

// SearchDetailed runs the two-stage search:
//
//  1. Candidates are all entries, or those in category (case-insensitive).
//  2. Candidates are scored against query and sorted best first; ties keep
//     insertion order.
//  3. Candidates scoring above the relevance floor are returned, up to limit.
//  4. If none survive and no category was pinned, the category whose label
//     best matches the query is searched again without the floor.
func (ix *Index) SearchDetailed(query, category string, limit int) SearchResult {
	if limit <= 0 {
		limit = ix.cfg.DefaultLimit
	}

	ix.mu.RLock()
	entries := ix.entries
	scorer := ix.scorer
	ix.mu.RUnlock()

	result := ix.search(scorer, entries, query, category, limit)
	metrics.KnowledgeSearches.WithLabelValues(result.Stage.String()).Inc()
	ix.logger.Debug("knowledge search",
		slog.String("category", category),
		slog.String("stage", result.Stage.String()),
		slog.Int("results", len(result.Results)),
	)
	return result
}

func (ix *Index) search(scorer *similarity.Scorer, entries []Entry, query, category string, limit int) SearchResult {
	if len(entries) == 0 {
		return SearchResult{Stage: StageEmpty}
	}

	pinned := strings.TrimSpace(category) != ""
	ranked := rank(scorer, filterCategory(entries, category), query)

	var survivors []Result
	for _, r := range ranked {
		if r.Score > ix.cfg.RelevanceFloor {
			survivors = append(survivors, r)
		}
	}
	if len(survivors) > 0 {
		return SearchResult{Results: capResults(survivors, limit), Stage: StageRanked}
	}
	if pinned {
		return SearchResult{Stage: StageEmpty}
	}

	best := bestCategory(scorer, distinctCategories(entries), query)
	fallback := rank(scorer, filterCategory(entries, best), query)
	if len(fallback) == 0 {
		return SearchResult{Stage: StageEmpty}
	}
	return SearchResult{
		Results:  capResults(fallback, limit),
		Stage:    StageCategoryFallback,
		Category: best,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func filterCategory(entries []Entry, category string) []Entry {
	category = strings.TrimSpace(category)
	if category == "" {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if strings.EqualFold(strings.TrimSpace(e.Category), category) {
			out = append(out, e)
		}
	}
	return out
}

func rank(scorer *similarity.Scorer, entries []Entry, query string) []Result {
	results := make([]Result, len(entries))
	for i, e := range entries {
		results[i] = Result{Entry: e, Score: scorer.Score(query, e.Question)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// bestCategory returns the label scoring highest against query. The first
// label wins ties, including the all-zero case.
func bestCategory(scorer *similarity.Scorer, categories []string, query string) string {
	best, bestScore := "", -1.0
	for _, c := range categories {
		if s := scorer.Score(query, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func distinctCategories(entries []Entry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		label := strings.TrimSpace(e.Category)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, label)
	}
	return out
}

func capResults(results []Result, limit int) []Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
