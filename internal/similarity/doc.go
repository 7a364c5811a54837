// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package similarity scores how closely two short texts match.
//
// The scorer is lexical only and never calls out to a model. Rules are applied
// in priority order:
//
//  1. Exact match after trimming and case folding scores 1.0.
//  2. If one text contains the other, the score is 0.9 when the shorter text is
//     at least 60% of the longer one, otherwise 0.8.
//  3. Otherwise a weighted blend of token Jaccard, character bigram Jaccard and
//     domain keyword overlap, clamped to [0,1].
//
// Domain keywords are drawn from the knowledge corpus the scorer is built with,
// so two scorers built from different corpora may disagree on rule 3.
//
// # Usage
//
//	s := similarity.New(similarity.DefaultConfig(), questions)
//	score := s.Score("How do I open a deposit?", "Open a deposit account")
package similarity
