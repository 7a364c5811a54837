// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package evaluator scores generated answers on a 0-100 scale.
//
// Scoring starts from a base value and applies independent adjustments for
// helpful phrasing, domain vocabulary, relevance to the question, tone,
// inability markers and boilerplate. Answers shorter than the minimum length
// earn no bonuses. The result is clamped and paired with one of five fixed
// explanations.
package evaluator
