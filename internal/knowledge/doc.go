// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package knowledge holds the question/answer corpus used to ground automated
// replies and ranks it against incoming questions.
//
// # Key Types
//
//   - Entry: an immutable question/answer/category record
//   - Index: in-memory ranked search with a two-stage category fallback
//   - SQLiteStore: persistent corpus backing store (modernc.org/sqlite)
//   - Watcher: reloads the corpus file on change (fsnotify)
//
// # Search
//
// Search scores every candidate question against the query and keeps those
// above the relevance floor. When nothing clears the floor and the caller did
// not pin a category, the index picks the category whose label best matches
// the query and returns its entries ranked without the floor. An empty corpus
// yields an empty result, never an error.
//
// # Corpus Formats
//
// CSV with a question,answer,category[,subcategory] header, or YAML as a list
// of mappings with the same keys.
package knowledge
