// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger tracks which human agent, if any, is attached to each
// conversation.
//
// An assignment moves from Active to Resolved and is never reopened; a
// conversation with only resolved assignments is handled automatically again.
// At most one assignment per conversation is Active at any time. Assign,
// Claim and Resolve run under a lock scoped to the conversation id, and the
// SQLite store additionally enforces the invariant with a partial unique
// index.
package ledger
