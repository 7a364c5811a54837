// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

const (
	// SchemaVersion tracks the corpus store schema for migrations.
	SchemaVersion = 1
)

// Schema is the SQLite schema of the corpus store. Row ids preserve the
// insertion order that search ties fall back to.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    subcategory TEXT NOT NULL DEFAULT '',
    imported_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_category ON entries(category COLLATE NOCASE);
`
