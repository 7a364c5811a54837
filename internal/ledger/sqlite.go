// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Schema is the assignment table. The partial unique index is the storage
// level guard for one active assignment per conversation.
const Schema = `
CREATE TABLE IF NOT EXISTS assignments (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    status TEXT NOT NULL,
    assigned_at INTEGER NOT NULL,
    resolved_at INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_active
    ON assignments(conversation_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_assignments_agent ON assignments(agent_id, status);
CREATE INDEX IF NOT EXISTS idx_assignments_conversation ON assignments(conversation_id, assigned_at);
`

// SQLiteStore persists assignments in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the ledger database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const assignmentColumns = "id, conversation_id, agent_id, status, assigned_at, resolved_at"

func (s *SQLiteStore) Active(ctx context.Context, conversationID string) (Assignment, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE conversation_id = ? AND status = 'active'",
		conversationID)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, false, nil
	}
	if err != nil {
		return Assignment{}, false, err
	}
	return a, true, nil
}

func (s *SQLiteStore) Create(ctx context.Context, a Assignment) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO assignments ("+assignmentColumns+") VALUES (?, ?, ?, ?, ?, NULL)",
		a.ID, a.ConversationID, a.AgentID, a.Status.String(), a.AssignedAt.UnixNano())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrAlreadyActive
	}
	return err
}

func (s *SQLiteStore) Resolve(ctx context.Context, conversationID string, at time.Time) (Assignment, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Assignment{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE conversation_id = ? AND status = 'active'",
		conversationID)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, false, nil
	}
	if err != nil {
		return Assignment{}, false, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE assignments SET status = 'resolved', resolved_at = ? WHERE id = ?",
		at.UnixNano(), a.ID); err != nil {
		return Assignment{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Assignment{}, false, err
	}

	a.Status = StatusResolved
	a.ResolvedAt = &at
	return a, true, nil
}

func (s *SQLiteStore) History(ctx context.Context, conversationID string) ([]Assignment, error) {
	return s.query(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE conversation_id = ? ORDER BY assigned_at, rowid",
		conversationID)
}

func (s *SQLiteStore) ActiveByAgent(ctx context.Context, agentID string) ([]Assignment, error) {
	return s.query(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE agent_id = ? AND status = 'active' ORDER BY assigned_at, rowid",
		agentID)
}

func (s *SQLiteStore) ActiveCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT agent_id, COUNT(*) FROM assignments WHERE status = 'active' GROUP BY agent_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row scanner) (Assignment, error) {
	var (
		a        Assignment
		status   string
		assigned int64
		resolved sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.ConversationID, &a.AgentID, &status, &assigned, &resolved); err != nil {
		return Assignment{}, err
	}
	st, err := ParseStatus(status)
	if err != nil {
		return Assignment{}, err
	}
	a.Status = st
	a.AssignedAt = time.Unix(0, assigned)
	if resolved.Valid {
		t := time.Unix(0, resolved.Int64)
		a.ResolvedAt = &t
	}
	return a, nil
}
