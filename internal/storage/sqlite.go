// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/querychat/internal/model"
)

// HistoryDBName is the SQLite history database.
const HistoryDBName = "history.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversation (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id       TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	body     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_position ON messages(position);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore keeps each message as a row. Saves only write rows that
// changed, inside one transaction.
type SQLiteStore struct {
	path       string
	quotaBytes int64
	db         *sql.DB

	mu          sync.Mutex
	dataVersion int64
	closed      bool
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string, quotaBytes int64) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One connection: PRAGMA data_version is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &SQLiteStore{path: path, quotaBytes: quotaBytes, db: db}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load reads the history in message order.
func (s *SQLiteStore) Load(ctx context.Context) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	conv := model.NewConversation()

	var id, created, updated string
	err := s.db.QueryRowContext(ctx, `SELECT id, created_at, updated_at FROM conversation LIMIT 1`).
		Scan(&id, &created, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return conv, s.refreshVersion(ctx)
	case err != nil:
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	conv.ID = id
	conv.CreatedAt = parseTime(created)
	conv.UpdatedAt = parseTime(updated)

	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM messages ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msgID, body string
		if err := rows.Scan(&msgID, &body); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			log.Printf("[storage] skipping unreadable message %s: %v", msgID, err)
			continue
		}
		conv.Messages = append(conv.Messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	return conv, s.refreshVersion(ctx)
}

// Save writes new and changed messages and deletes dropped ones.
func (s *SQLiteStore) Save(ctx context.Context, conv *model.Conversation) error {
	if conv == nil {
		return fmt.Errorf("conversation is nil")
	}

	stored, _, err := fitQuota(conv, s.quotaBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if err := s.saveTx(ctx, tx, stored); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	if err := s.refreshVersion(ctx); err != nil {
		return err
	}

	if dropped := len(conv.Messages) - len(stored.Messages); dropped > 0 {
		log.Printf("[storage] history over quota, dropped %d oldest messages", dropped)
	}
	applyTrim(conv, stored)
	return nil
}

func (s *SQLiteStore) saveTx(ctx context.Context, tx *sql.Tx, conv *model.Conversation) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation WHERE id <> ?`, conv.ID); err != nil {
		return fmt.Errorf("replace conversation: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		conv.ID, formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt)); err != nil {
		return fmt.Errorf("write conversation: %w", err)
	}

	existing := make(map[string]string)
	rows, err := tx.QueryContext(ctx, `SELECT id, body FROM messages`)
	if err != nil {
		return fmt.Errorf("read messages: %w", err)
	}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			rows.Close()
			return fmt.Errorf("scan message: %w", err)
		}
		existing[id] = body
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read messages: %w", err)
	}

	for pos, msg := range conv.Messages {
		body, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message %s: %w", msg.ID, err)
		}
		old, found := existing[msg.ID]
		delete(existing, msg.ID)
		if found && old == string(body) {
			if _, err := tx.ExecContext(ctx, `UPDATE messages SET position = ? WHERE id = ? AND position <> ?`, pos, msg.ID, pos); err != nil {
				return fmt.Errorf("reorder message %s: %w", msg.ID, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, position, body) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET position = excluded.position, body = excluded.body`,
			msg.ID, pos, string(body)); err != nil {
			return fmt.Errorf("write message %s: %w", msg.ID, err)
		}
	}

	for id := range existing {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete message %s: %w", id, err)
		}
	}
	return nil
}

// Clear deletes all stored rows.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM messages`, `DELETE FROM conversation`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return s.refreshVersion(ctx)
}

// Changed reports whether another connection committed since this store
// last loaded or saved.
func (s *SQLiteStore) Changed(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	v, err := s.currentVersion(ctx)
	if err != nil {
		return false, err
	}
	return v != s.dataVersion, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) refreshVersion(ctx context.Context) error {
	v, err := s.currentVersion(ctx)
	if err != nil {
		return err
	}
	s.dataVersion = v
	return nil
}

func (s *SQLiteStore) currentVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read data version: %w", err)
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Now()
	}
	return t
}
