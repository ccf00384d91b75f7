package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	scope      TEXT NOT NULL,
	peer_id    TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	content    TEXT NOT NULL,
	is_user    INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_key
	ON messages(scope, peer_id, channel_id, id);

CREATE TABLE IF NOT EXISTS decisions (
	id           TEXT PRIMARY KEY,
	channel_id   TEXT NOT NULL,
	author_id    TEXT NOT NULL,
	respond      INTEGER NOT NULL,
	score        INTEGER NOT NULL,
	reasoning    TEXT NOT NULL,
	topic_change INTEGER NOT NULL,
	skip_reason  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created
	ON decisions(created_at DESC);
`

// SQLiteStore implements Store and DecisionLog on a single sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite handles one writer at a time; keep the pool at one conn to
	// avoid SQLITE_BUSY under concurrent pipelines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, key Key, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (scope, peer_id, channel_id, content, is_user, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, key.Scope, key.PeerID, key.ChannelID, e.Content, e.IsUser, ts); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Recent(ctx context.Context, key Key, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content, is_user, created_at FROM messages
		 WHERE scope = ? AND peer_id = ? AND channel_id = ?
		 ORDER BY id DESC LIMIT ?`,
		key.Scope, key.PeerID, key.ChannelID, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Content, &e.IsUser, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query is newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLiteStore) Reset(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE scope = ? AND peer_id = ? AND channel_id = ?`,
		key.Scope, key.PeerID, key.ChannelID)
	if err != nil {
		return fmt.Errorf("reset log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordDecision(ctx context.Context, d Decision) error {
	ts := d.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, channel_id, author_id, respond, score, reasoning, topic_change, skip_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ChannelID, d.AuthorID, d.Respond, d.Score, d.Reasoning, d.TopicChange, d.SkipReason, ts)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentDecisions(ctx context.Context, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, author_id, respond, score, reasoning, topic_change, skip_reason, created_at
		 FROM decisions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.ChannelID, &d.AuthorID, &d.Respond, &d.Score, &d.Reasoning, &d.TopicChange, &d.SkipReason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
