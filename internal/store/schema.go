package store

import (
	"context"
	"fmt"
)

const baseSchema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id),
	root_event_id TEXT,
	head_event_id TEXT,
	latest_model TEXT,
	latest_reasoning_level TEXT,
	ended INTEGER NOT NULL DEFAULT 0,
	event_count INTEGER NOT NULL DEFAULT 0,
	message_count INTEGER NOT NULL DEFAULT 0,
	title TEXT,
	tags TEXT,
	forked_from_session_id TEXT,
	forked_from_event_id TEXT,
	was_interrupted INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON sessions(workspace_id);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	parent_id TEXT REFERENCES events(id),
	sequence INTEGER NOT NULL,
	kind TEXT NOT NULL,
	payload BLOB NOT NULL,
	timestamp INTEGER NOT NULL,
	tombstone INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_session_sequence ON events(session_id, sequence);
CREATE INDEX IF NOT EXISTS idx_events_parent ON events(parent_id);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);

CREATE TABLE IF NOT EXISTS device_tokens (
	token TEXT PRIMARY KEY,
	environment TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
`

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
	event_id UNINDEXED,
	session_id UNINDEXED,
	workspace_id UNINDEXED,
	kind UNINDEXED,
	body
);
`

// migrate applies the base schema and, when enabled, the FTS5 virtual
// table. Both are idempotent (IF NOT EXISTS) so migrate is safe to call
// on every Open.
func (db *DB) migrate(ctx context.Context, enableFTS bool) error {
	if _, err := db.conn.ExecContext(ctx, baseSchema); err != nil {
		return fmt.Errorf("apply base schema: %w", err)
	}
	if enableFTS {
		if _, err := db.conn.ExecContext(ctx, ftsSchema); err != nil {
			return fmt.Errorf("apply fts schema: %w", err)
		}
	}
	return nil
}
