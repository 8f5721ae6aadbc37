// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable local snapshot of chat state.
package storage

const (
	// SchemaVersion tracks the database schema version for migrations.
	// Version 2 added the pinned and archived session flags.
	SchemaVersion = 2
)

// SQLite schema for the chat snapshot database.
const Schema = `
-- Metadata table for schema version and app-level state
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Sessions table: one row per conversation
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix nanoseconds
    updated_at INTEGER NOT NULL,  -- Unix nanoseconds
    message_count INTEGER NOT NULL DEFAULT 0,
    last_preview TEXT NOT NULL DEFAULT '',
    pinned INTEGER NOT NULL DEFAULT 0,
    archived INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);

-- Messages table: ordered message history per session
CREATE TABLE IF NOT EXISTS messages (
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,         -- position within the session
    id TEXT NOT NULL,
    role TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'chat',
    content TEXT NOT NULL,
    timestamp INTEGER NOT NULL,   -- Unix nanoseconds
    is_error INTEGER NOT NULL DEFAULT 0,
    search_mode TEXT NOT NULL DEFAULT '',
    sources_json TEXT,            -- []Citation
    metadata_json TEXT,           -- *Metadata
    payload_json TEXT,            -- variant payload (action/result/widget)
    PRIMARY KEY (session_id, seq),
    FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
) WITHOUT ROWID;
`

// InitMetadata initializes the metadata table with default values.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '2');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('active_session', '');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('selected_model', '');
`

// migrateV1 upgrades a version-1 database in place. The flags default
// to unset on pre-existing sessions.
var migrateV1 = []string{
	`ALTER TABLE sessions ADD COLUMN pinned INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE sessions ADD COLUMN archived INTEGER NOT NULL DEFAULT 0`,
	`UPDATE metadata SET value = '2' WHERE key = 'schema_version'`,
}
