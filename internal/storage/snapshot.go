// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable local snapshot of chat state.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vitakit/vita-chat/internal/model"
	"github.com/vitakit/vita-chat/internal/session"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("session not found")

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

// SnapshotStore persists chat state to a SQLite database. Safe for
// concurrent use; writes are serialized by a mutex on top of the
// single-connection pool SQLite requires anyway.
type SnapshotStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the snapshot database at path and brings the
// schema up to the current version.
func Open(path string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SnapshotStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SnapshotStore) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}
	if _, err := s.db.Exec(InitMetadata); err != nil {
		return err
	}
	return s.migrate()
}

// migrate upgrades older databases in place. Additive only.
func (s *SnapshotStore) migrate() error {
	var version string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&version)
	if err != nil {
		return err
	}

	if version == "1" {
		for _, stmt := range migrateV1 {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("migration to v2 failed: %w", err)
			}
		}
	}
	return nil
}

// =============================================================================
// SESSION PERSISTENCE (session.Saver)
// =============================================================================

// SaveSession upserts a session and rewrites its message history in one
// transaction.
func (s *SnapshotStore) SaveSession(sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, title, created_at, updated_at, message_count, last_preview, pinned, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count,
			last_preview = excluded.last_preview,
			pinned = excluded.pinned,
			archived = excluded.archived`,
		sess.ID, sess.Title, sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
		sess.MessageCount, sess.LastMessagePreview, boolInt(sess.IsPinned), boolInt(sess.IsArchived))
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (session_id, seq, id, role, kind, content, timestamp, is_error, search_mode, sources_json, metadata_json, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for seq, msg := range sess.Messages {
		sources, metadata, payload, err := encodeAttachments(msg)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(sess.ID, seq, msg.ID, msg.Role.String(), string(msg.Kind),
			msg.DisplayContent(), msg.Timestamp.UnixNano(), boolInt(msg.IsError),
			string(msg.SearchMode), sources, metadata, payload)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteSession removes a session and its messages.
func (s *SnapshotStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The messages FK cascade handles the history.
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveActiveID records the active session pointer.
func (s *SnapshotStore) SaveActiveID(id string) error {
	return s.setMetadata("active_session", id)
}

// ActiveID returns the stored active session pointer, or "".
func (s *SnapshotStore) ActiveID() (string, error) {
	return s.getMetadata("active_session")
}

// SaveSelectedModel records the user's model choice.
func (s *SnapshotStore) SaveSelectedModel(name string) error {
	return s.setMetadata("selected_model", name)
}

// SelectedModel returns the stored model choice, or "".
func (s *SnapshotStore) SelectedModel() (string, error) {
	return s.getMetadata("selected_model")
}

var _ session.Saver = (*SnapshotStore)(nil)

// =============================================================================
// LOAD
// =============================================================================

// LoadSessions reads every session with its full message history, most
// recently updated first.
func (s *SnapshotStore) LoadSessions() ([]*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, title, created_at, updated_at, message_count, last_preview, pinned, archived
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		var (
			sess                 session.Session
			created, updated     int64
			pinned, archived     int
		)
		if err := rows.Scan(&sess.ID, &sess.Title, &created, &updated,
			&sess.MessageCount, &sess.LastMessagePreview, &pinned, &archived); err != nil {
			return nil, err
		}
		sess.CreatedAt = time.Unix(0, created)
		sess.UpdatedAt = time.Unix(0, updated)
		sess.IsPinned = pinned != 0
		sess.IsArchived = archived != 0
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sess := range sessions {
		msgs, err := s.loadMessages(sess.ID)
		if err != nil {
			return nil, err
		}
		sess.Messages = msgs
	}
	return sessions, nil
}

func (s *SnapshotStore) loadMessages(sessionID string) ([]*model.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, role, kind, content, timestamp, is_error, search_mode, sources_json, metadata_json, payload_json
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		var (
			msg                        model.Message
			role, kind, searchMode     string
			ts                         int64
			isError                    int
			sources, metadata, payload sql.NullString
		)
		if err := rows.Scan(&msg.ID, &role, &kind, &msg.Content, &ts,
			&isError, &searchMode, &sources, &metadata, &payload); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		msg.Kind = model.Kind(kind)
		msg.Timestamp = time.Unix(0, ts)
		msg.IsError = isError != 0
		msg.SearchMode = model.SearchMode(searchMode)
		if err := decodeAttachments(&msg, sources, metadata, payload); err != nil {
			return nil, err
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// =============================================================================
// ATTACHMENT CODECS
// =============================================================================

// variantPayload is the JSON envelope for non-chat message payloads and
// optional attachments that have no column of their own.
type variantPayload struct {
	Action *model.ActionRequest `json:"action,omitempty"`
	Result *model.ActionResult  `json:"result,omitempty"`
	Widget *model.Widget        `json:"widget,omitempty"`
	Image  string               `json:"image,omitempty"`
}

func encodeAttachments(msg *model.Message) (sources, metadata, payload sql.NullString, err error) {
	if len(msg.Sources) > 0 {
		data, merr := json.Marshal(msg.Sources)
		if merr != nil {
			return sources, metadata, payload, merr
		}
		sources = sql.NullString{String: string(data), Valid: true}
	}
	if msg.Metadata != nil {
		data, merr := json.Marshal(msg.Metadata)
		if merr != nil {
			return sources, metadata, payload, merr
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}
	if msg.Action != nil || msg.Result != nil || msg.Widget != nil || msg.Image != "" {
		data, merr := json.Marshal(variantPayload{Action: msg.Action, Result: msg.Result, Widget: msg.Widget, Image: msg.Image})
		if merr != nil {
			return sources, metadata, payload, merr
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	return sources, metadata, payload, nil
}

func decodeAttachments(msg *model.Message, sources, metadata, payload sql.NullString) error {
	if sources.Valid {
		if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
			return err
		}
	}
	if metadata.Valid {
		msg.Metadata = &model.Metadata{}
		if err := json.Unmarshal([]byte(metadata.String), msg.Metadata); err != nil {
			return err
		}
	}
	if payload.Valid {
		var v variantPayload
		if err := json.Unmarshal([]byte(payload.String), &v); err != nil {
			return err
		}
		msg.Action, msg.Result, msg.Widget = v.Action, v.Result, v.Widget
		msg.Image = v.Image
	}
	return nil
}

// =============================================================================
// METADATA HELPERS
// =============================================================================

func (s *SnapshotStore) setMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *SnapshotStore) getMetadata(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
