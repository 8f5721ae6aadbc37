// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state.
package session

import (
	"time"

	"github.com/vitakit/vita-chat/internal/model"
)

// DefaultGreeting seeds every new session with one assistant message.
const DefaultGreeting = "Hi! I'm Vita, your health assistant. Ask me about your vitals, sleep, or activity."

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is one persisted conversation thread. Messages is the
// authoritative snapshot while the session is not active; for the active
// session the Store's live view is the source of truth until the next
// flush.
type Session struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Derived from Messages; kept consistent after every mutation.
	MessageCount       int    `json:"message_count"`
	LastMessagePreview string `json:"last_message_preview"`

	// Reversible flags, never destructive.
	IsPinned   bool `json:"is_pinned"`
	IsArchived bool `json:"is_archived"`

	// Snapshot of the message history.
	Messages []*model.Message `json:"messages"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Messages = cloneMessages(s.Messages)
	return &clone
}

// refreshDerived recomputes MessageCount and LastMessagePreview from the
// snapshot. Must be called after any change to Messages.
func (s *Session) refreshDerived() {
	s.MessageCount = len(s.Messages)
	if len(s.Messages) == 0 {
		s.LastMessagePreview = ""
		return
	}
	s.LastMessagePreview = s.Messages[len(s.Messages)-1].Preview()
}

// =============================================================================
// HELPERS
// =============================================================================

// cloneMessages deep-copies a message slice. Live and archived state must
// never alias the same backing array or message values.
func cloneMessages(msgs []*model.Message) []*model.Message {
	if msgs == nil {
		return nil
	}
	out := make([]*model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// seedMessages builds the greeting message every fresh session starts with.
func seedMessages(greeting string, at time.Time) []*model.Message {
	msg := model.NewMessage(model.RoleAssistant, greeting)
	msg.Timestamp = at
	return []*model.Message{msg}
}
