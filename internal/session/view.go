// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state.
package session

import (
	"github.com/vitakit/vita-chat/internal/model"
)

// =============================================================================
// ACTIVE-VIEW PROJECTOR
// =============================================================================
//
// The live view is the single currently-displayed message list. Every
// mutation below re-derives the owning session's snapshot, message count,
// and preview in the same step; there is no deferred sync. The snapshot
// always holds clones, never the live message pointers.

// Messages returns the live message list. The slice is a copy; the
// messages themselves are the live objects and update as streams arrive.
func (s *Store) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Message(nil), s.view...)
}

// SetMessages replaces the live view wholesale.
func (s *Store) SetMessages(msgs []*model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureActiveLocked()
	s.view = append([]*model.Message(nil), msgs...)
	s.syncActiveLocked()
	if sess := s.findLocked(s.activeID); sess != nil {
		s.persistLocked(sess)
	}
}

// AddMessage appends a message to the live view. When auto-titling is
// enabled and the session still carries the placeholder title, the first
// user message names the session.
func (s *Store) AddMessage(msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureActiveLocked()
	s.view = append(s.view, msg)

	sess := s.findLocked(s.activeID)
	if sess != nil && s.opts.AutoTitle && sess.Title == PlaceholderTitle && msg.Role == model.RoleUser {
		if title := GenerateTitle(msg.DisplayContent()); title != PlaceholderTitle {
			sess.Title = title
		}
	}

	s.syncActiveLocked()
	if sess != nil {
		s.persistLocked(sess)
	}
}

// UpdateMessage applies a partial update to the live message with the
// given id and re-syncs the mirror. Returns false if no such message is
// in the view.
func (s *Store) UpdateMessage(id string, update func(*model.Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.view {
		if msg.ID == id {
			update(msg)
			s.syncActiveLocked()
			return true
		}
	}
	return false
}

// RemoveMessage deletes the live message with the given id. Returns
// false if no such message is in the view.
func (s *Store) RemoveMessage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, msg := range s.view {
		if msg.ID == id {
			s.view = append(s.view[:i], s.view[i+1:]...)
			s.syncActiveLocked()
			if sess := s.findLocked(s.activeID); sess != nil {
				s.persistLocked(sess)
			}
			return true
		}
	}
	return false
}

// TruncateFrom removes the message with the given id and every message
// after it. Used by edit-and-resubmit to rewrite the session tail.
// Returns false if no such message is in the view.
func (s *Store) TruncateFrom(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, msg := range s.view {
		if msg.ID == id {
			s.view = append([]*model.Message(nil), s.view[:i]...)
			s.syncActiveLocked()
			if sess := s.findLocked(s.activeID); sess != nil {
				s.persistLocked(sess)
			}
			return true
		}
	}
	return false
}

// StreamingMessage returns the live message currently flagged as
// streaming, or nil. At most one exists per session.
func (s *Store) StreamingMessage() *model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.view {
		if msg.IsStreaming {
			return msg
		}
	}
	return nil
}

// StreamingContent returns the accumulated content of the streaming
// message, if any. Reads under the store lock, so a display loop can
// poll it while tokens are being appended.
func (s *Store) StreamingContent() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.view {
		if msg.IsStreaming {
			return msg.DisplayContent(), true
		}
	}
	return "", false
}

// =============================================================================
// MIRROR SYNC
// =============================================================================

// ensureActiveLocked lazily creates a session so that view mutations
// before any explicit NewSession still have an owner (first send).
func (s *Store) ensureActiveLocked() {
	if s.activeID == "" || s.findLocked(s.activeID) == nil {
		s.createLocked(PlaceholderTitle)
	}
}

// syncActiveLocked writes the live view into the active session's record:
// cloned messages, derived count and preview, bumped UpdatedAt, and
// move-to-front to keep most-recently-updated ordering.
func (s *Store) syncActiveLocked() {
	sess := s.findLocked(s.activeID)
	if sess == nil {
		return
	}
	sess.Messages = cloneMessages(s.view)
	sess.refreshDerived()
	sess.UpdatedAt = s.opts.Clock()

	if idx := s.indexLocked(sess.ID); idx > 0 {
		s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
		s.sessions = append([]*Session{sess}, s.sessions...)
	}
}
