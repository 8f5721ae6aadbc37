// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state.
package session

import "strings"

// =============================================================================
// SESSION SEARCH
// =============================================================================

// SearchSessions filters sessions by a case-insensitive substring match
// across title, preview, and full message content. Archived sessions are
// skipped. An empty or whitespace query returns nil ("no search active"),
// distinct from a non-nil empty slice ("no matches"), so callers can
// render the two states differently.
func SearchSessions(sessions []*Session, query string) []*Session {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	q := strings.ToLower(query)

	results := make([]*Session, 0)
	for _, sess := range sessions {
		if sess.IsArchived {
			continue
		}
		if sessionMatches(sess, q) {
			results = append(results, sess)
		}
	}
	return results
}

func sessionMatches(sess *Session, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(sess.Title), lowerQuery) {
		return true
	}
	if strings.Contains(strings.ToLower(sess.LastMessagePreview), lowerQuery) {
		return true
	}
	for _, msg := range sess.Messages {
		if strings.Contains(strings.ToLower(msg.DisplayContent()), lowerQuery) {
			return true
		}
	}
	return false
}
