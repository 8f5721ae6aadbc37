// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state.
package session

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vitakit/vita-chat/internal/util"
)

// =============================================================================
// TITLE GENERATION
// =============================================================================

// PlaceholderTitle is the title new sessions carry until auto-titling
// or the user replaces it.
const PlaceholderTitle = "New chat"

// TitleMaxRunes caps generated titles.
const TitleMaxRunes = 40

// greetingPrefixes are stripped (case-insensitively, repeatedly) from
// the front of the first user message before deriving a title.
var greetingPrefixes = []string{
	"good morning",
	"good afternoon",
	"good evening",
	"hello",
	"howdy",
	"hey",
	"hi",
	"yo",
}

// GenerateTitle derives a short session title from the first user
// message: greeting prefixes stripped, first letter capitalized,
// truncated to TitleMaxRunes at a word boundary with an ellipsis.
// Deterministic with no side effects.
func GenerateTitle(firstUserMessage string) string {
	s := strings.TrimSpace(util.CollapseNewlines(firstUserMessage))
	for {
		stripped, ok := stripGreeting(s)
		if !ok {
			break
		}
		s = stripped
	}
	if s == "" {
		return PlaceholderTitle
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return util.TruncateAtWord(string(runes), TitleMaxRunes)
}

// stripGreeting removes one leading greeting prefix. The prefix must be
// followed by a separator (or end of string) so that words like
// "history" survive the "hi" prefix.
func stripGreeting(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, prefix := range greetingPrefixes {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := s[len(prefix):]
		if rest == "" {
			return "", true
		}
		r, _ := utf8.DecodeRuneInString(rest)
		if r == ' ' || r == ',' || r == '!' || r == '.' || r == ':' {
			return strings.TrimLeft(rest, " ,!.:"), true
		}
	}
	return s, false
}
