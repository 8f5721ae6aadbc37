// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // cyan
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")). // purple
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // emerald

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // amber

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")). // rose
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	pinStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// newMarkdownRenderer builds the glamour renderer used for finalized
// assistant messages. Returns nil when the terminal cannot be probed;
// callers fall back to plain text.
func newMarkdownRenderer() *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders content as markdown, falling back to the raw
// text on any rendering error.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}
