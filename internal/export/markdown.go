// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/vitakit/vita-chat/internal/model"
	"github.com/vitakit/vita-chat/internal/session"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports sessions to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a session to Markdown format.
func (e *MarkdownExporter) Export(sess *session.Session) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if len(sess.Messages) == 0 {
		return nil, fmt.Errorf("session has no messages")
	}

	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %q\n", sess.Title))
		sb.WriteString(fmt.Sprintf("date: %s\n", sess.CreatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("updated: %s\n", sess.UpdatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(sess.Messages)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: vita\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", sess.Title))

	for i, msg := range sess.Messages {
		label := roleLabel(msg)
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n",
				label, msg.Timestamp.Format("2006-01-02 15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}

		sb.WriteString(e.formatBody(msg))
		sb.WriteString("\n\n")

		if i < len(sess.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from vita on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(msg *model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		return "[You]"
	case model.RoleAssistant:
		if msg.IsError {
			return "[Assistant — error]"
		}
		return "[Assistant]"
	case model.RoleSystem:
		return "[System]"
	default:
		return string(msg.Role)
	}
}

// formatBody renders the message content for its kind, followed by any
// citations and generation stats.
func (e *MarkdownExporter) formatBody(msg *model.Message) string {
	var sb strings.Builder

	switch msg.Kind {
	case model.KindActionRequest:
		if msg.Action != nil {
			sb.WriteString(fmt.Sprintf("**Action**: `%s`\n", msg.Action.Name))
			for k, v := range msg.Action.Args {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", k, v))
			}
		}
	case model.KindActionResult:
		if msg.Result != nil {
			status := "[OK]"
			if !msg.Result.Success {
				status = "[FAIL]"
			}
			sb.WriteString(fmt.Sprintf("**Result** %s: `%s`\n", status, msg.Result.Name))
			if msg.Result.Output != "" {
				sb.WriteString("```\n")
				sb.WriteString(msg.Result.Output)
				sb.WriteString("\n```\n")
			}
		}
	case model.KindWidget:
		if msg.Widget != nil {
			sb.WriteString(fmt.Sprintf("**Card**: `%s`\n", msg.Widget.Type))
		}
	default:
		sb.WriteString(strings.TrimSpace(msg.DisplayContent()))
	}

	if len(msg.Sources) > 0 {
		sb.WriteString("\n\n**Sources**:\n")
		for _, src := range msg.Sources {
			if src.URL != "" {
				sb.WriteString(fmt.Sprintf("- [%s](%s)\n", src.Title, src.URL))
			} else {
				sb.WriteString(fmt.Sprintf("- %s\n", src.Title))
			}
		}
	}

	if e.options.IncludeMetadata && msg.Metadata != nil {
		stats := formatStats(msg.Metadata)
		if stats != "" {
			sb.WriteString("\n\n")
			sb.WriteString(stats)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func formatStats(md *model.Metadata) string {
	var parts []string
	if md.Model != "" {
		parts = append(parts, fmt.Sprintf("Model: %s", md.Model))
	}
	if md.TokensEstimated > 0 {
		parts = append(parts, fmt.Sprintf("Tokens: %d", md.TokensEstimated))
	}
	if md.ProcessingTime > 0 {
		parts = append(parts, fmt.Sprintf("Took: %s", md.ProcessingTime.Round(time.Millisecond)))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("<sub>%s</sub>", strings.Join(parts, " | "))
}
