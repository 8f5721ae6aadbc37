// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// SEARCH MODE
// =============================================================================

// SearchMode tags a user message with the retrieval mode that was active
// when it was sent.
type SearchMode string

const (
	// SearchModeOff is the default: the model answers from its own knowledge.
	SearchModeOff SearchMode = ""

	// SearchModeWeb augments the query with live web search results.
	SearchModeWeb SearchMode = "web"

	// SearchModeHealthDB augments the query with the curated health database.
	SearchModeHealthDB SearchMode = "health_db"
)

// IsDefault reports whether the mode is the default (no augmentation).
func (m SearchMode) IsDefault() bool {
	return m == SearchModeOff
}

// =============================================================================
// CITATIONS AND METADATA
// =============================================================================

// Citation is a source reference attached to an assistant response.
type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Metadata holds generation details returned with a completed response.
type Metadata struct {
	Model             string        `json:"model,omitempty"`
	ProcessingTime    time.Duration `json:"processing_time_ns,omitempty"`
	TokensEstimated   int           `json:"tokens_estimated,omitempty"`
	MemoryContextRefs []string      `json:"memory_context_refs,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (md *Metadata) Clone() *Metadata {
	if md == nil {
		return nil
	}
	clone := *md
	clone.MemoryContextRefs = append([]string(nil), md.MemoryContextRefs...)
	return &clone
}

// =============================================================================
// STREAM STATE
// =============================================================================

// StreamState describes the display state of a streaming message.
type StreamState int

const (
	// StreamIdle means the message is not streaming.
	StreamIdle StreamState = iota

	// StreamPending means streaming has started but no content has arrived.
	StreamPending

	// StreamInProgress means content is arriving.
	StreamInProgress
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// PreviewLength is the number of runes kept in a message preview.
const PreviewLength = 100

// Message represents a single message in a session.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Variant tag and payloads (see variants.go)
	Kind    Kind           `json:"kind"`
	Action  *ActionRequest `json:"action,omitempty"`
	Result  *ActionResult  `json:"result,omitempty"`
	Widget  *Widget        `json:"widget,omitempty"`

	// Content
	Content string `json:"content"`

	// State flags
	IsStreaming bool `json:"-"`
	IsError     bool `json:"is_error,omitempty"`

	// Optional attachments
	Image      string     `json:"image,omitempty"`
	Sources    []Citation `json:"sources,omitempty"`
	Metadata   *Metadata  `json:"metadata,omitempty"`
	SearchMode SearchMode `json:"search_mode,omitempty"`

	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	stream strings.Builder
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Kind:      KindChat,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an empty assistant message in streaming state.
// This is the placeholder that response chunks are appended into.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          generateID(),
		Role:        RoleAssistant,
		Kind:        KindChat,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a response chunk to a streaming message.
// Content is append-only while streaming; tokens arriving after
// finalization are ignored.
func (m *Message) AppendToken(token string) {
	if m.IsStreaming {
		m.stream.WriteString(token)
	}
}

// FinalizeStream completes streaming, merging accumulated content into
// Content. Safe to call on a non-streaming message.
func (m *Message) FinalizeStream() {
	if !m.IsStreaming {
		return
	}
	m.Content = m.stream.String()
	m.stream.Reset()
	m.IsStreaming = false
}

// DisplayContent returns the content to display (streaming or final).
func (m *Message) DisplayContent() string {
	if m.IsStreaming {
		return m.stream.String()
	}
	return m.Content
}

// State returns the streaming display state: pending while streaming with
// no content yet, in-progress once content has arrived, idle otherwise.
func (m *Message) State() StreamState {
	if !m.IsStreaming {
		return StreamIdle
	}
	if m.stream.Len() == 0 {
		return StreamPending
	}
	return StreamInProgress
}

// Preview returns the first PreviewLength runes of the current content
// with newlines collapsed. Rune-based truncation keeps UTF-8 intact.
func (m *Message) Preview() string {
	content := strings.ReplaceAll(m.DisplayContent(), "\n", " ")
	content = strings.ReplaceAll(content, "\r", "")
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.stream.Len() == 0
}

// EstimateTokens gives a rough token count using ~4 characters per token.
func (m *Message) EstimateTokens() int {
	return (len(m.DisplayContent()) + 3) / 4
}

// Clone returns a deep copy of the message. The copy carries the content
// accumulated so far and never shares the stream buffer, so snapshots
// taken mid-stream stay stable.
func (m *Message) Clone() *Message {
	clone := &Message{
		ID:          m.ID,
		Role:        m.Role,
		Timestamp:   m.Timestamp,
		Kind:        m.Kind,
		Action:      m.Action.clone(),
		Result:      m.Result.clone(),
		Widget:      m.Widget.clone(),
		Content:     m.DisplayContent(),
		IsStreaming: m.IsStreaming,
		IsError:     m.IsError,
		Image:       m.Image,
		Metadata:    m.Metadata.Clone(),
		SearchMode:  m.SearchMode,
	}
	if m.IsStreaming {
		// The clone gets its own buffer holding the content so far, so
		// DisplayContent stays correct without tracking the live stream.
		clone.Content = ""
		clone.stream.WriteString(m.DisplayContent())
	}
	if m.Sources != nil {
		clone.Sources = append([]Citation(nil), m.Sources...)
	}
	return clone
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
