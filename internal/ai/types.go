// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ai provides the HTTP client for the Vita answer service.
package ai

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message is one turn of conversation context sent with a query.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a query to the answer service. Messages carries the
// conversation history, newest last; the final entry is the question.
type Request struct {
	Model        string    `json:"model"`
	Messages     []Message `json:"messages"`
	Temperature  float64   `json:"temperature,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`

	// SearchMode selects retrieval augmentation: "" (off), "web", or
	// "health_db".
	SearchMode string `json:"search_mode,omitempty"`

	// UserID scopes memory-context retrieval on the service side.
	UserID string `json:"user_id,omitempty"`

	Stream bool `json:"stream"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// Source is a citation attached to a response.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// ResponseMeta holds generation details reported by the service.
type ResponseMeta struct {
	Model             string        `json:"model"`
	ProcessingTime    time.Duration `json:"-"`
	ProcessingMillis  int64         `json:"processing_ms,omitempty"`
	PromptTokens      int           `json:"prompt_tokens,omitempty"`
	CompletionTokens  int           `json:"completion_tokens,omitempty"`
	MemoryContextRefs []string      `json:"memory_context_refs,omitempty"`
}

// Response is a complete single-shot answer.
type Response struct {
	Content string       `json:"content"`
	Sources []Source     `json:"sources,omitempty"`
	Meta    ResponseMeta `json:"meta"`
}

// StreamChunk is one NDJSON line of a streaming answer. Content deltas
// arrive first; the final chunk has Done set and carries the sources
// and metadata for the whole answer.
type StreamChunk struct {
	Content           string
	Done              bool
	Model             string
	DoneReason        string
	Sources           []Source
	MemoryContextRefs []string
	ProcessingTime    time.Duration
	PromptTokens      int
	CompletionTokens  int

	// Error is set on chunks delivered through AskStreamChan when the
	// stream fails; it is never set by AskStream itself.
	Error error
}

// serviceError is the JSON error body the service returns on failures.
type serviceError struct {
	Error string `json:"error"`
}

// =============================================================================
// MODEL CAPABILITIES
// =============================================================================

// modelCapabilities records which models support the streaming endpoint.
// Models absent from the table are assumed streaming-capable; the table
// only needs to name the exceptions.
var modelCapabilities = map[string]bool{
	"pulse-1":      true,
	"pulse-1-mini": true,
	"pulse-vision": false,
}

// SupportsStreaming reports whether the model can serve the streaming
// endpoint. Unknown models default to streaming.
func SupportsStreaming(model string) bool {
	streams, known := modelCapabilities[model]
	if !known {
		return true
	}
	return streams
}
