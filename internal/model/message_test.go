// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages.
package model

import (
	"strings"
	"testing"
)

// =============================================================================
// STREAMING LIFECYCLE TESTS
// =============================================================================

func TestMessage_StreamingLifecycle(t *testing.T) {
	msg := NewAssistantMessage()

	if !msg.IsStreaming {
		t.Fatal("new assistant message should be streaming")
	}
	if msg.State() != StreamPending {
		t.Errorf("empty streaming message state = %v, want StreamPending", msg.State())
	}

	msg.AppendToken("Blood pressure ")
	msg.AppendToken("looks stable.")

	if msg.State() != StreamInProgress {
		t.Errorf("state = %v, want StreamInProgress", msg.State())
	}
	if got := msg.DisplayContent(); got != "Blood pressure looks stable." {
		t.Errorf("DisplayContent() = %q", got)
	}
	if msg.Content != "" {
		t.Errorf("Content should stay empty until finalized, got %q", msg.Content)
	}

	msg.FinalizeStream()

	if msg.IsStreaming {
		t.Error("message should not be streaming after finalize")
	}
	if msg.Content != "Blood pressure looks stable." {
		t.Errorf("Content = %q after finalize", msg.Content)
	}
	if msg.State() != StreamIdle {
		t.Errorf("state = %v after finalize, want StreamIdle", msg.State())
	}
}

func TestMessage_AppendAfterFinalizeIgnored(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendToken("done")
	msg.FinalizeStream()

	msg.AppendToken(" late chunk")

	if msg.DisplayContent() != "done" {
		t.Errorf("late token should be ignored, got %q", msg.DisplayContent())
	}
}

func TestMessage_FinalizeIdempotent(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendToken("hello")
	msg.FinalizeStream()
	msg.FinalizeStream()

	if msg.Content != "hello" {
		t.Errorf("Content = %q after double finalize", msg.Content)
	}
}

// =============================================================================
// PREVIEW TESTS
// =============================================================================

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "short content unchanged",
			content: "my heart rate today",
			want:    "my heart rate today",
		},
		{
			name:    "newlines collapsed",
			content: "line one\nline two",
			want:    "line one line two",
		},
		{
			name:    "long content truncated with ellipsis",
			content: strings.Repeat("a", 150),
			want:    strings.Repeat("a", 97) + "...",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewUserMessage(tc.content)
			if got := msg.Preview(); got != tc.want {
				t.Errorf("Preview() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMessage_PreviewOfStreamingContent(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendToken("partial answer")

	if got := msg.Preview(); got != "partial answer" {
		t.Errorf("Preview() during streaming = %q", got)
	}
}

// =============================================================================
// CLONE TESTS
// =============================================================================

func TestMessage_CloneIsDeep(t *testing.T) {
	msg := NewUserMessage("check my readings")
	msg.Sources = []Citation{{Title: "AHA guideline", URL: "https://example.org"}}
	msg.Metadata = &Metadata{Model: "pulse-1", TokensEstimated: 12, MemoryContextRefs: []string{"ref1"}}
	msg.SearchMode = SearchModeWeb

	clone := msg.Clone()

	clone.Sources[0].Title = "changed"
	clone.Metadata.Model = "other"
	clone.Metadata.MemoryContextRefs[0] = "mutated"

	if msg.Sources[0].Title != "AHA guideline" {
		t.Error("clone shares Sources backing array")
	}
	if msg.Metadata.Model != "pulse-1" {
		t.Error("clone shares Metadata")
	}
	if msg.Metadata.MemoryContextRefs[0] != "ref1" {
		t.Error("clone shares MemoryContextRefs")
	}
}

func TestMessage_CloneMidStream(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendToken("so far")

	clone := msg.Clone()
	msg.AppendToken(" and more")

	if clone.DisplayContent() == msg.DisplayContent() {
		t.Error("clone should not track the live stream buffer")
	}
	if got := clone.DisplayContent(); got != "so far" {
		t.Errorf("clone content = %q, want content accumulated at clone time", got)
	}
	if !clone.IsStreaming {
		t.Error("mid-stream clone should still be marked streaming")
	}

	clone.FinalizeStream()
	if clone.Content != "so far" {
		t.Errorf("finalized clone Content = %q", clone.Content)
	}
}

// =============================================================================
// VARIANT DISPATCH TESTS
// =============================================================================

func TestDispatch_AllKinds(t *testing.T) {
	var seen []Kind
	handlers := VariantHandlers{
		Chat:          func(m *Message) { seen = append(seen, KindChat) },
		ActionRequest: func(m *Message, a *ActionRequest) { seen = append(seen, KindActionRequest) },
		ActionResult:  func(m *Message, r *ActionResult) { seen = append(seen, KindActionResult) },
		Widget:        func(m *Message, w *Widget) { seen = append(seen, KindWidget) },
	}

	msgs := []*Message{
		NewUserMessage("plain"),
		{ID: "a", Kind: KindActionRequest, Action: &ActionRequest{Name: "log_vitals"}},
		{ID: "b", Kind: KindActionResult, Result: &ActionResult{Name: "log_vitals", Success: true}},
		{ID: "c", Kind: KindWidget, Widget: &Widget{Type: "bp_chart"}},
	}

	for _, m := range msgs {
		if err := Dispatch(m, handlers); err != nil {
			t.Fatalf("Dispatch(%s): %v", m.Kind, err)
		}
	}

	if len(seen) != 4 {
		t.Fatalf("expected 4 dispatches, got %d", len(seen))
	}
}

func TestDispatch_UnknownKind(t *testing.T) {
	m := &Message{ID: "x", Kind: Kind("mystery")}
	if err := Dispatch(m, VariantHandlers{}); err == nil {
		t.Error("unknown kind should be an error")
	}
}

func TestDispatch_MissingPayload(t *testing.T) {
	m := &Message{ID: "x", Kind: KindWidget}
	if err := Dispatch(m, VariantHandlers{}); err == nil {
		t.Error("widget without payload should be an error")
	}
}

// =============================================================================
// SEARCH MODE TESTS
// =============================================================================

func TestSearchMode_IsDefault(t *testing.T) {
	if !SearchModeOff.IsDefault() {
		t.Error("SearchModeOff should be default")
	}
	if SearchModeWeb.IsDefault() || SearchModeHealthDB.IsDefault() {
		t.Error("non-off modes should not be default")
	}
}
