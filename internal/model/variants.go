// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages.
package model

import "fmt"

// =============================================================================
// MESSAGE VARIANTS
// =============================================================================

// Kind is the tagged variant of a message. Plain conversation messages
// are KindChat; the other kinds carry a typed payload on the Message.
type Kind string

const (
	// KindChat is a plain conversational message (Content only).
	KindChat Kind = "chat"

	// KindActionRequest asks the host application to perform an action,
	// such as logging a vitals reading. Payload: Message.Action.
	KindActionRequest Kind = "action_request"

	// KindActionResult reports the outcome of a previously requested
	// action. Payload: Message.Result.
	KindActionResult Kind = "action_result"

	// KindWidget embeds a structured card (chart, reading summary) in the
	// transcript. Payload: Message.Widget.
	KindWidget Kind = "widget"
)

// Valid reports whether k is a known message kind.
func (k Kind) Valid() bool {
	switch k {
	case KindChat, KindActionRequest, KindActionResult, KindWidget:
		return true
	}
	return false
}

// ActionRequest asks the host to perform a named action.
type ActionRequest struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

func (a *ActionRequest) clone() *ActionRequest {
	if a == nil {
		return nil
	}
	clone := &ActionRequest{Name: a.Name}
	if a.Args != nil {
		clone.Args = make(map[string]string, len(a.Args))
		for k, v := range a.Args {
			clone.Args[k] = v
		}
	}
	return clone
}

// ActionResult reports the outcome of an action request.
type ActionResult struct {
	Name    string `json:"name"`
	Output  string `json:"output,omitempty"`
	Success bool   `json:"success"`
}

func (r *ActionResult) clone() *ActionResult {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Widget embeds a structured display card in the transcript.
type Widget struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data,omitempty"`
}

func (w *Widget) clone() *Widget {
	if w == nil {
		return nil
	}
	clone := &Widget{Type: w.Type}
	if w.Data != nil {
		clone.Data = make(map[string]string, len(w.Data))
		for k, v := range w.Data {
			clone.Data[k] = v
		}
	}
	return clone
}

// =============================================================================
// EXHAUSTIVE DISPATCH
// =============================================================================

// VariantHandlers holds one handler per message kind. Dispatch calls the
// handler matching the message's kind, so renderers cannot silently skip
// a variant.
type VariantHandlers struct {
	Chat          func(m *Message)
	ActionRequest func(m *Message, a *ActionRequest)
	ActionResult  func(m *Message, r *ActionResult)
	Widget        func(m *Message, w *Widget)
}

// Dispatch routes a message to the handler for its kind. An unknown kind
// or a variant missing its payload is an error, never a silent no-op.
func Dispatch(m *Message, h VariantHandlers) error {
	switch m.Kind {
	case KindChat:
		if h.Chat != nil {
			h.Chat(m)
		}
		return nil
	case KindActionRequest:
		if m.Action == nil {
			return fmt.Errorf("message %s: action_request without payload", m.ID)
		}
		if h.ActionRequest != nil {
			h.ActionRequest(m, m.Action)
		}
		return nil
	case KindActionResult:
		if m.Result == nil {
			return fmt.Errorf("message %s: action_result without payload", m.ID)
		}
		if h.ActionResult != nil {
			h.ActionResult(m, m.Result)
		}
		return nil
	case KindWidget:
		if m.Widget == nil {
			return fmt.Errorf("message %s: widget without payload", m.ID)
		}
		if h.Widget != nil {
			h.Widget(m, m.Widget)
		}
		return nil
	default:
		return fmt.Errorf("message %s: unknown kind %q", m.ID, m.Kind)
	}
}
