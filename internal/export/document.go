// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"github.com/vitakit/vita-chat/internal/model"
	"github.com/vitakit/vita-chat/internal/session"
)

// =============================================================================
// EXPORT DOCUMENT
// =============================================================================

// Document is the structured form shared by the JSON and YAML exporters.
// It is a faithful snapshot of the stored session, independent of display
// options.
type Document struct {
	ID         string    `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
	Pinned     bool      `json:"pinned,omitempty" yaml:"pinned,omitempty"`
	Archived   bool      `json:"archived,omitempty" yaml:"archived,omitempty"`
	ExportedAt time.Time `json:"exported_at" yaml:"exported_at"`
	Generator  string    `json:"generator" yaml:"generator"`

	Messages []DocumentMessage `json:"messages" yaml:"messages"`
}

// DocumentMessage is one transcript entry in a Document.
type DocumentMessage struct {
	ID         string    `json:"id" yaml:"id"`
	Role       string    `json:"role" yaml:"role"`
	Kind       string    `json:"kind" yaml:"kind"`
	Content    string    `json:"content" yaml:"content"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	IsError    bool      `json:"is_error,omitempty" yaml:"is_error,omitempty"`
	SearchMode string    `json:"search_mode,omitempty" yaml:"search_mode,omitempty"`
	Image      string    `json:"image,omitempty" yaml:"image,omitempty"`

	Sources  []model.Citation     `json:"sources,omitempty" yaml:"sources,omitempty"`
	Metadata *model.Metadata      `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Action   *model.ActionRequest `json:"action,omitempty" yaml:"action,omitempty"`
	Result   *model.ActionResult  `json:"result,omitempty" yaml:"result,omitempty"`
	Widget   *model.Widget        `json:"widget,omitempty" yaml:"widget,omitempty"`
}

// NewDocument builds a Document from a session snapshot.
func NewDocument(sess *session.Session) *Document {
	doc := &Document{
		ID:         sess.ID,
		Title:      sess.Title,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
		Pinned:     sess.IsPinned,
		Archived:   sess.IsArchived,
		ExportedAt: time.Now(),
		Generator:  "vita",
		Messages:   make([]DocumentMessage, 0, len(sess.Messages)),
	}

	for _, msg := range sess.Messages {
		doc.Messages = append(doc.Messages, DocumentMessage{
			ID:         msg.ID,
			Role:       msg.Role.String(),
			Kind:       string(msg.Kind),
			Content:    msg.DisplayContent(),
			Timestamp:  msg.Timestamp,
			IsError:    msg.IsError,
			SearchMode: string(msg.SearchMode),
			Image:      msg.Image,
			Sources:    msg.Sources,
			Metadata:   msg.Metadata,
			Action:     msg.Action,
			Result:     msg.Result,
			Widget:     msg.Widget,
		})
	}
	return doc
}
