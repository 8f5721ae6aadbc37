// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages.
//
// A Message is the atomic unit of a conversation: a role, content,
// timestamp, streaming/error state, and optional structured payloads
// (citations, response metadata, action and widget variants). Streaming
// content is accumulated in a strings.Builder and merged into Content
// when the stream is finalized.
package model
