// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ai provides the HTTP client for the Vita answer service.
//
// The service exposes a single-shot query endpoint and an NDJSON
// streaming endpoint. The client is thread-safe for concurrent use and
// honors context cancellation on every call; a cancelled stream returns
// context.Canceled from AskStream without synthesizing an error chunk.
//
// Errors are classified into a small taxonomy (ClientError) so callers
// can distinguish "service not running" from "model not found" from
// malformed responses without string matching.
package ai
