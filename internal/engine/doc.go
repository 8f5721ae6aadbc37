// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine drives streaming answer requests against the session
// store.
//
// At most one request is in flight per Engine; Send rejects while a
// request is pending. Every request is issued under a fresh generation
// number, and every continuation (chunk arrival, completion, failure)
// re-checks its generation against the current one before touching any
// state. Stop and a subsequent Send both bump the generation, so late
// chunks from a cancelled stream are silently dropped instead of
// corrupting the next response.
package engine
