// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state: the ordered collection of
// session records, the single active-session pointer, and the live
// message view that mirrors the active session's snapshot.
//
// The core consistency rule is flush-then-load: switching sessions first
// writes the outgoing session's live view back into its record, then
// loads the incoming session's stored snapshot into the view. Every view
// mutation re-derives the owning record's message count and preview in
// the same step, so the mirror is never stale.
//
// The Store is an explicit, constructor-injected state container; there
// is no package-level singleton, so tests create isolated instances.
package session
