// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable local snapshot of chat state.
//
// Sessions, their messages, the active session pointer, and the
// selected model are kept in a single SQLite database. The session
// store calls SaveSession fire-and-forget after every mutation; on
// startup LoadSessions rebuilds the in-memory collection.
//
// The schema is versioned through the metadata table. Migrations are
// additive only: new columns get defaults so databases written by older
// builds keep loading.
package storage
