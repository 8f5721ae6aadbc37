// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the vita command line interface: the
// interactive chat REPL and the session management subcommands.
package cli
