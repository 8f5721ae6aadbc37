// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory talks to the remote memory service's session directory.
//
// Everything here is best-effort: callers log and swallow failures, and
// the client rate-limits itself so background reconciliation cannot
// hammer the service. The local session store is always the source of
// truth; the directory only fills in sessions the local store has never
// seen.
package memory
