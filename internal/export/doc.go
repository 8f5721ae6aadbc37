// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export provides chat session export functionality for vita.
// Supports exporting sessions to Markdown, JSON, and YAML with metadata.
package export
