// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for vita.
//
// Configuration is TOML with sensible defaults, VITA_* environment
// variable overrides, and validation with clamping for numeric ranges.
//
// Configuration file location:
//   - ~/.vita/config.toml
//   - Built-in defaults when absent
package config
