// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for vita.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vitakit/vita-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete vita configuration.
type Config struct {
	// General settings
	Version      string  `toml:"version"`
	DefaultModel string  `toml:"default_model"`
	Temperature  float64 `toml:"temperature"`
	SystemPrompt string  `toml:"system_prompt"`

	// StreamingEnabled selects the streaming endpoint for capable models.
	StreamingEnabled bool `toml:"streaming_enabled"`

	// AutoTitleEnabled derives session titles from the first user message.
	AutoTitleEnabled bool `toml:"auto_title_enabled"`

	// Services configuration
	Services ServicesConfig `toml:"services"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`
}

// ServicesConfig contains the remote collaborator endpoints.
type ServicesConfig struct {
	// AIServiceURL is the answer service base URL
	AIServiceURL string `toml:"ai_service_url"`
	// MemoryServiceURL is the memory service base URL
	MemoryServiceURL string `toml:"memory_service_url"`
	// UserID scopes remote session listing and memory retrieval
	UserID string `toml:"user_id"`
}

// StorageConfig contains local persistence configuration.
type StorageConfig struct {
	// DataDir is the directory for the snapshot database
	// Default: ~/.vita
	DataDir string `toml:"data_dir"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:          "1.0.0",
		DefaultModel:     "pulse-1",
		Temperature:      0.7,
		SystemPrompt:     "",
		StreamingEnabled: true,
		AutoTitleEnabled: true,

		Services: ServicesConfig{
			AIServiceURL:     "http://127.0.0.1:8765",
			MemoryServiceURL: "http://127.0.0.1:8766",
			UserID:           "",
		},

		Storage: StorageConfig{
			DataDir: "", // resolved by DataDir()
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the vita configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".vita"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// DataDir resolves the storage directory, falling back to the config
// directory when unset.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	return ConfigDir()
}

// DatabasePath returns the snapshot database path.
func (c *Config) DatabasePath() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vita.db"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to
// defaults when the file does not exist. Environment overrides are
// applied last, then the result is validated and clamped.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path. A missing
// file is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		// Decoding over the defaults keeps boolean defaults intact for
		// fields the file omits.
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.Clamp()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies VITA_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("VITA_DEFAULT_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("VITA_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = f
		}
	}
	if v := os.Getenv("VITA_SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}
	if v := os.Getenv("VITA_STREAMING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.StreamingEnabled = b
		}
	}
	if v := os.Getenv("VITA_AUTO_TITLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoTitleEnabled = b
		}
	}
	if v := os.Getenv("VITA_AI_URL"); v != "" {
		c.Services.AIServiceURL = v
	}
	if v := os.Getenv("VITA_MEMORY_URL"); v != "" {
		c.Services.MemoryServiceURL = v
	}
	if v := os.Getenv("VITA_USER_ID"); v != "" {
		c.Services.UserID = v
	}
	if v := os.Getenv("VITA_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Clamp forces numeric settings into their valid ranges instead of
// erroring; out-of-range values come from hand-edited files.
func (c *Config) Clamp() {
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.Temperature > 2 {
		c.Temperature = 2
	}
}

// Validate checks the configuration for errors that cannot be clamped
// away.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DefaultModel) == "" {
		return ValidationError{Field: "default_model", Message: "must not be empty"}
	}
	if err := validateURL("services.ai_service_url", c.Services.AIServiceURL); err != nil {
		return err
	}
	if err := validateURL("services.memory_service_url", c.Services.MemoryServiceURL); err != nil {
		return err
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)}
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a TOML file. The write is
// atomic so a crash mid-save never leaves a truncated config behind.
// SECURITY: config files are 0600 (owner read/write only).
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# vita configuration file")
	fmt.Fprintln(&buf, "# Generated by vita - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
