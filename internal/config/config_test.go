// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for vita.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vitakit/vita-chat/internal/logging"
)

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultModel != "pulse-1" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	if !cfg.StreamingEnabled || !cfg.AutoTitleEnabled {
		t.Errorf("boolean defaults = streaming %v auto-title %v", cfg.StreamingEnabled, cfg.AutoTitleEnabled)
	}
	if cfg.Services.AIServiceURL != "http://127.0.0.1:8765" {
		t.Errorf("AIServiceURL = %q", cfg.Services.AIServiceURL)
	}
	if cfg.Services.MemoryServiceURL != "http://127.0.0.1:8766" {
		t.Errorf("MemoryServiceURL = %q", cfg.Services.MemoryServiceURL)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.DefaultModel != "pulse-1" {
		t.Errorf("DefaultModel = %q, want default", cfg.DefaultModel)
	}
}

func TestLoadFromPath_PartialFileKeepsBooleanDefaults(t *testing.T) {
	// A file that omits the booleans must not zero them out.
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_model = "pulse-1-mini"
temperature = 0.3

[services]
user_id = "user-7"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.DefaultModel != "pulse-1-mini" || cfg.Temperature != 0.3 {
		t.Errorf("file values not applied: %q / %v", cfg.DefaultModel, cfg.Temperature)
	}
	if !cfg.StreamingEnabled || !cfg.AutoTitleEnabled {
		t.Error("omitted booleans lost their defaults")
	}
	if cfg.Services.UserID != "user-7" {
		t.Errorf("UserID = %q", cfg.Services.UserID)
	}
	if cfg.Services.AIServiceURL != "http://127.0.0.1:8765" {
		t.Errorf("omitted service URL lost its default: %q", cfg.Services.AIServiceURL)
	}
}

func TestLoadFromPath_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_model = [broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected decode error for malformed file")
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("VITA_DEFAULT_MODEL", "pulse-vision")
	t.Setenv("VITA_TEMPERATURE", "1.2")
	t.Setenv("VITA_STREAMING", "false")
	t.Setenv("VITA_AI_URL", "http://10.0.0.5:9000")
	t.Setenv("VITA_USER_ID", "env-user")
	t.Setenv("VITA_DATA_DIR", "/tmp/vita-data")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}

	if cfg.DefaultModel != "pulse-vision" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.Temperature != 1.2 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	if cfg.StreamingEnabled {
		t.Error("VITA_STREAMING=false not applied")
	}
	if cfg.Services.AIServiceURL != "http://10.0.0.5:9000" {
		t.Errorf("AIServiceURL = %q", cfg.Services.AIServiceURL)
	}
	if cfg.Services.UserID != "env-user" {
		t.Errorf("UserID = %q", cfg.Services.UserID)
	}
	if cfg.Storage.DataDir != "/tmp/vita-data" {
		t.Errorf("DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestApplyEnvOverrides_IgnoresUnparseable(t *testing.T) {
	t.Setenv("VITA_TEMPERATURE", "hot")
	t.Setenv("VITA_STREAMING", "sometimes")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Temperature != 0.7 || !cfg.StreamingEnabled {
		t.Errorf("unparseable overrides applied: %v / %v", cfg.Temperature, cfg.StreamingEnabled)
	}
}

// =============================================================================
// CLAMPING AND VALIDATION
// =============================================================================

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"below range", -0.5, 0},
		{"above range", 3.1, 2},
		{"in range", 0.9, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Temperature = tt.in
			cfg.Clamp()
			if cfg.Temperature != tt.want {
				t.Errorf("Temperature = %v, want %v", cfg.Temperature, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"empty model", func(c *Config) { c.DefaultModel = "  " }, "default_model"},
		{"bad ai url", func(c *Config) { c.Services.AIServiceURL = "not a url" }, "services.ai_service_url"},
		{"ftp scheme", func(c *Config) { c.Services.MemoryServiceURL = "ftp://host" }, "services.memory_service_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.wantErr {
				t.Errorf("Validate() = %v, want field %q", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// SAVE / RELOAD
// =============================================================================

func TestSaveAndReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "pulse-1-mini"
	cfg.Temperature = 0.4
	cfg.StreamingEnabled = false
	cfg.Services.UserID = "round-trip"

	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %o, want 600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if loaded.DefaultModel != cfg.DefaultModel ||
		loaded.Temperature != cfg.Temperature ||
		loaded.StreamingEnabled != cfg.StreamingEnabled ||
		loaded.Services.UserID != cfg.Services.UserID {
		t.Errorf("reloaded config differs: %+v", loaded)
	}
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := SaveToPath(Default(), path); err != nil {
		t.Fatal(err)
	}

	var (
		mu     sync.Mutex
		loaded *Config
	)
	w, err := NewWatcher(path, logging.Discard(), func(c *Config) {
		mu.Lock()
		loaded = c
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	changed := Default()
	changed.DefaultModel = "pulse-1-mini"
	if err := SaveToPath(changed, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		got := loaded
		mu.Unlock()
		if got != nil {
			if got.DefaultModel != "pulse-1-mini" {
				t.Errorf("reloaded DefaultModel = %q", got.DefaultModel)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("watcher never delivered a reload")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWatcher_InvalidFileKeepsRunning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := SaveToPath(Default(), path); err != nil {
		t.Fatal(err)
	}

	var (
		mu    sync.Mutex
		calls int
	)
	w, err := NewWatcher(path, logging.Discard(), func(*Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatal(err)
	}

	// Broken file: reload is skipped, callback not invoked.
	if err := os.WriteFile(path, []byte("default_model = [broken"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(600 * time.Millisecond)
	mu.Lock()
	afterBroken := calls
	mu.Unlock()
	if afterBroken != 0 {
		t.Errorf("callback ran %d times for an invalid file", afterBroken)
	}

	// A valid write afterwards still gets through.
	if err := SaveToPath(Default(), path); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		got := calls
		mu.Unlock()
		if got > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not recover after invalid file")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
