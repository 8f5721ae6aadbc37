// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitakit/vita-chat/internal/ai"
	"github.com/vitakit/vita-chat/internal/config"
	"github.com/vitakit/vita-chat/internal/engine"
	"github.com/vitakit/vita-chat/internal/logging"
	"github.com/vitakit/vita-chat/internal/memory"
	"github.com/vitakit/vita-chat/internal/session"
	"github.com/vitakit/vita-chat/internal/storage"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	flagVerbose    bool
	flagConfigPath string
	flagModel      string
)

var rootCmd = &cobra.Command{
	Use:   "vita",
	Short: "Chat with your health assistant from the terminal",
	Long: `vita is the command line front end for the Vita health assistant.

It keeps your chat sessions on this device, talks to the local answer
and memory services, and streams responses as they are generated.

Quick start:
  vita chat                      # Interactive chat
  vita sessions list             # List stored sessions
  vita sessions search "sleep"   # Find sessions by content
  vita sessions export <id>      # Export a session to Markdown`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare "vita" starts the chat REPL.
		return chatCmd.RunE(cmd, args)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to config file (default ~/.vita/config.toml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App bundles the wired-up collaborators behind every command.
type App struct {
	Config   *config.Config
	Log      *logging.Logger
	Snapshot *storage.SnapshotStore
	Store    *session.Store
	Memory   *memory.Client
	AI       *ai.Client
	Engine   *engine.Engine
}

// newApp loads configuration, opens local storage, restores the session
// collection, and wires the engine. The remote directory reconcile is
// best-effort and does not block startup on service failures.
func newApp() (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logging.Default()
	log.SetVerbose(flagVerbose)

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	snapshot, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}

	aiCfg := ai.DefaultConfig()
	aiCfg.BaseURL = cfg.Services.AIServiceURL
	aiCfg.DefaultModel = cfg.DefaultModel
	aiClient := ai.NewClientWithConfig(aiCfg)

	memCfg := memory.DefaultConfig()
	memCfg.BaseURL = cfg.Services.MemoryServiceURL
	memClient := memory.NewClientWithConfig(memCfg)

	store := session.NewStore(session.Options{
		AutoTitle: cfg.AutoTitleEnabled,
		Saver:     snapshot,
		Remote:    memClient,
		Log:       log,
	})

	sessions, err := snapshot.LoadSessions()
	if err != nil {
		store.Close()
		snapshot.Close()
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	activeID, err := snapshot.ActiveID()
	if err != nil {
		log.Warnf("read active session pointer: %v", err)
	}
	store.Restore(sessions, activeID)
	if store.Len() == 0 {
		store.NewSession("")
	}

	// Remote listing informs flag reconciliation only; local state wins.
	if cfg.Services.UserID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if remote, err := memClient.List(ctx, cfg.Services.UserID); err != nil {
			log.Debugf("remote session list unavailable: %v", err)
		} else {
			store.Reconcile(remote)
		}
	}

	model := resolveModel(cfg, snapshot)

	eng := engine.New(engine.Options{
		Client:       aiClient,
		Store:        store,
		Log:          log,
		Model:        model,
		Temperature:  cfg.Temperature,
		SystemPrompt: cfg.SystemPrompt,
		UserID:       cfg.Services.UserID,
		Streaming:    cfg.StreamingEnabled,
	})

	return &App{
		Config:   cfg,
		Log:      log,
		Snapshot: snapshot,
		Store:    store,
		Memory:   memClient,
		AI:       aiClient,
		Engine:   eng,
	}, nil
}

func loadConfig() (*config.Config, error) {
	if flagConfigPath != "" {
		return config.LoadFromPath(flagConfigPath)
	}
	return config.Load()
}

// configFilePath returns the config file this run reads from.
func configFilePath() (string, error) {
	if flagConfigPath != "" {
		return flagConfigPath, nil
	}
	return config.ConfigPath()
}

// resolveModel picks the model for this run: flag, then the stored
// selection, then the configured default.
func resolveModel(cfg *config.Config, snapshot *storage.SnapshotStore) string {
	if flagModel != "" {
		return flagModel
	}
	if stored, err := snapshot.SelectedModel(); err == nil && stored != "" {
		return stored
	}
	return cfg.DefaultModel
}

// Close drains pending session saves, then releases local storage. The
// store must finish writing before the database closes underneath it.
func (a *App) Close() {
	a.Store.Close()
	if err := a.Snapshot.Close(); err != nil {
		a.Log.Warnf("close storage: %v", err)
	}
}

// findSession resolves a session by full id, unique id prefix, or exact
// title (case-insensitive).
func findSession(store *session.Store, key string) (*session.Session, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("empty session id")
	}

	var matches []*session.Session
	for _, sess := range store.Sessions() {
		if sess.ID == key {
			return sess, nil
		}
		if strings.HasPrefix(sess.ID, key) || strings.EqualFold(sess.Title, key) {
			matches = append(matches, sess)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no session matches %q", key)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q is ambiguous (%d matches); use a longer id prefix", key, len(matches))
	}
}
