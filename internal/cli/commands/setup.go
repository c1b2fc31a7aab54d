package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/ezql/internal/cli/config"
	"github.com/leapstack-labs/ezql/internal/cli/output"
	"github.com/leapstack-labs/ezql/internal/engine"
	"github.com/leapstack-labs/ezql/internal/state"
	"github.com/spf13/cobra"
)

// errNoStore is returned by commands that need the lineage store when none
// is configured.
var errNoStore = errors.New("no store configured: set store.path or pass --store")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Store    *state.SQLiteStore // nil unless store.path is set
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine, store and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := engine.New(cfg.EngineConfig(logger))
	if err != nil {
		return nil, nil, err
	}

	var store *state.SQLiteStore
	if cfg.Store.Path != "" {
		store, err = openStore(cfg.Store.Path, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	cleanup := func() {
		if store != nil {
			_ = store.Close()
		}
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Store:    store,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.OutputMode()),
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine
// or store.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.OutputMode()),
	}
}

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func openStore(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	// Ensure store directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	return store, nil
}

