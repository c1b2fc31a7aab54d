package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/ezql/internal/cli/output"
	"github.com/leapstack-labs/ezql/internal/engine"
	"github.com/leapstack-labs/ezql/internal/filter"
	"github.com/leapstack-labs/ezql/pkg/lineage"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch lineage.Mode(c.Mode) {
	case lineage.ModeProcedure, lineage.ModeDDL:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", lineage.ModeProcedure, lineage.ModeDDL, c.Mode)
	}

	if c.Delimiter == "" {
		return errors.New("delimiter must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}

	if _, err := c.FilterOptions(); err != nil {
		return err
	}

	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port must be between 0 and 65535, got %d", c.UI.Port)
	}
	return nil
}

// FilterOptions converts the filter section into filter options.
func (c *Config) FilterOptions() (filter.Options, error) {
	mode := filter.Mode(c.Filter.Mode)
	switch mode {
	case filter.ModeNone:
		if len(c.Filter.Tables) > 0 {
			return filter.Options{}, errors.New("filter.tables needs filter.mode set to simple or rec")
		}
	case filter.ModeSimple, filter.ModeRecursive:
		if len(c.Filter.Tables) == 0 {
			return filter.Options{}, fmt.Errorf("filter mode %q needs at least one table", mode)
		}
	default:
		return filter.Options{}, fmt.Errorf("filter.mode must be %q or %q, got %q", filter.ModeSimple, filter.ModeRecursive, c.Filter.Mode)
	}

	tables, err := filter.ParseTables(c.Filter.Tables)
	if err != nil {
		return filter.Options{}, err
	}
	return filter.Options{Mode: mode, Tables: tables, Procedures: c.Filter.Procedures}, nil
}

// OutputMode returns the configured output mode, auto when unset.
func (c *Config) OutputMode() output.Mode {
	mode, err := output.ParseMode(c.OutputFormat)
	if err != nil {
		return output.ModeAuto
	}
	return mode
}

// Level returns the log level: debug when verbose, else log_level.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}

// EngineConfig builds the engine configuration.
func (c *Config) EngineConfig(logger *slog.Logger) engine.Config {
	return engine.Config{
		DefaultSchema:          c.DefaultSchema,
		Delimiter:              c.Delimiter,
		Mode:                   lineage.Mode(c.Mode),
		Workers:                c.Workers,
		KeepSingleTableUpdates: c.KeepSingleTableUpdates,
		Logger:                 logger,
	}
}
