package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/ezql/internal/cli/output"
	"github.com/leapstack-labs/ezql/internal/filter"
	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ezql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("default-schema", "", "")
	flags.String("mode", "", "")
	flags.String("filter-mode", "", "")
	flags.StringSlice("tables", nil, "")
	flags.String("store", "", "")
	flags.Int("port", 0, "")
	flags.Bool("watch", true, "")
	flags.BoolP("verbose", "v", false, "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `default_schema: dwh
delimiter: "$$"
mode: ddl
workers: 4
keep_single_table_updates: true
filter:
  mode: rec
  tables: [dwh.fact, stg.orders]
  procedures: [load_fact]
store:
  path: runs.db
ui:
  port: 9000
  watch: false
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, "dwh", cfg.DefaultSchema)
	assert.Equal(t, "$$", cfg.Delimiter)
	assert.Equal(t, "ddl", cfg.Mode)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.KeepSingleTableUpdates)
	assert.Equal(t, FilterConfig{Mode: "rec", Tables: []string{"dwh.fact", "stg.orders"}, Procedures: []string{"load_fact"}}, cfg.Filter)
	assert.Equal(t, "runs.db", cfg.Store.Path)
	assert.Equal(t, 9000, cfg.UI.Port)
	assert.False(t, cfg.UI.Watch)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_Invalid(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "mode: stream\n")
	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Nil(t, GetCurrentConfig())
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, "default_schema: from_file\nmode: ddl\n")

	tests := []struct {
		name       string
		env        map[string]string
		setFlags   map[string]string
		wantSchema string
		wantMode   string
	}{
		{
			name:       "file only",
			wantSchema: "from_file",
			wantMode:   "ddl",
		},
		{
			name:       "env overrides file",
			env:        map[string]string{"EZQL_DEFAULT_SCHEMA": "from_env"},
			wantSchema: "from_env",
			wantMode:   "ddl",
		},
		{
			name:       "flag overrides env",
			env:        map[string]string{"EZQL_DEFAULT_SCHEMA": "from_env"},
			setFlags:   map[string]string{"default-schema": "from_flag", "mode": "procedure"},
			wantSchema: "from_flag",
			wantMode:   "procedure",
		},
		{
			name:       "unset flag keeps env",
			env:        map[string]string{"EZQL_DEFAULT_SCHEMA": "from_env"},
			wantSchema: "from_env",
			wantMode:   "ddl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			flags := testFlags()
			for name, v := range tt.setFlags {
				require.NoError(t, flags.Set(name, v))
			}

			cfg, err := LoadConfig(path, flags)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSchema, cfg.DefaultSchema)
			assert.Equal(t, tt.wantMode, cfg.Mode)
		})
	}
}

func TestLoadConfig_NestedKeys(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("EZQL_FILTER__MODE", "simple")
		t.Setenv("EZQL_FILTER__TABLES", "dwh.fact, stg.orders")
		t.Setenv("EZQL_UI__PORT", "9100")

		cfg, err := LoadConfig("", nil)
		require.NoError(t, err)
		assert.Equal(t, "simple", cfg.Filter.Mode)
		assert.Equal(t, []string{"dwh.fact", "stg.orders"}, cfg.Filter.Tables)
		assert.Equal(t, 9100, cfg.UI.Port)
	})

	t.Run("renamed flags", func(t *testing.T) {
		ResetConfig()
		flags := testFlags()
		require.NoError(t, flags.Set("filter-mode", "rec"))
		require.NoError(t, flags.Set("tables", "dwh.fact,dwh.dim"))
		require.NoError(t, flags.Set("store", "runs.db"))
		require.NoError(t, flags.Set("port", "9200"))
		require.NoError(t, flags.Set("watch", "false"))

		cfg, err := LoadConfig("", flags)
		require.NoError(t, err)
		assert.Equal(t, "rec", cfg.Filter.Mode)
		assert.Equal(t, []string{"dwh.fact", "dwh.dim"}, cfg.Filter.Tables)
		assert.Equal(t, "runs.db", cfg.Store.Path)
		assert.Equal(t, 9200, cfg.UI.Port)
		assert.False(t, cfg.UI.Watch)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad mode", func(c *Config) { c.Mode = "stream" }, "mode must be"},
		{"empty delimiter", func(c *Config) { c.Delimiter = "" }, "delimiter must not be empty"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers must not be negative"},
		{"bad filter mode", func(c *Config) { c.Filter = FilterConfig{Mode: "deep", Tables: []string{"a.b"}} }, "filter.mode must be"},
		{"filter mode without tables", func(c *Config) { c.Filter.Mode = "simple" }, "needs at least one table"},
		{"tables without filter mode", func(c *Config) { c.Filter.Tables = []string{"a.b"} }, "needs filter.mode"},
		{"table without schema", func(c *Config) { c.Filter = FilterConfig{Mode: "rec", Tables: []string{"fact"}} }, "expected schema.name"},
		{"table with two dots", func(c *Config) { c.Filter = FilterConfig{Mode: "rec", Tables: []string{"db.dwh.fact"}} }, "expected schema.name"},
		{"bad output", func(c *Config) { c.OutputFormat = "html" }, "invalid output mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log_level"},
		{"bad port", func(c *Config) { c.UI.Port = 70000 }, "ui.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := Default()
	cfg.Filter = FilterConfig{Mode: "simple", Tables: []string{"DWH.Fact"}, Procedures: []string{"load"}}
	cfg.Mode = "ddl"
	cfg.DefaultSchema = "etl"

	opts, err := cfg.FilterOptions()
	require.NoError(t, err)
	assert.Equal(t, filter.Options{
		Mode:       filter.ModeSimple,
		Tables:     []lineage.Table{{Schema: "dwh", Name: "fact"}},
		Procedures: []string{"load"},
	}, opts)

	eng := cfg.EngineConfig(nil)
	assert.Equal(t, lineage.ModeDDL, eng.Mode)
	assert.Equal(t, "etl", eng.DefaultSchema)
	assert.Equal(t, DefaultDelimiter, eng.Delimiter)

	assert.Equal(t, output.ModeAuto, cfg.OutputMode())
	cfg.OutputFormat = "json"
	assert.Equal(t, output.ModeJSON, cfg.OutputMode())

	assert.Equal(t, slog.LevelInfo, cfg.Level())
	cfg.LogLevel = "warn"
	assert.Equal(t, slog.LevelWarn, cfg.Level())
	cfg.Verbose = true
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}
