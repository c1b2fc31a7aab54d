// Package config loads the ezql CLI configuration from defaults, a YAML
// file, EZQL_ environment variables and command-line flags.
package config

// FilterConfig selects the procedures and tables kept in results.
type FilterConfig struct {
	// Mode is "" (no table filter), "simple" or "rec".
	Mode string `koanf:"mode"`
	// Tables are schema.name pairs.
	Tables     []string `koanf:"tables"`
	Procedures []string `koanf:"procedures"`
}

// StoreConfig holds configuration for the lineage store.
type StoreConfig struct {
	// Path is the SQLite file runs are saved to. Empty disables the store.
	Path string `koanf:"path"`
}

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port          int    `koanf:"port"`
	Watch         bool   `koanf:"watch"`
	SessionSecret string `koanf:"session_secret"`
}

// Config holds all CLI configuration options.
type Config struct {
	DefaultSchema          string       `koanf:"default_schema"`
	Delimiter              string       `koanf:"delimiter"`
	Mode                   string       `koanf:"mode"`
	Workers                int          `koanf:"workers"`
	KeepSingleTableUpdates bool         `koanf:"keep_single_table_updates"`
	OutputFormat           string       `koanf:"output"`
	Verbose                bool         `koanf:"verbose"`
	LogLevel               string       `koanf:"log_level"`
	Filter                 FilterConfig `koanf:"filter"`
	Store                  StoreConfig  `koanf:"store"`
	UI                     UIConfig     `koanf:"ui"`
}

// Default configuration values
const (
	DefaultDelimiter = ";;"
	DefaultMode      = "procedure"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel  = "info"
	DefaultUIPort    = 8765
)

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Delimiter:    DefaultDelimiter,
		Mode:         DefaultMode,
		OutputFormat: DefaultOutput,
		LogLevel:     DefaultLogLevel,
		UI: UIConfig{
			Port:  DefaultUIPort,
			Watch: true,
		},
	}
}
