package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Ari configuration
type Config struct {
	UI      UIConfig      `mapstructure:"ui" yaml:"ui"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Feed    FeedConfig    `mapstructure:"feed" yaml:"feed"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// UIConfig controls the update pipeline and widget timing
type UIConfig struct {
	// QueueCapacity bounds the router queue (default: 50)
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	// BatchSize is the maximum number of messages dispatched per loop cycle (default: 10)
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
	// BatchYieldInterval bounds how long one cycle may dispatch before yielding (default: 100ms, 0 = no time bound)
	BatchYieldInterval time.Duration `mapstructure:"batch_yield_interval" yaml:"batch_yield_interval"`
	// ScrollDebounceWindow is the quiet period before auto-scroll runs (default: 50ms)
	ScrollDebounceWindow time.Duration `mapstructure:"scroll_debounce_window" yaml:"scroll_debounce_window"`
	// ClearDelay is how long a finished agent's thinking stays visible (default: 3s)
	ClearDelay time.Duration `mapstructure:"clear_delay" yaml:"clear_delay"`
	// DedupTTL is how long a notice suppresses identical notices (default: 10s, 0 = for the whole session)
	DedupTTL time.Duration `mapstructure:"dedup_ttl" yaml:"dedup_ttl"`
	// MaxNotices bounds the notice panel (default: 50)
	MaxNotices int `mapstructure:"max_notices" yaml:"max_notices"`
	// ChatHistory bounds the chat transcript (default: 500)
	ChatHistory int `mapstructure:"chat_history" yaml:"chat_history"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether session logs are written (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where per-session log directories are created (default: <config dir>/sessions)
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// FeedConfig controls how agent messages are classified
type FeedConfig struct {
	// MainAgent is the glob matching the main agent's name (default: "Ari")
	MainAgent string `mapstructure:"main_agent" yaml:"main_agent"`
	// Planner is the glob matching the planning agent (default: "Planning")
	Planner string `mapstructure:"planner" yaml:"planner"`
	// Workers is the glob matching worker agents; the task number follows the last '-' (default: "Worker_*")
	Workers string `mapstructure:"workers" yaml:"workers"`
	// Hidden lists globs of senders kept out of the chat panel
	Hidden []string `mapstructure:"hidden" yaml:"hidden"`
	// Speed scales replay delays; 2 plays twice as fast, 0 plays without delays (default: 1)
	Speed float64 `mapstructure:"speed" yaml:"speed"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Enabled serves /metrics while the dashboard runs (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Addr is the listen address (default: "127.0.0.1:9090")
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// SessionsDir returns the directory holding every session's log directory.
func (c *LoggingConfig) SessionsDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(ConfigDir(), "sessions")
}

// SessionDir returns the log directory for a session.
func (c *LoggingConfig) SessionDir(sessionID string) string {
	return filepath.Join(c.SessionsDir(), sessionID)
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		UI: UIConfig{
			QueueCapacity:        50,
			BatchSize:            10,
			BatchYieldInterval:   100 * time.Millisecond,
			ScrollDebounceWindow: 50 * time.Millisecond,
			ClearDelay:           3 * time.Second,
			DedupTTL:             10 * time.Second,
			MaxNotices:           50,
			ChatHistory:          500,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Feed: FeedConfig{
			MainAgent: "Ari",
			Planner:   "Planning",
			Workers:   "Worker_*",
			Hidden:    []string{},
			Speed:     1,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9090",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// UI defaults
	viper.SetDefault("ui.queue_capacity", defaults.UI.QueueCapacity)
	viper.SetDefault("ui.batch_size", defaults.UI.BatchSize)
	viper.SetDefault("ui.batch_yield_interval", defaults.UI.BatchYieldInterval)
	viper.SetDefault("ui.scroll_debounce_window", defaults.UI.ScrollDebounceWindow)
	viper.SetDefault("ui.clear_delay", defaults.UI.ClearDelay)
	viper.SetDefault("ui.dedup_ttl", defaults.UI.DedupTTL)
	viper.SetDefault("ui.max_notices", defaults.UI.MaxNotices)
	viper.SetDefault("ui.chat_history", defaults.UI.ChatHistory)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Feed defaults
	viper.SetDefault("feed.main_agent", defaults.Feed.MainAgent)
	viper.SetDefault("feed.planner", defaults.Feed.Planner)
	viper.SetDefault("feed.workers", defaults.Feed.Workers)
	viper.SetDefault("feed.hidden", defaults.Feed.Hidden)
	viper.SetDefault("feed.speed", defaults.Feed.Speed)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ari")
	}
	// Fall back to ~/.config/ari
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ari"
	}
	return filepath.Join(home, ".config", "ari")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
