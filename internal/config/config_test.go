package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"UI.QueueCapacity", cfg.UI.QueueCapacity, 50},
		{"UI.BatchSize", cfg.UI.BatchSize, 10},
		{"UI.BatchYieldInterval", cfg.UI.BatchYieldInterval, 100 * time.Millisecond},
		{"UI.ScrollDebounceWindow", cfg.UI.ScrollDebounceWindow, 50 * time.Millisecond},
		{"UI.ClearDelay", cfg.UI.ClearDelay, 3 * time.Second},
		{"UI.DedupTTL", cfg.UI.DedupTTL, 10 * time.Second},
		{"UI.MaxNotices", cfg.UI.MaxNotices, 50},
		{"Logging.Level", cfg.Logging.Level, "info"},
		{"Logging.MaxSizeMB", cfg.Logging.MaxSizeMB, 10},
		{"Feed.MainAgent", cfg.Feed.MainAgent, "Ari"},
		{"Feed.Workers", cfg.Feed.Workers, "Worker_*"},
		{"Metrics.Enabled", cfg.Metrics.Enabled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestSetDefaultsAndLoad(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UI.BatchYieldInterval != 100*time.Millisecond {
		t.Errorf("UI.BatchYieldInterval = %v, want 100ms", cfg.UI.BatchYieldInterval)
	}
	if cfg.Feed.Speed != 1 {
		t.Errorf("Feed.Speed = %v, want 1", cfg.Feed.Speed)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `ui:
  queue_capacity: 20
  batch_size: 5
  scroll_debounce_window: 80ms
  dedup_ttl: 0s
logging:
  level: debug
feed:
  hidden: ["Tool*"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UI.QueueCapacity != 20 || cfg.UI.BatchSize != 5 {
		t.Errorf("UI = %+v", cfg.UI)
	}
	if cfg.UI.ScrollDebounceWindow != 80*time.Millisecond {
		t.Errorf("UI.ScrollDebounceWindow = %v, want 80ms", cfg.UI.ScrollDebounceWindow)
	}
	if cfg.UI.DedupTTL != 0 {
		t.Errorf("UI.DedupTTL = %v, want 0", cfg.UI.DedupTTL)
	}
	if cfg.UI.ClearDelay != 3*time.Second {
		t.Errorf("UI.ClearDelay = %v, want default 3s", cfg.UI.ClearDelay)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Feed.Hidden) != 1 || cfg.Feed.Hidden[0] != "Tool*" {
		t.Errorf("Feed.Hidden = %v", cfg.Feed.Hidden)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	viper.Set("ui.batch_size", 0)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for invalid config")
	}
	if cfg := Get(); cfg.UI.BatchSize != 10 {
		t.Errorf("Get() fallback BatchSize = %d, want default 10", cfg.UI.BatchSize)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		if got := ConfigDir(); got != "/tmp/xdg/ari" {
			t.Errorf("ConfigDir() = %q, want /tmp/xdg/ari", got)
		}
		if got := ConfigFile(); got != "/tmp/xdg/ari/config.yaml" {
			t.Errorf("ConfigFile() = %q", got)
		}
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		if got, want := ConfigDir(), filepath.Join(home, ".config", "ari"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestLoggingConfig_SessionDir(t *testing.T) {
	c := LoggingConfig{Dir: "/var/log/ari"}
	if got := c.SessionDir("abc"); got != "/var/log/ari/abc" {
		t.Errorf("SessionDir() = %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	c.Dir = ""
	if got := c.SessionDir("abc"); got != "/tmp/xdg/ari/sessions/abc" {
		t.Errorf("SessionDir() default = %q", got)
	}
}
