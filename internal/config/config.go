// Package config loads trackindex configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete trackindex configuration.
type Config struct {
	// DataDir is where per-user store files live.
	DataDir string `yaml:"data_dir"`

	Logging LoggingConfig `yaml:"logging"`
	Sync    SyncConfig    `yaml:"sync"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`
	// FilePath is the log file path. Empty means stderr only.
	FilePath string `yaml:"file_path"`
	// MaxSizeMB is the maximum log size before rotation.
	MaxSizeMB int `yaml:"max_size_mb"`
	// MaxFiles is the number of rotated files to keep.
	MaxFiles int `yaml:"max_files"`
}

// SyncConfig configures reconciliation.
type SyncConfig struct {
	// ExtractConcurrency bounds parallel lyrics gateway calls.
	ExtractConcurrency int `yaml:"extract_concurrency"`
}

// SearchConfig configures the search engine.
type SearchConfig struct {
	// CacheSize is the number of recent query results kept in memory.
	CacheSize int `yaml:"cache_size"`
}

// WatchConfig configures the library directory watcher.
type WatchConfig struct {
	// Debounce is how long to coalesce file events before signaling.
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DataDir: defaultDataDir(),
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Sync:   SyncConfig{ExtractConcurrency: 4},
		Search: SearchConfig{CacheSize: 128},
		Watch:  WatchConfig{Debounce: 2 * time.Second},
	}
}

// defaultDataDir resolves the app's private documents area, falling back to
// the temp directory when no home is available.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".trackindex")
	}
	return filepath.Join(home, ".trackindex")
}

// Load reads configuration from path, merging over defaults and applying
// environment overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides applies TRACKINDEX_* environment variables, which take
// priority over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRACKINDEX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TRACKINDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRACKINDEX_EXTRACT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sync.ExtractConcurrency = n
		}
	}
	if v := os.Getenv("TRACKINDEX_SEARCH_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Search.CacheSize = n
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Sync.ExtractConcurrency < 1 {
		return fmt.Errorf("sync.extract_concurrency must be at least 1, got %d", c.Sync.ExtractConcurrency)
	}
	if c.Search.CacheSize < 1 {
		return fmt.Errorf("search.cache_size must be at least 1, got %d", c.Search.CacheSize)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}
