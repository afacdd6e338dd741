// Package config provides configuration types, defaults, and persistence for bucket.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/heywhy/bucket/internal/loader"
	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/internal/tracing"
)

// Storage driver names accepted by StorageConfig.Driver.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds all bucket configuration.
type Config struct {
	// Base is the directory or http(s) URL component sources are loaded from.
	Base      string             `mapstructure:"base"`
	Extension string             `mapstructure:"extension"`
	Filters   []loader.Filter    `mapstructure:"filters"`
	Cache     loader.CachePolicy `mapstructure:"cache"`
	Storage   StorageConfig      `mapstructure:"storage"`
	Log       LogConfig          `mapstructure:"log"`
	Tracing   tracing.Config     `mapstructure:"tracing"`
	Watch     WatchConfig        `mapstructure:"watch"`
}

// StorageConfig selects the backend of the persistent component cache.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "memory".
	Driver string `mapstructure:"driver"`
	// Path is the sqlite database file. Empty uses DefaultStoragePath.
	Path string `mapstructure:"path"`
}

// LogConfig holds debug logging configuration.
type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	Path  string `mapstructure:"path"`
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
}

// WatchConfig holds file watcher configuration for local bases.
type WatchConfig struct {
	// DebounceMs is the quiet period before a batch of changes is reported.
	DebounceMs int `mapstructure:"debounce_ms"`
}

// LoaderOptions returns the loader options carried by the config.
func (c Config) LoaderOptions() loader.Options {
	return loader.Options{
		Base:      c.Base,
		Extension: c.Extension,
		Filters:   c.Filters,
		Cache:     c.Cache,
	}
}

// StoragePath returns the configured sqlite path or the default one.
func (c Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return DefaultStoragePath()
}

// DefaultStoragePath returns ~/.config/bucket/bucket.db, or bucket.db in the
// working directory when the home dir is unavailable.
func DefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bucket.db"
	}
	return filepath.Join(home, ".config", "bucket", "bucket.db")
}

// DefaultLogPath returns the debug log location.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "debug.log"
	}
	return filepath.Join(home, ".config", "bucket", "debug.log")
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/bucket/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bucket", "traces", "traces.jsonl")
}

// Defaults returns the default configuration.
func Defaults() Config {
	opts := loader.DefaultOptions()
	traces := tracing.DefaultConfig()
	traces.FilePath = DefaultTracesFilePath()

	return Config{
		Base:      opts.Base,
		Extension: opts.Extension,
		Cache:     opts.Cache,
		Storage: StorageConfig{
			Driver: StorageSQLite,
		},
		Log: LogConfig{
			Level: "debug",
		},
		Tracing: traces,
		Watch: WatchConfig{
			DebounceMs: 250,
		},
	}
}

// Validate checks the whole configuration, section by section.
func Validate(cfg Config) error {
	if err := ValidateLoader(cfg.LoaderOptions()); err != nil {
		return err
	}
	if err := ValidateStorage(cfg.Storage); err != nil {
		return err
	}
	if err := ValidateLog(cfg.Log); err != nil {
		return err
	}
	if cfg.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", cfg.Watch.DebounceMs)
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateLoader checks filters and the cache expiry.
func ValidateLoader(opts loader.Options) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	return nil
}

// ValidateStorage checks the storage section.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateStorage(storage StorageConfig) error {
	switch storage.Driver {
	case "", StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StorageSQLite, StorageMemory, storage.Driver)
	}
	return nil
}

// ValidateLog checks the log level name.
func ValidateLog(cfg LogConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", cfg.Level)
	}
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(cfg tracing.Config) error {
	if cfg.SampleRate < 0.0 || cfg.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", cfg.SampleRate)
	}

	if cfg.Exporter != "" {
		switch cfg.Exporter {
		case tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", cfg.Exporter)
		}
	}

	// Path requirements only matter once tracing is on.
	if cfg.Enabled {
		if cfg.Exporter == tracing.ExporterFile && cfg.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if cfg.Exporter == tracing.ExporterOTLP && cfg.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default configuration as a commented YAML string.
func DefaultConfigTemplate() string {
	return `# Bucket Configuration

# Where component sources are loaded from: a directory or an http(s) URL.
base: app

# Appended to locations that do not already end in a known extension.
# Manifests may be .yaml, .yml, .json or .hcl.
extension: .yaml

# Filters rewrite ids by prefix (case-insensitive). The first match wins.
# filters:
#   - prefix: "Shared/"
#     replacement: "https://cdn.example.com/shared/"

# Persistent source cache. Expiry is "<n> <unit>" where unit is one of
# minute, hour, day, week, month.
cache:
  automate: false
  expires: 1 day

# Backend for the persistent cache: sqlite or memory.
storage:
  driver: sqlite
  # path: ~/.config/bucket/bucket.db

log:
  debug: false
  level: debug
  # path: ~/.config/bucket/debug.log

# Debounce for "bucket watch" on a local base.
watch:
  debounce_ms: 250

# OpenTelemetry tracing of resolve and load calls.
tracing:
  enabled: false
  exporter: file          # none, file, stdout, otlp
  # file_path: ~/.config/bucket/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  service_name: bucket
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
