// Package config loads compactpdf settings from defaults, a YAML file and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"compactpdf/internal/common"
	"compactpdf/internal/domain/compression"
)

const (
	envPrefix         = "COMPACTPDF_"
	maxConfigFileSize = 1024 * 1024 // 1MB
	appName           = "compactpdf"
)

// defaults is loaded before the config file so booleans can default to true.
const defaults = `
level: balanced
workers: 0
log:
  level: info
  format: text
cache:
  enabled: true
  max_entries: 200
backup:
  enabled: true
  keep: 20
analytics:
  enabled: true
`

// Config holds application configuration
type Config struct {
	Level           string          `koanf:"level"`
	Workers         int             `koanf:"workers"`
	WorkingDir      string          `koanf:"working_dir"`
	AppDataDir      string          `koanf:"data_dir"`
	DatabasePath    string          `koanf:"database_path"`
	OutputDir       string          `koanf:"output_dir"`
	GhostscriptPath string          `koanf:"ghostscript_path"`
	Log             LogConfig       `koanf:"log"`
	Cache           CacheConfig     `koanf:"cache"`
	Backup          BackupConfig    `koanf:"backup"`
	Analytics       AnalyticsConfig `koanf:"analytics"`
	Metrics         MetricsConfig   `koanf:"metrics"`

	Logger *slog.Logger `koanf:"-"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type CacheConfig struct {
	Enabled    bool `koanf:"enabled"`
	MaxEntries int  `koanf:"max_entries"`
}

type BackupConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	Keep    int    `koanf:"keep"`
}

type AnalyticsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type MetricsConfig struct {
	// Textfile is where run metrics are written in Prometheus text format. Empty disables it.
	Textfile string `koanf:"textfile"`
}

// sections are the nested keys environment variables can address.
var sections = []string{"log", "cache", "backup", "analytics", "metrics"}

// Load builds the configuration.
//
// Precedence, highest first:
//  1. Environment variables prefixed COMPACTPDF_ (COMPACTPDF_CACHE_ENABLED -> cache.enabled)
//  2. The YAML file at configPath, or ~/.config/compactpdf/config.yaml when empty
//  3. Built-in defaults
//
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigPath()
	}
	if configPath != "" {
		if err := loadFile(k, configPath, explicit); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.setupDirectories(); err != nil {
		return nil, err
	}
	cfg.GhostscriptPath = findGhostscript(cfg.GhostscriptPath)
	cfg.Logger = NewLogger(cfg.Log, os.Stderr)

	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// envKey maps COMPACTPDF_CACHE_MAX_ENTRIES to cache.max_entries and
// COMPACTPDF_GHOSTSCRIPT_PATH to ghostscript_path.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 2 {
		for _, section := range sections {
			if parts[0] == section {
				return section + "." + parts[1]
			}
		}
	}
	return key
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := compression.ParseLevel(c.Level); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Workers > common.MaxConcurrencyLimit {
		return fmt.Errorf("workers must not exceed %d, got %d", common.MaxConcurrencyLimit, c.Workers)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := parseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative")
	}
	return nil
}

// CompressionLevel returns the configured default level.
func (c *Config) CompressionLevel() compression.Level {
	level, err := compression.ParseLevel(c.Level)
	if err != nil {
		return compression.DefaultLevel
	}
	return level
}

func (c *Config) setupDirectories() error {
	// Set up working directory (temp files)
	if c.WorkingDir == "" {
		c.WorkingDir = filepath.Join(os.TempDir(), appName)
	}
	if err := os.MkdirAll(c.WorkingDir, common.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	// Set up app data directory (database, backups)
	if c.AppDataDir == "" {
		c.AppDataDir = getAppDataDir()
	}
	if err := os.MkdirAll(c.AppDataDir, common.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.AppDataDir, "database.sqlite3")
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = filepath.Join(c.AppDataDir, "backups")
	}
	return nil
}

// DefaultConfigPath returns ~/.config/compactpdf/config.yaml, or "" when there is no home directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.yaml")
}

func getAppDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName+"-data")
}

// findGhostscript keeps an explicit path and otherwise searches PATH. "" means unavailable.
func findGhostscript(configured string) string {
	if configured != "" {
		return configured
	}
	for _, name := range []string{"gs", "gswin64c", "gswin32c"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
