// Package config provides configuration for the history index and its CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backend types.
const (
	StorageLocal  = "local"
	StorageS3     = "s3"
	StorageSQLite = "sqlite"
)

// Config holds the configuration for building and caching histories.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Cache configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Bots configuration
	Bots BotsConfig `json:"bots" yaml:"bots"`

	// Query configuration
	Query QueryConfig `json:"query" yaml:"query"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// CacheConfig holds history cache configuration.
type CacheConfig struct {
	// Enabled controls whether histories are loaded from and written to the cache
	Enabled bool `json:"enabled" yaml:"enabled"`

	// SchemaVersion is the snapshot version written and required on load
	SchemaVersion float64 `json:"schema_version" yaml:"schema_version"`

	// Prefix is the object key prefix for snapshots
	Prefix string `json:"prefix" yaml:"prefix"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3, sqlite
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`

	// SQLite configuration (for sqlite type)
	SQLite SQLiteConfig `json:"sqlite" yaml:"sqlite"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// SQLiteConfig holds SQLite storage configuration.
type SQLiteConfig struct {
	// Path is the database file
	Path string `json:"path" yaml:"path"`
}

// BotsConfig lists automation identities.
type BotsConfig struct {
	// Names are excluded from human attribution and author boilerplate comments
	Names []string `json:"names" yaml:"names"`
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	// WaffleLimit is the add/remove count at which a label is waffling
	WaffleLimit int `json:"waffle_limit" yaml:"waffle_limit"`

	// ComponentMarker starts a component command line
	ComponentMarker string `json:"component_marker" yaml:"component_marker"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/history",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			Enabled:       true,
			SchemaVersion: 1.2,
			Prefix:        "history",
		},
		Storage: StorageConfig{
			Type: StorageLocal,
		},
		Bots: BotsConfig{
			Names: []string{"ansibot", "ansibullbot"},
		},
		Query: QueryConfig{
			WaffleLimit:     20,
			ComponentMarker: "!component",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/history"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "cache")
	}

	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = filepath.Join(c.DataDir, "history.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Storage.Type {
	case StorageLocal, StorageS3, StorageSQLite:
	default:
		return fmt.Errorf("invalid storage type: %s (must be local, s3, or sqlite)", c.Storage.Type)
	}

	if c.Storage.Type == StorageS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Cache.SchemaVersion <= 0 {
		return fmt.Errorf("cache.schema_version must be positive, got %v", c.Cache.SchemaVersion)
	}

	if c.Query.WaffleLimit < 1 {
		return fmt.Errorf("query.waffle_limit must be at least 1, got %d", c.Query.WaffleLimit)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the HISTORY_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("HISTORY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Log configuration
	if v := os.Getenv("HISTORY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HISTORY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Cache configuration
	if v := os.Getenv("HISTORY_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("HISTORY_CACHE_SCHEMA_VERSION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cache.SchemaVersion = f
		}
	}
	if v := os.Getenv("HISTORY_CACHE_PREFIX"); v != "" {
		cfg.Cache.Prefix = v
	}

	// Storage configuration
	if v := os.Getenv("HISTORY_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("HISTORY_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("HISTORY_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("HISTORY_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("HISTORY_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("HISTORY_S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
	if v := os.Getenv("HISTORY_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLite.Path = v
	}

	// Bots and query configuration
	if v := os.Getenv("HISTORY_BOT_NAMES"); v != "" {
		cfg.Bots.Names = splitList(v)
	}
	if v := os.Getenv("HISTORY_QUERY_WAFFLE_LIMIT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.WaffleLimit)
	}
	if v := os.Getenv("HISTORY_QUERY_COMPONENT_MARKER"); v != "" {
		cfg.Query.ComponentMarker = v
	}
}

// EnsureDirectories creates all required local directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	switch c.Storage.Type {
	case StorageLocal:
		dirs = append(dirs, c.Storage.Path)
	case StorageSQLite:
		dirs = append(dirs, filepath.Dir(c.Storage.SQLite.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
