// Package config provides configuration management for the scoring binaries.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/coronary-score-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir    string // Base directory for data files
	RecordRuns bool   // Keep a history of score runs in DataDir

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Scoring
	DefaultDominance string

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text

	// MCP server identity and per-tool deadline
	ServerName    string
	ServerVersion string
	ToolTimeout   time.Duration
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return ".coronary-score"
	}
	return filepath.Join(homeDir, ".coronary-score")
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	return &LiteConfig{
		DataDir:          defaultDataDir(),
		RecordRuns:       true,
		CacheMaxItems:    1000,
		CacheTTL:         24 * time.Hour,
		DefaultDominance: "right",
		LogLevel:         "info",
		LogFormat:        "json",
		ServerName:       "coronary-score",
		ServerVersion:    "1.0.0",
		ToolTimeout:      30 * time.Second,
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("CORONARY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CORONARY_RECORD_RUNS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RecordRuns = b
		}
	}

	if v := os.Getenv("CORONARY_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("CORONARY_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("CORONARY_DEFAULT_DOMINANCE"); v != "" {
		cfg.DefaultDominance = v
	}

	if v := os.Getenv("CORONARY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CORONARY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CORONARY_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ToolTimeout = d
		}
	}

	return cfg
}

// LiteFromConfig derives the standalone settings from a full configuration,
// so the MCP binary can share a config file with the HTTP server.
func LiteFromConfig(c *domain.Config) *LiteConfig {
	cfg := DefaultLiteConfig()
	if c.Store.DataDir != "" {
		cfg.DataDir = c.Store.DataDir
	}
	cfg.RecordRuns = c.Scoring.RecordRuns && c.Store.Driver != "none"
	if c.Cache.MaxItems > 0 {
		cfg.CacheMaxItems = c.Cache.MaxItems
	}
	if c.Cache.DefaultTTL > 0 {
		cfg.CacheTTL = c.Cache.DefaultTTL
	}
	if c.Scoring.DefaultDominance != "" {
		cfg.DefaultDominance = c.Scoring.DefaultDominance
	}
	if c.Logging.Level != "" {
		cfg.LogLevel = c.Logging.Level
	}
	if c.Logging.Format != "" {
		cfg.LogFormat = c.Logging.Format
	}
	if c.MCP.ServerName != "" {
		cfg.ServerName = c.MCP.ServerName
	}
	if c.MCP.ServerVersion != "" {
		cfg.ServerVersion = c.MCP.ServerVersion
	}
	if c.MCP.RequestTimeout > 0 {
		cfg.ToolTimeout = c.MCP.RequestTimeout
	}
	return cfg
}

// RunsDBPath returns the path to the score-run SQLite database.
func (c *LiteConfig) RunsDBPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// StoreConfig is the store section equivalent of the lite settings.
func (c *LiteConfig) StoreConfig() domain.StoreConfig {
	driver := "sqlite"
	if !c.RecordRuns {
		driver = "none"
	}
	return domain.StoreConfig{Driver: driver, DataDir: c.DataDir}
}

// CacheConfig is the memory-only cache section equivalent of the lite settings.
func (c *LiteConfig) CacheConfig() domain.CacheConfig {
	return domain.CacheConfig{Enabled: true, MaxItems: c.CacheMaxItems, DefaultTTL: c.CacheTTL}
}

// ScoringConfig is the scoring section equivalent of the lite settings.
func (c *LiteConfig) ScoringConfig() domain.ScoringConfig {
	return domain.ScoringConfig{DefaultDominance: c.DefaultDominance, BatchWorkers: 4, RecordRuns: c.RecordRuns}
}

// LoggingConfig is the logging section equivalent of the lite settings.
func (c *LiteConfig) LoggingConfig() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}
