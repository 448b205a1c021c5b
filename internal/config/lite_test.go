package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coronary-score-server/internal/domain"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.True(t, cfg.RecordRuns)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "right", cfg.DefaultDominance)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "right", cfg.DefaultDominance)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("CORONARY_DATA_DIR", "/tmp/test-coronary")
	t.Setenv("CORONARY_RECORD_RUNS", "false")
	t.Setenv("CORONARY_CACHE_MAX_ITEMS", "500")
	t.Setenv("CORONARY_CACHE_TTL", "12h")
	t.Setenv("CORONARY_DEFAULT_DOMINANCE", "left")
	t.Setenv("CORONARY_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-coronary", cfg.DataDir)
	assert.False(t, cfg.RecordRuns)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "left", cfg.DefaultDominance)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.Equal(t, "none", cfg.StoreConfig().Driver)
	assert.Equal(t, "left", cfg.ScoringConfig().DefaultDominance)
}

func TestLoadLiteConfig_IgnoresInvalidNumbers(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CORONARY_CACHE_MAX_ITEMS", "-3")
	t.Setenv("CORONARY_CACHE_TTL", "soon")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLiteFromConfig(t *testing.T) {
	full := &domain.Config{
		Store:   domain.StoreConfig{Driver: "sqlite", DataDir: "/srv/coronary"},
		Cache:   domain.CacheConfig{MaxItems: 50, DefaultTTL: time.Hour},
		Scoring: domain.ScoringConfig{DefaultDominance: "balanced", RecordRuns: true},
		Logging: domain.LoggingConfig{Level: "debug", Format: "text"},
		MCP:     domain.MCPConfig{ServerName: "cath-lab", ServerVersion: "2.0.0", RequestTimeout: 5 * time.Second},
	}

	cfg := LiteFromConfig(full)
	assert.Equal(t, "/srv/coronary", cfg.DataDir)
	assert.True(t, cfg.RecordRuns)
	assert.Equal(t, 50, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "balanced", cfg.DefaultDominance)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "cath-lab", cfg.ServerName)
	assert.Equal(t, 5*time.Second, cfg.ToolTimeout)

	full.Store.Driver = "none"
	assert.False(t, LiteFromConfig(full).RecordRuns)

	empty := LiteFromConfig(&domain.Config{})
	assert.Equal(t, DefaultLiteConfig().ServerName, empty.ServerName)
	assert.False(t, empty.RecordRuns)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.coronary-score", RecordRuns: true}

	assert.Equal(t, "/home/user/.coronary-score/runs.db", cfg.RunsDBPath())
	assert.Equal(t, "/home/user/.coronary-score/exports", cfg.ExportDir())

	store := cfg.StoreConfig()
	assert.Equal(t, "sqlite", store.Driver)
	assert.Equal(t, cfg.DataDir, store.DataDir)
	assert.Equal(t, "stderr", cfg.LoggingConfig().Output)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "coronary")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"CORONARY_DATA_DIR",
		"CORONARY_RECORD_RUNS",
		"CORONARY_CACHE_MAX_ITEMS",
		"CORONARY_CACHE_TTL",
		"CORONARY_DEFAULT_DOMINANCE",
		"CORONARY_LOG_LEVEL",
		"CORONARY_LOG_FORMAT",
		"CORONARY_TOOL_TIMEOUT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
