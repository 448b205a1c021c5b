package setup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBinary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, BinaryName)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	return path
}

func TestLoadClaudeDesktopConfig_Missing(t *testing.T) {
	config, err := LoadClaudeDesktopConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, config.MCPServers)
}

func TestLoadClaudeDesktopConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadClaudeDesktopConfig(path)
	assert.Error(t, err)
}

func TestConfigureClaudeDesktop_PreservesOtherEntries(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "Claude", "claude_desktop_config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"globalShortcut": "Ctrl+Space",
		"mcpServers": {"other": {"command": "/usr/bin/other"}}
	}`), 0644))

	record := false
	err := ConfigureClaudeDesktop(Options{
		ConfigPath: configPath,
		BinaryPath: writeBinary(t, dir),
		DataDir:    filepath.Join(dir, "data"),
		RecordRuns: &record,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(configPath)
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, "Ctrl+Space", saved["globalShortcut"])

	config, err := LoadClaudeDesktopConfig(configPath)
	require.NoError(t, err)
	require.Contains(t, config.MCPServers, "other")
	server := config.MCPServers[ServerKey]
	assert.Equal(t, filepath.Join(dir, BinaryName), server.Command)
	assert.Equal(t, filepath.Join(dir, "data"), server.Env[DataDirEnv])
	assert.Equal(t, "false", server.Env["CORONARY_RECORD_RUNS"])
}

func TestRemoveClaudeDesktop(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "claude_desktop_config.json")

	removed, err := RemoveClaudeDesktop(configPath)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, ConfigureClaudeDesktop(Options{ConfigPath: configPath, BinaryPath: writeBinary(t, dir)}))
	removed, err = RemoveClaudeDesktop(configPath)
	require.NoError(t, err)
	assert.True(t, removed)

	config, err := LoadClaudeDesktopConfig(configPath)
	require.NoError(t, err)
	assert.NotContains(t, config.MCPServers, ServerKey)
}

func TestGetStatusAndValidate(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "claude_desktop_config.json")

	status := GetStatus(configPath)
	assert.False(t, status.ClaudeDesktopConfigured)
	valid, issues := Validate(configPath)
	assert.False(t, valid)
	assert.NotEmpty(t, issues)

	dataDir := filepath.Join(dir, "data")
	require.NoError(t, ConfigureClaudeDesktop(Options{
		ConfigPath: configPath,
		BinaryPath: writeBinary(t, dir),
		DataDir:    dataDir,
	}))

	status = GetStatus(configPath)
	assert.True(t, status.ClaudeDesktopConfigured)
	assert.True(t, status.BinaryFound)
	assert.Equal(t, dataDir, status.DataDir)
	assert.False(t, status.DataDirExists)

	// A missing data directory is only a warning.
	valid, issues = Validate(configPath)
	assert.True(t, valid)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "will be created")

	require.NoError(t, EnsureDataDir(dataDir))
	assert.DirExists(t, filepath.Join(dataDir, "exports"))
	valid, issues = Validate(configPath)
	assert.True(t, valid)
	assert.Empty(t, issues)
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "claude_desktop_config.json")
	binary := writeBinary(t, dir)

	var out bytes.Buffer
	cli := newCLIWithIO(strings.NewReader("n\n"), &out)
	require.NoError(t, cli.Run([]string{"claude-desktop", "--config", configPath, "--binary", binary}))
	assert.Contains(t, out.String(), "cancelled")
	assert.NoFileExists(t, configPath)

	out.Reset()
	cli = newCLIWithIO(strings.NewReader(""), &out)
	require.NoError(t, cli.Run([]string{"claude-desktop", "--config", configPath, "--binary", binary,
		"--data-dir", filepath.Join(dir, "data"), "-y"}))
	assert.Contains(t, out.String(), "configured successfully")
	assert.FileExists(t, configPath)

	out.Reset()
	require.NoError(t, cli.Run([]string{"status", "--config", configPath}))
	assert.Contains(t, out.String(), binary)

	out.Reset()
	require.NoError(t, cli.Run([]string{"validate", "--config", configPath}))
	assert.Contains(t, out.String(), "valid")

	out.Reset()
	require.NoError(t, cli.Run([]string{"remove", "--config", configPath}))
	assert.Contains(t, out.String(), "Removed")

	assert.Error(t, cli.Run([]string{"bogus"}))
}
