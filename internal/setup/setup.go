// Package setup registers the coronary score MCP server with Claude Desktop
// and reports on the local installation.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/coronary-score-server/internal/config"
)

const (
	// ServerKey is the entry name under mcpServers.
	ServerKey = "coronary-score"
	// BinaryName is the MCP server executable.
	BinaryName = "coronary-mcp"
	// DataDirEnv points the server at its data directory.
	DataDirEnv = "CORONARY_DATA_DIR"
)

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	// Other top-level keys are preserved on save.
	Extra map[string]json.RawMessage `json:"-"`
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for the setup process.
type Options struct {
	ConfigPath  string // Claude Desktop config file; detected when empty
	BinaryPath  string // Path to the server binary
	DataDir     string // Data directory passed to the server
	RecordRuns  *bool  // Sets CORONARY_RECORD_RUNS when non-nil
	AutoConfirm bool   // Skip confirmation prompts
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the existing Claude Desktop configuration.
// A missing file yields an empty configuration.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	desktop := &ClaudeDesktopConfig{
		MCPServers: make(map[string]MCPServerConfig),
		Extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return desktop, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &desktop.Extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := desktop.Extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &desktop.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(desktop.Extra, "mcpServers")
	}
	if desktop.MCPServers == nil {
		desktop.MCPServers = make(map[string]MCPServerConfig)
	}

	return desktop, nil
}

// SaveClaudeDesktopConfig saves the configuration to the Claude Desktop config file.
func SaveClaudeDesktopConfig(configPath string, desktop *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(desktop.Extra)+1)
	for k, v := range desktop.Extra {
		out[k] = v
	}
	out["mcpServers"] = desktop.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return GetClaudeDesktopConfigPath()
}

// ConfigureClaudeDesktop adds or updates the coronary score server entry.
func ConfigureClaudeDesktop(opts Options) error {
	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return err
	}

	desktop, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		binaryPath, err = findBinary()
		if err != nil {
			return fmt.Errorf("could not find server binary: %w", err)
		}
	}

	serverConfig := MCPServerConfig{
		Command: binaryPath,
		Env:     make(map[string]string),
	}
	if opts.DataDir != "" {
		serverConfig.Env[DataDirEnv] = opts.DataDir
	}
	if opts.RecordRuns != nil {
		serverConfig.Env["CORONARY_RECORD_RUNS"] = fmt.Sprintf("%t", *opts.RecordRuns)
	}

	desktop.MCPServers[ServerKey] = serverConfig

	return SaveClaudeDesktopConfig(configPath, desktop)
}

// RemoveClaudeDesktop deletes the server entry, reporting whether one existed.
func RemoveClaudeDesktop(configPath string) (bool, error) {
	configPath, err := resolveConfigPath(configPath)
	if err != nil {
		return false, err
	}
	desktop, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return false, err
	}
	if _, ok := desktop.MCPServers[ServerKey]; !ok {
		return false, nil
	}
	delete(desktop.MCPServers, ServerKey)
	return true, SaveClaudeDesktopConfig(configPath, desktop)
}

// findBinary attempts to find the server binary in common locations.
func findBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(home, ".local", "bin", BinaryName),
		filepath.Join(home, "go", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			absPath, err := filepath.Abs(loc)
			if err != nil {
				return loc, nil
			}
			return absPath, nil
		}
	}

	return "", fmt.Errorf("binary %q not found in common locations", BinaryName)
}

// Status represents the current setup status.
type Status struct {
	ClaudeDesktopConfigured bool
	ClaudeDesktopPath       string
	ServerPath              string
	BinaryFound             bool
	DataDir                 string
	DataDirExists           bool
	RunsDBExists            bool
	Issues                  []string
}

// GetStatus checks the current setup status.
func GetStatus(configPath string) *Status {
	status := &Status{DataDir: GetDefaultDataDir()}

	path, err := resolveConfigPath(configPath)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not determine Claude Desktop config path: %v", err))
	} else {
		status.ClaudeDesktopPath = path
		desktop, err := LoadClaudeDesktopConfig(path)
		switch {
		case err != nil:
			status.Issues = append(status.Issues, fmt.Sprintf("Could not load Claude Desktop config: %v", err))
		default:
			if server, ok := desktop.MCPServers[ServerKey]; ok {
				status.ClaudeDesktopConfigured = true
				status.ServerPath = server.Command
				if dir := server.Env[DataDirEnv]; dir != "" {
					status.DataDir = dir
				}
			}
		}
	}

	if status.ClaudeDesktopConfigured {
		if _, err := os.Stat(status.ServerPath); err == nil {
			status.BinaryFound = true
		} else {
			status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", status.ServerPath))
		}
	} else {
		status.Issues = append(status.Issues, "Coronary score server is not configured in Claude Desktop")
	}

	if _, err := os.Stat(status.DataDir); err == nil {
		status.DataDirExists = true
		if _, err := os.Stat(filepath.Join(status.DataDir, "runs.db")); err == nil {
			status.RunsDBExists = true
		}
	}

	return status
}

// Validate checks that the setup is usable. Only a missing data directory is
// tolerated since the server creates it on first run.
func Validate(configPath string) (bool, []string) {
	status := GetStatus(configPath)
	issues := append([]string(nil), status.Issues...)

	if status.BinaryFound {
		info, err := os.Stat(status.ServerPath)
		if err == nil && runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
			issues = append(issues, fmt.Sprintf("Server binary is not executable: %s", status.ServerPath))
		}
	}
	if !status.DataDirExists {
		issues = append(issues, fmt.Sprintf("Data directory will be created on first run: %s", status.DataDir))
	}

	return allWarnings(issues), issues
}

func allWarnings(issues []string) bool {
	for _, issue := range issues {
		if !strings.Contains(issue, "will be created") {
			return false
		}
	}
	return true
}

// GetDefaultDataDir returns the data directory the server uses by default.
func GetDefaultDataDir() string {
	return config.DefaultLiteConfig().DataDir
}

// EnsureDataDir creates the data directory and its exports subdirectory.
func EnsureDataDir(dataDir string) error {
	cfg := config.DefaultLiteConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
