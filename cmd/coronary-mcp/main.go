// Command coronary-mcp serves the coronary scoring tools over MCP stdio.
// It needs no external databases: results are cached in memory and score
// runs are kept in SQLite under the data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/coronary-score-server/internal/config"
	"github.com/coronary-score-server/internal/mcp"
	"github.com/coronary-score-server/internal/setup"
)

func main() {
	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI().Run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	flags := pflag.NewFlagSet("coronary-mcp", pflag.ExitOnError)
	configFile := flags.String("config", "", "YAML configuration shared with coronary-server (default: environment only)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	server, err := mcp.NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create MCP server: %v\n", err)
		os.Exit(1)
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		server.Close()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.LiteConfig, error) {
	if path == "" {
		return config.LoadLiteConfig(), nil
	}
	manager, err := config.NewManager(config.WithConfigFile(path))
	if err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config.LiteFromConfig(manager.GetConfig()), nil
}
