package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// CLI provides the "setup" subcommand of the MCP binary.
type CLI struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewCLI creates a setup CLI reading answers from stdin.
func NewCLI() *CLI {
	return &CLI{reader: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// newCLIWithIO is used by tests.
func newCLIWithIO(in io.Reader, out io.Writer) *CLI {
	return &CLI{reader: bufio.NewReader(in), out: out}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		c.showHelp()
		return nil
	}

	switch args[0] {
	case "claude-desktop":
		return c.setupClaudeDesktop(args[1:])
	case "remove":
		return c.remove(args[1:])
	case "status":
		return c.showStatus(args[1:])
	case "validate":
		return c.validate(args[1:])
	case "help", "--help", "-h":
		c.showHelp()
		return nil
	default:
		c.showHelp()
		return fmt.Errorf("unknown setup command: %s", args[0])
	}
}

func (c *CLI) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *CLI) showHelp() {
	c.printf(`
Coronary Score MCP Server Setup

Usage:
  %[1]s setup <command> [options]

Commands:
  claude-desktop  Register the server with Claude Desktop
  remove          Remove the server from Claude Desktop
  status          Show current setup status
  validate        Validate current configuration

Options for claude-desktop:
  --binary PATH     server binary (default: this executable)
  --data-dir DIR    data directory for score-run history
  --no-runs         do not record score runs
  --config PATH     Claude Desktop config file (default: detected)
  -y, --auto        do not ask for confirmation

Examples:
  %[1]s setup claude-desktop
  %[1]s setup claude-desktop --data-dir ~/coronary-data -y
  %[1]s setup status
`, BinaryName)
}

func (c *CLI) setupClaudeDesktop(args []string) error {
	flags := pflag.NewFlagSet("claude-desktop", pflag.ContinueOnError)
	flags.SetOutput(c.out)
	var opts Options
	noRuns := flags.Bool("no-runs", false, "do not record score runs")
	flags.StringVarP(&opts.BinaryPath, "binary", "b", "", "server binary")
	flags.StringVarP(&opts.DataDir, "data-dir", "d", "", "data directory")
	flags.StringVar(&opts.ConfigPath, "config", "", "Claude Desktop config file")
	flags.BoolVarP(&opts.AutoConfirm, "auto", "y", false, "do not ask for confirmation")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *noRuns {
		record := false
		opts.RecordRuns = &record
	}

	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return err
	}
	opts.ConfigPath = configPath

	c.printf("Claude Desktop Configuration\n")
	c.printf("============================\n")
	c.printf("Config file: %s\n", configPath)
	c.printf("Server binary: %s\n", opts.BinaryPath)
	if opts.DataDir != "" {
		c.printf("Data directory: %s\n", opts.DataDir)
	}
	c.printf("\n")

	if !opts.AutoConfirm {
		c.printf("Proceed with configuration? [Y/n]: ")
		response, _ := c.reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			c.printf("Configuration cancelled.\n")
			return nil
		}
	}

	if err := ConfigureClaudeDesktop(opts); err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}
	if err := EnsureDataDir(opts.DataDir); err != nil {
		c.printf("Warning: %v\n", err)
	}

	c.printf("\nClaude Desktop configured successfully.\n\n")
	c.printf("Next steps:\n")
	c.printf("  1. Restart Claude Desktop to load the new configuration\n")
	c.printf("  2. Ask Claude: \"What MCP tools do you have available?\"\n")
	c.printf("  3. Try: \"Compute the SYNTAX score for a 65 year old man with a 75%% proximal LAD lesion\"\n\n")
	return nil
}

func configFlag(name string, args []string, out io.Writer) (string, error) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(out)
	path := flags.String("config", "", "Claude Desktop config file")
	if err := flags.Parse(args); err != nil {
		return "", err
	}
	return *path, nil
}

func (c *CLI) remove(args []string) error {
	path, err := configFlag("remove", args, c.out)
	if err != nil {
		return err
	}
	removed, err := RemoveClaudeDesktop(path)
	if err != nil {
		return err
	}
	if removed {
		c.printf("Removed %s from Claude Desktop.\n", ServerKey)
	} else {
		c.printf("%s was not configured.\n", ServerKey)
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func (c *CLI) showStatus(args []string) error {
	path, err := configFlag("status", args, c.out)
	if err != nil {
		return err
	}
	status := GetStatus(path)

	c.printf("Coronary Score MCP Server Status\n")
	c.printf("================================\n\n")
	c.printf("Claude Desktop:\n")
	c.printf("  Config path: %s\n", status.ClaudeDesktopPath)
	c.printf("  Configured:  %s\n\n", mark(status.ClaudeDesktopConfigured))

	if status.ClaudeDesktopConfigured {
		c.printf("Server:\n")
		c.printf("  Binary: %s\n", status.ServerPath)
		c.printf("  Found:  %s\n\n", mark(status.BinaryFound))
	}

	c.printf("Data directory:\n")
	c.printf("  Path:    %s\n", status.DataDir)
	c.printf("  Exists:  %s\n", mark(status.DataDirExists))
	c.printf("  Runs DB: %s\n\n", mark(status.RunsDBExists))

	if len(status.Issues) > 0 {
		c.printf("Issues:\n")
		for _, issue := range status.Issues {
			c.printf("  - %s\n", issue)
		}
		c.printf("\n")
	}
	return nil
}

func (c *CLI) validate(args []string) error {
	path, err := configFlag("validate", args, c.out)
	if err != nil {
		return err
	}
	valid, issues := Validate(path)
	if valid {
		c.printf("Configuration is valid.\n")
	} else {
		c.printf("Configuration has issues:\n")
	}
	for _, issue := range issues {
		c.printf("  - %s\n", issue)
	}
	if !valid {
		return fmt.Errorf("setup is incomplete")
	}
	return nil
}
