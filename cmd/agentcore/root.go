package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"agentcore/internal/config"
	"agentcore/internal/di"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// CLI carries state shared by every subcommand.
type CLI struct {
	configPath string
	noColor    bool
	debug      bool

	config    *config.Manager
	container *di.Container
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	cli := &CLI{}

	rootCmd := &cobra.Command{
		Use:   "agentcore",
		Short: "Inspect agent runs, checkpoints and permission rules",
		Long: fmt.Sprintf(`%s

Inspect the checkpointed run history of the agent core, find where a run
would resume, and dry-run tool permission rules.

%s
  agentcore history list --query deploy
  agentcore history resume-point run-123
  agentcore permissions check Bash "git push origin main"
  agentcore config show --sources`,
			bold("agentcore "+Version),
			bold("EXAMPLES:")),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.NoColor = cli.noColor || !isTerminal(cmd.OutOrStdout())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return cli.close(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Config file (default: ./agentcore.yaml or ~/.agentcore/agentcore.yaml)")
	rootCmd.PersistentFlags().BoolVar(&cli.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&cli.debug, "debug", "d", false, "Debug logging")

	rootCmd.AddCommand(newHistoryCommand(cli))
	rootCmd.AddCommand(newPermissionsCommand(cli))
	rootCmd.AddCommand(newConfigCommand(cli))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig resolves configuration once per invocation.
func (cli *CLI) loadConfig() (*config.Manager, error) {
	if cli.config != nil {
		return cli.config, nil
	}
	mgr, err := config.Load(cli.configPath)
	if err != nil {
		return nil, err
	}
	cli.config = mgr
	return mgr, nil
}

// initialize builds the container behind history commands.
func (cli *CLI) initialize() (*di.Container, error) {
	if cli.container != nil {
		return cli.container, nil
	}
	mgr, err := cli.loadConfig()
	if err != nil {
		return nil, err
	}
	var opts []di.Option
	if cli.debug {
		opts = append(opts, di.WithLogLevel("debug"))
	}
	container, err := di.BuildContainer(mgr, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	cli.container = container
	return container, nil
}

func (cli *CLI) close(ctx context.Context) error {
	if cli.container == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := cli.container.Cleanup(ctx)
	cli.container = nil
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", Version)
		},
	}
}
