package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/texsense/cmd/texsense/commands"
	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/logger"
)

var rootCmd = &cobra.Command{
	Use:   "texsense",
	Short: "texsense - LaTeX completion language server",
	Long: `texsense - LaTeX completion for any editor that speaks LSP.

Completes commands, environments, math symbols, citation keys and \label
references, and wraps a selection with a command on request.

Available commands:
  serve    - Run the language server (stdio or WebSocket)
  complete - Complete a position in a file from the command line
  am       - Manage texsense configuration ("I am")
  version  - Show version information

Examples:
  texsense serve --stdio           # Serve one editor over stdin/stdout
  texsense serve --ws -v           # Serve editors over WebSocket
  texsense complete paper.tex 12 7 # Suggestions at line 12, column 7
  texsense am show                 # Show current configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout is reserved for command output; serve reconfigures for its transport
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logger.InitializeStderr(logger.VerbosityToLevel(verbosity))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	// Add commands
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.CompleteCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
