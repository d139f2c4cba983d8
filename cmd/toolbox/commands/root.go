// ABOUTME: Root command and global flags for the toolbox CLI
// ABOUTME: Wires subcommands and runs them under a signal-aware context
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	backendFlag  string
	dirFlag      string
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolbox",
		Short: "Local-first storage for small productivity apps",
		Long: `toolbox keeps todos, pomodoro sessions, a countdown, and chat history
in a local SQL database persisted to the best available backend:

  indexed-store   embedded key-value store under the data directory
  directory-file  <app>.db inside a directory you grant
  in-memory       nothing persisted; lost on exit

Examples:
  toolbox info
  toolbox todo add "Buy milk"
  toolbox --backend directory-file --dir ~/Documents todo list
  toolbox export -o backup.sql`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, text, or json")
	cmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Preferred backend: indexed-store, directory-file, or in-memory")
	cmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "Directory to use for the directory-file backend")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewInfoCmd(),
		NewExportCmd(),
		NewImportCmd(),
		NewDirCmd(),
		NewTodoCmd(),
		NewPomodoroCmd(),
		NewCountdownCmd(),
		NewChatCmd(),
		NewBackupCmd(),
		NewKVCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command until it finishes or the process is signaled
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
