// ABOUTME: Directory commands grant a folder for the directory-file backend
// ABOUTME: Reports whether a remembered directory needs to be granted again
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/catalog"
)

// NewDirCmd creates the dir command group
func NewDirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dir",
		Short: "Manage the storage directory",
		Long: `Choose a directory to hold the database file, or check which one was
chosen before. Grants last for one process; pass --dir with
--backend directory-file to keep using the folder.`,
	}

	cmd.AddCommand(newDirSelectCmd(), newDirStatusCmd())
	return cmd
}

func newDirSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select",
		Short: "Switch storage to a directory",
		Long: `Prompt for a directory (or use --dir) and switch storage to <app>.db
inside it. App tables are recreated there; existing rows stay behind.

Examples:
  toolbox dir select
  toolbox --dir ~/Documents/toolbox dir select`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx := commandContext(cmd)
			if err := catalog.DeclareAll(ctx, m); err != nil {
				return err
			}
			ok, err := m.SelectStorageDirectory(ctx)
			if err != nil {
				return err
			}
			if !ok {
				status(cmd, "Directory not selected; still using %s", m.StorageType())
				return nil
			}
			st := m.DirectoryStatus(ctx)
			status(cmd, "Storage directory selected: %s", st.Name)
			return nil
		},
	}
}

func newDirStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the remembered storage directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			st := m.DirectoryStatus(commandContext(cmd))
			if jsonOutput() {
				return printJSON(cmd, st)
			}

			out := cmd.OutOrStdout()
			if !st.PreviouslySelected {
				fmt.Fprintln(out, "No storage directory selected")
				return nil
			}
			fmt.Fprintf(out, "Directory: %s\n", st.Name)
			switch {
			case st.Active:
				fmt.Fprintln(out, "Status:    active")
			case st.NeedsRegrant:
				fmt.Fprintln(out, "Status:    needs permission again (run `toolbox dir select`)")
			default:
				fmt.Fprintln(out, "Status:    inactive")
			}
			return nil
		},
	}
}
