// ABOUTME: Backup commands save and restore labeled copies of app data
// ABOUTME: Backups live in the key-value store next to the active database
package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/catalog"
	"github.com/harper/toolbox/internal/storage"
)

// NewBackupCmd creates the backup command group
func NewBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Save and restore backups",
		Long: `Save labeled backups of every app table and restore them later.
Restoring replaces the current contents of each backed-up table.

Examples:
  toolbox backup save "before cleanup"
  toolbox backup list
  toolbox backup restore 2`,
	}

	cmd.AddCommand(newBackupSaveCmd(), newBackupListCmd(), newBackupRestoreCmd(), newBackupRmCmd())
	return cmd
}

func withBackups(cmd *cobra.Command, fn func(ctx context.Context, m *storage.Manager) error) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := commandContext(cmd)
	if err := catalog.DeclareAll(ctx, m); err != nil {
		return err
	}
	return fn(ctx, m)
}

func newBackupSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [label]",
		Short: "Save a backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(cmd, func(ctx context.Context, m *storage.Manager) error {
				b, err := m.SaveBackup(ctx, strings.Join(args, " "))
				if err != nil {
					return fmt.Errorf("could not save backup: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, b)
				}
				status(cmd, "Saved backup #%d (%s)", b.ID, formatBytes(b.Size))
				return nil
			})
		},
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(cmd, func(ctx context.Context, m *storage.Manager) error {
				list, err := m.Backups(ctx)
				if err != nil {
					return fmt.Errorf("could not list backups: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, list)
				}
				if len(list) == 0 {
					status(cmd, "No backups")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "ID\tLABEL\tBACKEND\tSIZE\tCREATED\n")
				for _, b := range list {
					label := b.Label
					if label == "" {
						label = "(no label)"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", b.ID, truncate(label, 30), b.Backend, formatBytes(b.Size), formatTime(b.CreatedAt))
				}
				return w.Flush()
			})
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "backup id")
			if err != nil {
				return err
			}
			return withBackups(cmd, func(ctx context.Context, m *storage.Manager) error {
				if err := m.RestoreBackup(ctx, id); err != nil {
					return fmt.Errorf("could not restore backup: %w", err)
				}
				status(cmd, "Restored backup #%d", id)
				return nil
			})
		},
	}
}

func newBackupRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "backup id")
			if err != nil {
				return err
			}
			return withBackups(cmd, func(ctx context.Context, m *storage.Manager) error {
				if err := m.DeleteBackup(ctx, id); err != nil {
					return fmt.Errorf("could not delete backup: %w", err)
				}
				status(cmd, "Deleted backup #%d", id)
				return nil
			})
		},
	}
}
