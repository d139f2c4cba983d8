// ABOUTME: Export and import commands for SQL bundles
// ABOUTME: Bundles cover every table the bundled apps declare
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/catalog"
	"github.com/harper/toolbox/internal/storage"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

var (
	exportOutput string
	importMerge  bool
	importDryRun bool
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all app data as a SQL bundle",
		Long: `Export every app table as SQL text: CREATE statements followed by
INSERT statements for each row.

Examples:
  toolbox export
  toolbox export -o backup.sql`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := commandContext(cmd)
	if err := catalog.DeclareAll(ctx, m); err != nil {
		return err
	}
	bundle, err := m.ExportData(ctx)
	if err != nil {
		return fmt.Errorf("exporting data: %w", err)
	}

	if exportOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), bundle)
		return nil
	}
	if err := os.WriteFile(exportOutput, []byte(bundle), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", exportOutput, err)
	}
	status(cmd, "Exported %s to %s", formatBytes(int64(len(bundle))), exportOutput)
	return nil
}

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a SQL bundle",
		Long: `Import a SQL bundle produced by export. Each table in the bundle is
cleared before its rows are loaded unless --merge is given. Statements
touching tables no app declares are rejected.

Examples:
  toolbox import backup.sql
  toolbox import backup.sql --merge
  toolbox import backup.sql --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolVar(&importMerge, "merge", false, "Keep existing rows instead of replacing tables")
	cmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate against a scratch in-memory database")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	m, err := openManager(cmd, func(o *storage.Options) {
		if importMerge {
			o.ImportMode = sqlite.RestoreMerge
		}
		if importDryRun {
			o.KVDisabled = true
			o.Openers = map[storage.Kind]storage.Opener{
				storage.KindIndexedStore:  unavailable,
				storage.KindDirectoryFile: unavailable,
			}
		}
	})
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := commandContext(cmd)
	if err := catalog.DeclareAll(ctx, m); err != nil {
		return err
	}
	statements := len(sqlite.SplitStatements(string(data)))
	if err := m.ImportData(ctx, string(data)); err != nil {
		return err
	}

	if importDryRun {
		status(cmd, "Dry run: %d statement(s) would import cleanly", statements)
		return nil
	}
	status(cmd, "Imported %d statement(s) into %s", statements, m.StorageType())
	return nil
}

func unavailable(context.Context) (storage.Backend, error) {
	return nil, storage.ErrUnavailable
}
