// ABOUTME: Key-value commands snapshot the raw collections as JSON or YAML
// ABOUTME: Covers stored images, flags, and backups together
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/storage/kvstore"
)

var (
	kvOutput   string
	kvEncoding string
)

// NewKVCmd creates the kv command group
func NewKVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Snapshot the key-value store",
		Long: `Export or import every key-value collection: stored database images,
directory flags, and backups.

Examples:
  toolbox kv export -o snapshot.json
  toolbox kv export --encoding yaml
  toolbox kv import snapshot.json`,
	}

	cmd.AddCommand(newKVExportCmd(), newKVImportCmd())
	return cmd
}

func newKVExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			snap, err := m.ExportCollections(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("exporting collections: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if kvOutput != "" {
				f, err := os.OpenFile(kvOutput, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return fmt.Errorf("creating %s: %w", kvOutput, err)
				}
				defer f.Close()
				w = f
			}
			if err := snap.Encode(w, kvEncoding); err != nil {
				return err
			}
			if kvOutput != "" {
				status(cmd, "Exported %d collection(s) to %s", len(snap.Names()), kvOutput)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kvOutput, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&kvEncoding, "encoding", "json", "Snapshot encoding: json or yaml")
	return cmd
}

func newKVImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace every collection from a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			snap, err := kvstore.DecodeSnapshot(f)
			if err != nil {
				return err
			}

			m, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.ImportCollections(commandContext(cmd), snap); err != nil {
				return err
			}
			status(cmd, "Imported %d collection(s)", len(snap.Names()))
			return nil
		},
	}
}
