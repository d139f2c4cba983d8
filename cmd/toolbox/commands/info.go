// ABOUTME: Info command reports the active storage backend
// ABOUTME: Shows location, size, capacity, and declared tables
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/catalog"
)

// NewInfoCmd creates the info command
func NewInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the active storage backend and capacity",
		Long: `Show which storage backend is active, where data lives, how much
space it uses, and how much is left.

Examples:
  toolbox info
  toolbox --backend in-memory info
  toolbox info --format json`,
		Args: cobra.NoArgs,
		RunE: runInfo,
	}

	return cmd
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := commandContext(cmd)
	if err := catalog.DeclareAll(ctx, m); err != nil {
		return err
	}
	info, err := m.StorageInfo(ctx)
	if err != nil {
		return fmt.Errorf("reading storage info: %w", err)
	}

	if jsonOutput() {
		return printJSON(cmd, map[string]interface{}{
			"info":   info,
			"tables": m.Tables(),
			"passes": m.SelectionPasses(),
		})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Backend:\t%s\n", m.StorageType())
	fmt.Fprintf(w, "Location:\t%s\n", info.Location)
	fmt.Fprintf(w, "Size:\t%s\n", formatBytes(info.Size))
	switch {
	case info.Unlimited:
		fmt.Fprintf(w, "Available:\tunlimited\n")
	case info.Quota != nil && info.Quota.Quota > 0:
		fmt.Fprintf(w, "Available:\t%s of %s (%.1f%% used)\n",
			formatBytes(info.Available), formatBytes(info.Quota.Quota), info.Quota.Percentage)
	default:
		fmt.Fprintf(w, "Available:\tunknown\n")
	}
	if info.Degraded {
		fmt.Fprintf(w, "Status:\tdegraded (not persisted)\n")
	}
	fmt.Fprintf(w, "Tables:\t%s\n", strings.Join(m.Tables(), ", "))
	return w.Flush()
}
