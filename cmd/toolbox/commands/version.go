// ABOUTME: Version command reporting the build and the storage formats it reads
// ABOUTME: Key-value schema version tells whether a data dir needs migrating
package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/storage/kvstore"
)

var versionInfo = VersionInfo{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
}

// VersionInfo contains build information
type VersionInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	KVSchema int    `json:"kv_schema"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// SetVersion records build metadata injected by main.
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

func currentVersion() VersionInfo {
	v := versionInfo
	v.KVSchema = kvstore.SchemaVersion()
	v.Go = runtime.Version()
	v.Platform = runtime.GOOS + "/" + runtime.GOARCH
	return v
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build and storage format versions",
		Long: `Print the toolbox release, the commit it was built from, and the
key-value schema version this binary migrates data directories to.

A data directory written by a newer schema refuses to open until toolbox is
upgraded. Older directories are migrated in place on first use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := currentVersion()
			if jsonOutput() {
				return printJSON(cmd, v)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "toolbox %s (%s, built %s)\n", v.Version, v.Commit, v.Date)
			fmt.Fprintf(out, "  kv schema  v%d\n", v.KVSchema)
			fmt.Fprintf(out, "  runtime    %s %s\n", v.Go, v.Platform)
			return nil
		},
	}

	return cmd
}
