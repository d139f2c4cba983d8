// ABOUTME: Shared helpers for CLI commands
// ABOUTME: Builds the storage manager from config and flags, formats output
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/config"
	"github.com/harper/toolbox/internal/storage"
	"github.com/harper/toolbox/internal/storage/dirfs"
)

// newLogger builds the stderr logger; --verbose and --quiet override the configured level
func newLogger(w io.Writer, level log.Level) *log.Logger {
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.ErrorLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "toolbox",
		ReportTimestamp: verbose,
	})
}

// loadConfig reads .env and the environment, then applies global flags
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openManager builds and initializes a storage manager; callers must Close it
func openManager(cmd *cobra.Command, mutate ...func(*storage.Options)) (*storage.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts := cfg.StorageOptions()
	opts.Logger = newLogger(cmd.ErrOrStderr(), cfg.Level())
	opts.Directory = dirFlag
	if dirFlag != "" {
		opts.Picker = dirfs.StaticPicker{Path: dirFlag}
	} else {
		opts.Picker = dirfs.PromptPicker{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	m := storage.NewManager(opts)
	var preferred []storage.Kind
	if kind, _ := storage.ParseKind(cfg.Backend); kind != "" {
		preferred = append(preferred, kind)
	}
	if err := m.Initialize(commandContext(cmd), preferred...); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	if m.Degraded() && !quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: no persistent storage available; changes will be lost on exit")
	}
	return m, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func jsonOutput() bool {
	return outputFormat == "json"
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", jsonData)
	return nil
}

// status prints an informational line unless --quiet is set
func status(cmd *cobra.Command, format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// parseID parses a positive integer argument
func parseID(s, name string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return id, nil
}
