// ABOUTME: Tests for root CLI command and global flags
// ABOUTME: Verifies command structure, subcommands, and flag handling
package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// setupEnv points the CLI at a fresh data directory for one test
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TOOLBOX_DATA_DIR", dir)
	t.Setenv("TOOLBOX_APP_NAME", "toolbox")
	t.Setenv("TOOLBOX_BACKEND", "")
	t.Setenv("TOOLBOX_KV_IN_MEMORY", "")
	t.Setenv("TOOLBOX_KV_DISABLED", "")
	t.Setenv("TOOLBOX_IMPORT_MODE", "")
	t.Setenv("TOOLBOX_LOG_LEVEL", "error")
	return dir
}

// runCLI executes the root command with args and returns combined output
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return output.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("toolbox %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.Use != "toolbox" {
		t.Errorf("Use = %q, want %q", cmd.Use, "toolbox")
	}
	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}
	if !strings.Contains(cmd.Long, "indexed-store") {
		t.Error("Long description should list the backends")
	}
	if !cmd.SilenceUsage {
		t.Error("SilenceUsage should be true to prevent usage on errors")
	}
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	cmd := NewRootCmd()

	tests := []struct {
		flagName  string
		shorthand string
		defValue  string
	}{
		{"verbose", "v", "false"},
		{"quiet", "q", "false"},
		{"format", "", "auto"},
		{"backend", "", ""},
		{"dir", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := cmd.PersistentFlags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("--%s flag not found", tt.flagName)
			}
			if tt.shorthand != "" && flag.Shorthand != tt.shorthand {
				t.Errorf("--%s shorthand = %q, want %q", tt.flagName, flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("--%s default = %q, want %q", tt.flagName, flag.DefValue, tt.defValue)
			}
		})
	}
}

func TestRootCmd_MutuallyExclusiveFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectError bool
	}{
		{"verbose only", []string{"--verbose", "version"}, false},
		{"quiet only", []string{"--quiet", "version"}, false},
		{"verbose and quiet", []string{"--verbose", "--quiet", "version"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if tt.expectError && err == nil {
				t.Error("Expected error for mutually exclusive flags, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	expected := []string{
		"info", "export", "import", "dir", "todo", "pomodoro",
		"countdown", "chat", "backup", "kv", "mcp", "version",
	}

	for _, name := range expected {
		t.Run(name, func(t *testing.T) {
			for _, sub := range cmd.Commands() {
				if sub.Use == name || strings.HasPrefix(sub.Use, name+" ") {
					return
				}
			}
			t.Errorf("Subcommand %q not found", name)
		})
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	out, _ := runCLI(t, "--help")

	for _, want := range []string{"Usage:", "Available Commands:", "Flags:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Help output should contain %q", want)
		}
	}
}

func TestRootCmd_InvalidBackend(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, "--backend", "cloud", "info")
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
	if !strings.Contains(err.Error(), "cloud") {
		t.Errorf("error = %v, want it to name the backend", err)
	}
}
