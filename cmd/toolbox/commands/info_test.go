// ABOUTME: Tests for info and dir commands
// ABOUTME: Checks backend reporting and directory selection through flags
package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInfoCmd(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "info")
	for _, want := range []string{"Backend:", "indexed-store", "todos"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "--backend", "in-memory", "--format", "json", "info")
	var payload struct {
		Info struct {
			Type      string `json:"type"`
			Unlimited bool   `json:"unlimited"`
		} `json:"info"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if payload.Info.Type != "in-memory" {
		t.Errorf("Type = %q, want in-memory", payload.Info.Type)
	}
	if payload.Info.Unlimited {
		t.Error("in-memory storage should have a ceiling")
	}
}

func TestDirSelectAndStatus(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	out := mustRun(t, "dir", "status")
	if !strings.Contains(out, "No storage directory selected") {
		t.Errorf("status before select = %q", out)
	}

	out = mustRun(t, "--dir", dir, "dir", "select")
	if !strings.Contains(out, "Storage directory selected: "+filepath.Base(dir)) {
		t.Errorf("select output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "toolbox.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	// a later run remembers the folder but must be granted again
	out = mustRun(t, "dir", "status")
	if !strings.Contains(out, filepath.Base(dir)) || !strings.Contains(out, "needs permission") {
		t.Errorf("status after select = %q", out)
	}
}

func TestDirSelectCanceled(t *testing.T) {
	setupEnv(t)

	// an empty prompt answer cancels selection
	out := mustRun(t, "dir", "select")
	if !strings.Contains(out, "Directory not selected") {
		t.Errorf("select output = %q", out)
	}
}

func TestDirectoryBackendPersists(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	mustRun(t, "--backend", "directory-file", "--dir", dir, "todo", "add", "stored in folder")
	out := mustRun(t, "--backend", "directory-file", "--dir", dir, "todo", "list")
	if !strings.Contains(out, "stored in folder") {
		t.Errorf("list = %q", out)
	}

	// the indexed store never saw the todo
	if out := mustRun(t, "todo", "list"); strings.Contains(out, "stored in folder") {
		t.Errorf("indexed store list = %q", out)
	}
}
