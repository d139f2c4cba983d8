// ABOUTME: Tests for directory pickers and the directory-backed database file
// ABOUTME: Verifies cancellation, load-or-create, and save round trips
package dirfs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/toolbox/internal/storage/sqlite"
)

func TestSelectWithoutPicker(t *testing.T) {
	_, err := Select(context.Background(), nil)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Select(nil) error = %v, want ErrUnsupported", err)
	}
}

func TestStaticPicker(t *testing.T) {
	dir := t.TempDir()

	h, err := Select(context.Background(), StaticPicker{Path: dir})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if h.Name != filepath.Base(dir) {
		t.Errorf("Name = %q, want %q", h.Name, filepath.Base(dir))
	}

	_, err = Select(context.Background(), StaticPicker{})
	if !errors.Is(err, ErrPickerCanceled) {
		t.Errorf("empty StaticPicker error = %v, want ErrPickerCanceled", err)
	}
}

func TestPromptPicker(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"path", dir + "\n", nil},
		{"path without newline", dir, nil},
		{"blank cancels", "\n", ErrPickerCanceled},
		{"eof cancels", "", ErrPickerCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := PromptPicker{In: strings.NewReader(tt.input), Out: &out}
			got, err := p.PickDirectory(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PickDirectory() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != dir {
				t.Errorf("PickDirectory() = %q, want %q", got, dir)
			}
			if !strings.Contains(out.String(), "Directory") {
				t.Errorf("prompt not written, got %q", out.String())
			}
		})
	}
}

func TestGrantRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Grant(file); err == nil {
		t.Error("Grant() on a file should fail")
	}
	if _, err := Grant(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Grant() on a missing path should fail")
	}
}

func TestLoadOrCreateCreatesFile(t *testing.T) {
	ctx := context.Background()
	h, err := Grant(t.TempDir())
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	b := New(h, "toolbox")

	if b.Size() != 0 {
		t.Errorf("Size() before create = %d, want 0", b.Size())
	}

	image, err := b.LoadOrCreate(ctx)
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if len(image) == 0 {
		t.Fatal("LoadOrCreate() returned an empty image")
	}
	if filepath.Base(b.Path()) != "toolbox.db" {
		t.Errorf("Path() = %s, want toolbox.db", b.Path())
	}
	if b.Size() != int64(len(image)) {
		t.Errorf("Size() = %d, want %d", b.Size(), len(image))
	}

	// the created file is a loadable database
	e, err := sqlite.OpenEngine(ctx, image)
	if err != nil {
		t.Fatalf("OpenEngine() error = %v", err)
	}
	_ = e.Close()
}

func TestSaveThenLoadReproducesRows(t *testing.T) {
	ctx := context.Background()
	h, err := Grant(t.TempDir())
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	b := New(h, "todo")

	image, err := b.LoadOrCreate(ctx)
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	live, err := sqlite.OpenEngine(ctx, image)
	if err != nil {
		t.Fatalf("OpenEngine() error = %v", err)
	}
	defer func() { _ = live.Close() }()

	if err := live.ExecScript(ctx, "CREATE TABLE todos (id INTEGER PRIMARY KEY, text TEXT)"); err != nil {
		t.Fatalf("ExecScript() error = %v", err)
	}
	if _, err := live.Execute(ctx, "INSERT INTO todos (text) VALUES (?)", "Buy milk"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	image, err = live.Image(ctx)
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if err := b.Save(ctx, image); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// a second backend over the same directory sees the saved rows
	stored, err := New(h, "todo").LoadOrCreate(ctx)
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	fresh, err := sqlite.OpenEngine(ctx, stored)
	if err != nil {
		t.Fatalf("OpenEngine() error = %v", err)
	}
	defer func() { _ = fresh.Close() }()

	rows, err := fresh.Query(ctx, "SELECT text FROM todos")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 1 || rows[0].String("text") != "Buy milk" {
		t.Errorf("rows = %v, want one Buy milk row", rows)
	}

	// no temp files are left behind
	entries, err := os.ReadDir(h.Path)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only todo.db", len(entries))
	}
}
