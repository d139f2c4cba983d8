// ABOUTME: Directory-backed persistence of the relational image as <app>.db
// ABOUTME: Saves overwrite the file atomically through a temp file and rename
package dirfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/harper/toolbox/internal/storage/sqlite"
)

// Backend stores one database file inside a granted directory.
type Backend struct {
	handle  Handle
	appName string
}

// New returns a backend writing <appName>.db inside the handle's directory.
func New(h Handle, appName string) *Backend {
	return &Backend{handle: h, appName: appName}
}

// Handle returns the granted directory.
func (b *Backend) Handle() Handle {
	return b.handle
}

// FileName is the database file name inside the directory.
func (b *Backend) FileName() string {
	return b.appName + ".db"
}

// Path is the full path of the database file.
func (b *Backend) Path() string {
	return filepath.Join(b.handle.Path, b.FileName())
}

// LoadOrCreate returns the stored image. When no file exists yet, an empty
// database image is created and written immediately.
func (b *Backend) LoadOrCreate(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.Path())
	if err == nil && len(data) > 0 {
		return data, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read database file: %w", err)
	}

	engine, err := sqlite.OpenEngine(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = engine.Close() }()

	image, err := engine.Image(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.Save(ctx, image); err != nil {
		return nil, err
	}
	return image, nil
}

// Save overwrites the database file with image.
func (b *Backend) Save(ctx context.Context, image []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.handle.Path, "."+b.FileName()+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(image); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write database file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync database file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close database file: %w", err)
	}
	if err := os.Rename(tmpName, b.Path()); err != nil {
		return fmt.Errorf("failed to replace database file: %w", err)
	}
	return nil
}

// Size returns the database file size, or 0 when it does not exist.
func (b *Backend) Size() int64 {
	info, err := os.Stat(b.Path())
	if err != nil {
		return 0
	}
	return info.Size()
}
