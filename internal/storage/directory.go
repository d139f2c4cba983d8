// ABOUTME: Directory-file backend writing the relational image to <app>.db
// ABOUTME: Capacity is the file size; the filesystem is treated as unlimited
package storage

import (
	"context"
	"errors"

	"github.com/harper/toolbox/internal/storage/dirfs"
	"github.com/harper/toolbox/internal/storage/kvstore"
)

type directoryBackend struct {
	fs     *dirfs.Backend
	handle dirfs.Handle
}

func (b *directoryBackend) Kind() Kind { return KindDirectoryFile }

func (b *directoryBackend) Load(ctx context.Context) ([]byte, error) {
	return b.fs.LoadOrCreate(ctx)
}

func (b *directoryBackend) Persist(ctx context.Context, image []byte) error {
	return b.fs.Save(ctx, image)
}

func (b *directoryBackend) Info(context.Context, int64) Info {
	return Info{
		Type:      KindDirectoryFile,
		Location:  b.fs.Path(),
		Size:      b.fs.Size(),
		Unlimited: true,
	}
}

func (b *directoryBackend) Close() error { return nil }

// Meta keys recording a past directory grant. They only inform the user that
// access must be granted again; they cannot restore it.
const (
	flagDirectorySelected = "directory_selected"
	flagDirectoryName     = "directory_name"
)

// DirectoryStatus describes the directory grant for this session.
type DirectoryStatus struct {
	PreviouslySelected bool   `json:"previously_selected"`
	Name               string `json:"name,omitempty"`
	NeedsRegrant       bool   `json:"needs_regrant"`
	Active             bool   `json:"active"`
}

// SelectStorageDirectory asks the picker for a directory and switches the
// active backend to it. Cancellation and failures return false without an
// error; only a canceled context is returned as one. Existing data is not
// copied into the directory.
func (m *Manager) SelectStorageDirectory(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	h, err := dirfs.Select(ctx, m.opts.Picker)
	if errors.Is(err, dirfs.ErrPickerCanceled) {
		m.logger.Info("directory selection canceled")
		return false, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		m.logger.Warn("directory selection failed", "err", err)
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b := &directoryBackend{fs: dirfs.New(h, m.opts.AppName), handle: h}
	image, err := b.Load(ctx)
	if err != nil {
		m.logger.Warn("failed to open directory database", "path", b.fs.Path(), "err", err)
		return false, nil
	}
	engine, err := m.openWithSchemas(ctx, image)
	if err != nil {
		m.logger.Warn("failed to load directory database", "path", b.fs.Path(), "err", err)
		return false, nil
	}

	if m.engine != nil {
		_ = m.engine.Close()
	}
	if m.active != nil {
		_ = m.active.Close()
	}
	m.engine = engine
	m.active = b
	m.handle = &h
	m.initialized = true
	m.degraded = false

	if err := m.persistLocked(ctx); err != nil {
		m.logger.Warn("failed to save directory database", "err", err)
	}
	m.rememberDirectory(ctx, h)
	m.logger.Info("storage directory selected", "path", b.fs.Path())
	return true, nil
}

// DirectoryStatus reports whether a directory was granted in an earlier
// session and whether it must be granted again.
func (m *Manager) DirectoryStatus(ctx context.Context) DirectoryStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	selected, _ := m.flag(ctx, flagDirectorySelected).(bool)
	name, _ := m.flag(ctx, flagDirectoryName).(string)
	st := DirectoryStatus{
		PreviouslySelected: selected,
		Name:               name,
		Active:             m.active != nil && m.active.Kind() == KindDirectoryFile,
	}
	st.NeedsRegrant = selected && m.handle == nil
	return st
}

// adoptDirectory keeps the grant of a directory backend that attached
// successfully. Failed attempts never reach here.
func (m *Manager) adoptDirectory(ctx context.Context, b Backend) {
	d, ok := b.(*directoryBackend)
	if !ok || m.handle != nil {
		return
	}
	h := d.handle
	m.handle = &h
	m.rememberDirectory(ctx, h)
}

func (m *Manager) rememberDirectory(ctx context.Context, h dirfs.Handle) {
	m.setFlag(ctx, flagDirectorySelected, true)
	m.setFlag(ctx, flagDirectoryName, h.Name)
}

// flag reads a meta value from the key-value store, falling back to the
// in-process map when the store is unavailable.
func (m *Manager) flag(ctx context.Context, key string) any {
	if store, err := m.keyValue(ctx); err == nil {
		rec, err := store.Get(ctx, kvstore.CollectionMeta, key)
		if err == nil {
			return rec["value"]
		}
		if !errors.Is(err, kvstore.ErrNotFound) {
			m.logger.Debug("failed to read flag", "key", key, "err", err)
		}
	}
	return m.flags[key]
}

func (m *Manager) setFlag(ctx context.Context, key string, value any) {
	if store, err := m.keyValue(ctx); err == nil {
		_, err := store.Put(ctx, kvstore.CollectionMeta, kvstore.Record{"key": key, "value": value})
		if err == nil {
			return
		}
		m.logger.Debug("failed to write flag", "key", key, "err", err)
	}
	m.flags[key] = value
}
