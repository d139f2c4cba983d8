// ABOUTME: Named backups of the export bundle kept in the key-value store
// ABOUTME: Backups can be listed, restored through import, and deleted
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/harper/toolbox/internal/storage/kvstore"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

// ErrCollectionsUnavailable means the key-value store could not be opened.
var ErrCollectionsUnavailable = errors.New("key-value collections unavailable")

// Backup is a stored export bundle.
type Backup struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Backend   Kind      `json:"backend"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Bundle    string    `json:"-"`
}

func (m *Manager) collections(ctx context.Context) (*kvstore.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, err := m.keyValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollectionsUnavailable, err)
	}
	return store, nil
}

// SaveBackup exports the current data and stores it under label.
func (m *Manager) SaveBackup(ctx context.Context, label string) (Backup, error) {
	store, err := m.collections(ctx)
	if err != nil {
		return Backup{}, err
	}
	bundle, err := m.ExportData(ctx)
	if err != nil {
		return Backup{}, err
	}

	b := Backup{
		Label:     label,
		Backend:   m.Kind(),
		CreatedAt: m.opts.Now().UTC(),
		Size:      int64(len(bundle)),
		Bundle:    bundle,
	}
	key, err := store.Add(ctx, kvstore.CollectionBackups, kvstore.Record{
		"label":      b.Label,
		"backend":    string(b.Backend),
		"created_at": sqlite.FormatTime(b.CreatedAt),
		"size":       b.Size,
		"bundle":     b.Bundle,
	})
	if err != nil {
		return Backup{}, fmt.Errorf("failed to save backup: %w", err)
	}
	b.ID, _ = key.(int64)
	return b, nil
}

// Backups lists stored backups, newest first.
func (m *Manager) Backups(ctx context.Context) ([]Backup, error) {
	store, err := m.collections(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := store.GetAll(ctx, kvstore.CollectionBackups)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]Backup, 0, len(recs))
	for _, rec := range recs {
		backups = append(backups, backupFromRecord(rec))
	}
	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].ID > backups[j].ID
	})
	return backups, nil
}

// RestoreBackup imports the bundle stored under id.
func (m *Manager) RestoreBackup(ctx context.Context, id int64) error {
	store, err := m.collections(ctx)
	if err != nil {
		return err
	}
	rec, err := store.Get(ctx, kvstore.CollectionBackups, id)
	if err != nil {
		return fmt.Errorf("failed to load backup %d: %w", id, err)
	}
	return m.ImportData(ctx, backupFromRecord(rec).Bundle)
}

// DeleteBackup removes a stored backup.
func (m *Manager) DeleteBackup(ctx context.Context, id int64) error {
	store, err := m.collections(ctx)
	if err != nil {
		return err
	}
	if _, err := store.Get(ctx, kvstore.CollectionBackups, id); err != nil {
		return fmt.Errorf("failed to delete backup %d: %w", id, err)
	}
	return store.Delete(ctx, kvstore.CollectionBackups, id)
}

func backupFromRecord(rec kvstore.Record) Backup {
	b := Backup{}
	b.ID, _ = rec["id"].(int64)
	b.Label, _ = rec["label"].(string)
	b.Bundle, _ = rec["bundle"].(string)
	b.Size, _ = rec["size"].(int64)
	backend, _ := rec["backend"].(string)
	b.Backend = Kind(backend)
	if s, ok := rec["created_at"].(string); ok {
		b.CreatedAt, _ = sqlite.ParseTime(s)
	}
	return b
}
