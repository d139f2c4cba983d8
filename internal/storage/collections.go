// ABOUTME: Whole-store snapshots of the key-value collections
// ABOUTME: Importing reloads the database when it lives in the same store
package storage

import (
	"context"
	"fmt"

	"github.com/harper/toolbox/internal/storage/kvstore"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

// ExportCollections snapshots every key-value collection.
func (m *Manager) ExportCollections(ctx context.Context) (*kvstore.Snapshot, error) {
	store, err := m.collections(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// the stored image must match the live database
	if m.initialized {
		if err := m.persistLocked(ctx); err != nil {
			return nil, err
		}
	}
	return store.ExportAll(ctx)
}

// ImportCollections replaces every key-value collection from a snapshot.
// When the indexed store is active the database is reloaded from the
// imported image so a later persist does not overwrite it.
func (m *Manager) ImportCollections(ctx context.Context, snap *kvstore.Snapshot) error {
	store, err := m.collections(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := store.ImportAll(ctx, snap); err != nil {
		return fmt.Errorf("failed to import collections: %w", err)
	}
	if m.active == nil || m.active.Kind() != KindIndexedStore {
		return nil
	}

	image, err := m.active.Load(ctx)
	if err != nil {
		return err
	}
	engine, err := m.openWithSchemas(ctx, image)
	if err != nil {
		return err
	}
	if m.engine != nil {
		_ = m.engine.Close()
	}
	m.engine = engine
	m.logger.Info("database reloaded from imported collections", "app", m.opts.AppName)
	return m.persistLocked(ctx)
}

// openWithSchemas opens an engine on image and reapplies every app schema
// declared in this session.
func (m *Manager) openWithSchemas(ctx context.Context, image []byte) (*sqlite.Engine, error) {
	engine, err := sqlite.OpenEngine(ctx, image)
	if err != nil {
		return nil, err
	}
	for _, s := range m.schemas {
		if err := engine.ExecScript(ctx, s.sql); err != nil {
			_ = engine.Close()
			return nil, fmt.Errorf("failed to create %s tables: %w", s.name, err)
		}
	}
	return engine, nil
}
