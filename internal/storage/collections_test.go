// ABOUTME: Tests for key-value snapshots taken through the manager
// ABOUTME: Importing must replace the live database, not be overwritten by it
package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionsSnapshotReloadsDatabase(t *testing.T) {
	ctx := context.Background()

	src := newTestManager(t, Options{AppName: "notes"})
	require.NoError(t, src.Initialize(ctx))
	require.NoError(t, src.InitializeAppTables(ctx, "notes", notesSchema))
	_, err := src.Execute(ctx, "INSERT INTO notes (id, body) VALUES (?, ?)", "n1", "from snapshot")
	require.NoError(t, err)

	snap, err := src.ExportCollections(ctx)
	require.NoError(t, err)

	dst := newTestManager(t, Options{AppName: "notes"})
	require.NoError(t, dst.Initialize(ctx))
	require.NoError(t, dst.InitializeAppTables(ctx, "notes", notesSchema))
	_, err = dst.Execute(ctx, "INSERT INTO notes (id, body) VALUES (?, ?)", "n2", "local only")
	require.NoError(t, err)

	require.NoError(t, dst.ImportCollections(ctx, snap))

	rows, err := dst.Query(ctx, "SELECT id, body FROM notes ORDER BY id")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "from snapshot", rows[0].String("body"))

	// later writes build on the reloaded database
	_, err = dst.Execute(ctx, "INSERT INTO notes (id, body) VALUES (?, ?)", "n3", "after import")
	require.NoError(t, err)
	again, err := dst.ExportCollections(ctx)
	require.NoError(t, err)
	require.Len(t, again.Collections["images"], 1)
	assert.Equal(t, "notes", again.Collections["images"][0]["name"])

	rows, err = dst.Query(ctx, "SELECT id FROM notes ORDER BY id")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCollectionsNeedKeyValueStore(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Options{KVDisabled: true})
	require.NoError(t, m.Initialize(ctx))

	_, err := m.ExportCollections(ctx)
	assert.ErrorIs(t, err, ErrCollectionsUnavailable)
}
