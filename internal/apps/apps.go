// ABOUTME: Shared contract between the app facades and the storage manager
// ABOUTME: Facades build SQL with squirrel and run it through a Store
package apps

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/harper/toolbox/internal/storage"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

// Store is the part of the storage manager a facade uses.
type Store interface {
	Initialize(ctx context.Context, preferred ...storage.Kind) error
	InitializeAppTables(ctx context.Context, appName, schemaSQL string) error
	Query(ctx context.Context, query string, args ...any) ([]sqlite.Row, error)
	Execute(ctx context.Context, query string, args ...any) (sqlite.Result, error)
}

// Setup initializes the store and creates an app's tables.
func Setup(ctx context.Context, s Store, appName, schemaSQL string) error {
	if err := s.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := s.InitializeAppTables(ctx, appName, schemaSQL); err != nil {
		return err
	}
	return nil
}

// Query runs a built SELECT.
func Query(ctx context.Context, s Store, b sq.Sqlizer) ([]sqlite.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, query, args...)
}

// Exec runs a built INSERT, UPDATE or DELETE.
func Exec(ctx context.Context, s Store, b sq.Sqlizer) (sqlite.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return sqlite.Result{}, err
	}
	return s.Execute(ctx, query, args...)
}

// First returns the first row of a built SELECT, or ok=false when there is none.
func First(ctx context.Context, s Store, b sq.SelectBuilder) (sqlite.Row, bool, error) {
	rows, err := Query(ctx, s, b.Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	return rows[0], true, nil
}
