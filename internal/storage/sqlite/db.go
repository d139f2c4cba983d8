// ABOUTME: In-memory SQLite engine that every storage backend persists
// ABOUTME: Serializes the database image and loads it back through the backup API
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	driver "modernc.org/sqlite"
)

// ErrImageUnsupported is returned when the driver connection cannot
// serialize or deserialize the database image.
var ErrImageUnsupported = errors.New("sqlite driver does not support database images")

// ApplicationID is stamped into the header of every image this package creates ("TBOX").
const ApplicationID = 0x54424f58

// Row is one result row keyed by column name.
type Row map[string]any

// Result reports the effect of a mutating statement.
type Result struct {
	Changes      int64 `json:"changes"`
	LastInsertID int64 `json:"lastInsertRowid"`
}

// Table describes a user table and the SQL that created it.
type Table struct {
	Name string
	SQL  string
}

// Engine wraps an in-memory SQLite database. The whole database lives on a
// single connection, so the pool is pinned to exactly one.
type Engine struct {
	conn *sql.DB
}

type imageConn interface {
	Serialize() ([]byte, error)
	NewRestore(srcURI string) (*driver.Backup, error)
}

// OpenEngine creates an empty in-memory engine and, when image is non-empty,
// loads it as the database contents.
func OpenEngine(ctx context.Context, image []byte) (*Engine, error) {
	conn, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	e := &Engine{conn: conn}
	if len(image) > 0 {
		if err := e.Load(ctx, image); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return e, nil
	}

	// writing the header gives a fresh database its first page; an empty
	// database has nothing to serialize
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA application_id = %d", ApplicationID)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize database header: %w", err)
	}
	return e, nil
}

// Close closes the database. The image is lost unless it was saved first.
func (e *Engine) Close() error {
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// Conn returns the underlying sql.DB connection for advanced usage
func (e *Engine) Conn() *sql.DB {
	return e.conn
}

// Query runs a read statement with positional parameters.
func (e *Engine) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Execute runs a mutating statement with positional parameters.
func (e *Engine) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := e.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	changes, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return Result{Changes: changes, LastInsertID: lastID}, nil
}

// ExecScript runs a multi-statement script such as a schema definition.
func (e *Engine) ExecScript(ctx context.Context, script string) error {
	_, err := e.conn.ExecContext(ctx, script)
	return err
}

// Image serializes the whole database.
func (e *Engine) Image(ctx context.Context) ([]byte, error) {
	var image []byte
	err := e.raw(ctx, func(c imageConn) error {
		buf, err := c.Serialize()
		if err != nil {
			return err
		}
		image = buf
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize database: %w", err)
	}
	return image, nil
}

// Load replaces the database contents with a serialized image. The image is
// staged in a temporary file and copied page by page into the in-memory
// database, so no driver-owned buffer outlives the call.
func (e *Engine) Load(ctx context.Context, image []byte) error {
	path, err := stageImage(image)
	if err != nil {
		return fmt.Errorf("failed to load database image: %w", err)
	}
	defer func() { _ = os.Remove(path) }()

	err = e.raw(ctx, func(c imageConn) error {
		restore, err := c.NewRestore(path)
		if err != nil {
			return err
		}
		for {
			more, err := restore.Step(-1)
			if err != nil {
				_ = restore.Finish()
				return err
			}
			if !more {
				break
			}
		}
		return restore.Finish()
	})
	if err != nil {
		return fmt.Errorf("failed to load database image: %w", err)
	}
	if _, err := e.conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return nil
}

func stageImage(image []byte) (string, error) {
	f, err := os.CreateTemp("", "toolbox-image-*.db")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (e *Engine) raw(ctx context.Context, fn func(imageConn) error) error {
	c, err := e.conn.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	return c.Raw(func(driverConn any) error {
		ic, ok := driverConn.(imageConn)
		if !ok {
			return ErrImageUnsupported
		}
		return fn(ic)
	})
}

// Tables lists user tables in creation order.
func (e *Engine) Tables(ctx context.Context) ([]Table, error) {
	rows, err := e.conn.QueryContext(ctx, `
		SELECT name, sql FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.SQL); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Indexes returns the creation SQL of explicit indexes on a table.
// Automatic indexes (primary keys, UNIQUE constraints) have no SQL and are skipped.
func (e *Engine) Indexes(ctx context.Context, table string) ([]string, error) {
	rows, err := e.conn.QueryContext(ctx, `
		SELECT sql FROM sqlite_master
		WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL
		ORDER BY rowid
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, rows.Err()
}

// QuoteIdent quotes an identifier for interpolation into SQL text.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
