// ABOUTME: Tests for the in-memory SQLite engine
// ABOUTME: Verifies query/execute, image serialization, and table listing
package sqlite

import (
	"context"
	"testing"
	"time"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS todos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todos_completed ON todos(completed);

CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    body TEXT,
    score REAL,
    data BLOB
);
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := OpenEngine(context.Background(), nil)
	if err != nil {
		t.Fatalf("OpenEngine() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	if err := e.ExecScript(context.Background(), testSchema); err != nil {
		t.Fatalf("ExecScript() error = %v", err)
	}
	return e
}

func TestOpenEngine(t *testing.T) {
	e, err := OpenEngine(context.Background(), nil)
	if err != nil {
		t.Fatalf("OpenEngine() error = %v", err)
	}
	defer func() { _ = e.Close() }()

	if e.Conn() == nil {
		t.Error("Conn() should not be nil")
	}
}

func TestExecuteAndQuery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	res, err := e.Execute(ctx, "INSERT INTO todos (text, completed, created_at) VALUES (?, ?, ?)",
		"Buy milk", 0, "2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Changes != 1 {
		t.Errorf("Changes = %d, want 1", res.Changes)
	}
	if res.LastInsertID != 1 {
		t.Errorf("LastInsertID = %d, want 1", res.LastInsertID)
	}

	rows, err := e.Query(ctx, "SELECT * FROM todos")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].String("text") != "Buy milk" {
		t.Errorf("text = %q, want %q", rows[0].String("text"), "Buy milk")
	}
	if rows[0].Bool("completed") {
		t.Error("completed should be false")
	}
}

func TestQueryEmptyReturnsNonNil(t *testing.T) {
	e := newTestEngine(t)

	rows, err := e.Query(context.Background(), "SELECT * FROM todos")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if rows == nil {
		t.Error("Query() should return an empty slice, not nil")
	}
}

func TestParametersAreNotInterpolated(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	hostile := "x'); DROP TABLE todos; --"
	if _, err := e.Execute(ctx, "INSERT INTO todos (text, created_at) VALUES (?, ?)", hostile, "2024-01-01T00:00:00Z"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	rows, err := e.Query(ctx, "SELECT text FROM todos")
	if err != nil {
		t.Fatalf("todos table should still exist: %v", err)
	}
	if len(rows) != 1 || rows[0].String("text") != hostile {
		t.Errorf("rows = %v, want the literal text stored", rows)
	}
}

func TestExecuteMalformedSQL(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.Execute(context.Background(), "INSER INTO todos VALUES (1)"); err == nil {
		t.Error("Execute() should fail on malformed SQL")
	}
}

func TestImageRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	for _, text := range []string{"one", "two", "three"} {
		if _, err := e.Execute(ctx, "INSERT INTO todos (text, created_at) VALUES (?, ?)", text, "2024-01-01T00:00:00Z"); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	image, err := e.Image(ctx)
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if len(image) == 0 {
		t.Fatal("Image() returned no bytes")
	}

	fresh, err := OpenEngine(ctx, image)
	if err != nil {
		t.Fatalf("OpenEngine(image) error = %v", err)
	}
	defer func() { _ = fresh.Close() }()

	rows, err := fresh.Query(ctx, "SELECT text FROM todos ORDER BY id")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[2].String("text") != "three" {
		t.Errorf("rows[2].text = %q, want three", rows[2].String("text"))
	}

	// the loaded engine is writable and independent of the original
	if _, err := fresh.Execute(ctx, "DELETE FROM todos"); err != nil {
		t.Fatalf("Execute() on loaded engine error = %v", err)
	}
	orig, _ := e.Query(ctx, "SELECT COUNT(*) AS n FROM todos")
	if orig[0].Int("n") != 3 {
		t.Errorf("original count = %d, want 3", orig[0].Int("n"))
	}
}

func TestImageReloadAcrossEngines(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	if _, err := e.Execute(ctx, "INSERT INTO notes (id, body) VALUES (?, ?)", "n1", "kept"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	image, err := e.Image(ctx)
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}

	// each session loads the same bytes and shuts down cleanly
	for session := 1; session <= 2; session++ {
		loaded, err := OpenEngine(ctx, image)
		if err != nil {
			t.Fatalf("session %d: OpenEngine(image) error = %v", session, err)
		}
		rows, err := loaded.Query(ctx, "SELECT body FROM notes WHERE id = ?", "n1")
		if err != nil {
			t.Fatalf("session %d: Query() error = %v", session, err)
		}
		if len(rows) != 1 || rows[0].String("body") != "kept" {
			t.Errorf("session %d: rows = %v, want one row with body kept", session, rows)
		}
		if _, err := loaded.Execute(ctx, "INSERT INTO notes (id, body) VALUES (?, ?)", "n2", "scratch"); err != nil {
			t.Fatalf("session %d: Execute() error = %v", session, err)
		}
		if err := loaded.Close(); err != nil {
			t.Fatalf("session %d: Close() error = %v", session, err)
		}
	}
}

func TestLoadRejectsCorruptImage(t *testing.T) {
	ctx := context.Background()
	if _, err := OpenEngine(ctx, []byte("definitely not a database file, just some text padding it out")); err == nil {
		t.Error("OpenEngine() should fail on a corrupt image")
	}
}

func TestImageOfEmptyEngine(t *testing.T) {
	ctx := context.Background()
	e, err := OpenEngine(ctx, nil)
	if err != nil {
		t.Fatalf("OpenEngine() error = %v", err)
	}
	defer func() { _ = e.Close() }()

	image, err := e.Image(ctx)
	if err != nil {
		t.Fatalf("Image() of empty engine error = %v", err)
	}
	if len(image) == 0 {
		t.Error("empty engine should still produce a header page")
	}
}

func TestTablesInCreationOrder(t *testing.T) {
	e := newTestEngine(t)

	tables, err := e.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("len(tables) = %d, want 2 (sqlite_sequence excluded): %v", len(tables), tables)
	}
	if tables[0].Name != "todos" || tables[1].Name != "notes" {
		t.Errorf("tables = %v, want todos then notes", tables)
	}

	idx, err := e.Indexes(context.Background(), "todos")
	if err != nil {
		t.Fatalf("Indexes() error = %v", err)
	}
	if len(idx) != 1 {
		t.Errorf("len(indexes) = %d, want 1", len(idx))
	}
}

func TestRowConversions(t *testing.T) {
	ts := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	row := Row{
		"n":     int64(7),
		"flag":  int64(1),
		"off":   int64(0),
		"f":     2.5,
		"s":     "hello",
		"b":     []byte("bytes"),
		"null":  nil,
		"stamp": FormatTime(ts),
	}

	if row.Int("n") != 7 {
		t.Errorf("Int(n) = %d, want 7", row.Int("n"))
	}
	if !row.Bool("flag") || row.Bool("off") {
		t.Error("Bool conversion of 0/1 failed")
	}
	if row.Float("f") != 2.5 {
		t.Errorf("Float(f) = %v, want 2.5", row.Float("f"))
	}
	if row.String("b") != "bytes" {
		t.Errorf("String(b) = %q, want bytes", row.String("b"))
	}
	if row.String("null") != "" || !row.IsNull("null") {
		t.Error("NULL column should read as empty and IsNull")
	}
	if !row.Time("stamp").Equal(ts) {
		t.Errorf("Time(stamp) = %v, want %v", row.Time("stamp"), ts)
	}
}

func TestFormatTimeSortsChronologically(t *testing.T) {
	earlier := FormatTime(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	later := FormatTime(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC))
	if !(earlier < later) {
		t.Errorf("%q should sort before %q", earlier, later)
	}
}
