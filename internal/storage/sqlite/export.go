// ABOUTME: Export of the relational image as a portable SQL dump
// ABOUTME: Emits CREATE statements and one literal INSERT per row, per table
package sqlite

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownTable is returned when a declared table does not exist in the image.
	ErrUnknownTable = errors.New("table does not exist")
	// ErrUndeclaredTable is returned when a statement targets a table outside
	// the declared schema list.
	ErrUndeclaredTable = errors.New("table is not declared")
)

// DumpHeader is written as comments at the top of an export bundle.
type DumpHeader struct {
	Tool       string
	App        string
	Backend    string
	ExportedAt time.Time
}

var createPrefix = regexp.MustCompile(`(?i)^\s*CREATE\s+(UNIQUE\s+)?(TABLE|INDEX)\s+(IF\s+NOT\s+EXISTS\s+)?`)

// Dump writes every listed table, in the given order, as SQL text. Only
// names in tables are interpolated, and always as quoted identifiers.
func Dump(ctx context.Context, e *Engine, tables []string, header DumpHeader) (string, error) {
	existing, err := e.Tables(ctx)
	if err != nil {
		return "", err
	}
	byName := make(map[string]Table, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}

	var b strings.Builder
	writeHeader(&b, header)

	for _, name := range tables {
		t, ok := byName[name]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownTable, name)
		}

		fmt.Fprintf(&b, "\n-- Table: %s\n", t.Name)
		b.WriteString(ensureIfNotExists(t.SQL))
		b.WriteString(";\n")

		indexes, err := e.Indexes(ctx, t.Name)
		if err != nil {
			return "", err
		}
		for _, idx := range indexes {
			b.WriteString(ensureIfNotExists(idx))
			b.WriteString(";\n")
		}

		if err := dumpRows(ctx, e, t, &b); err != nil {
			return "", fmt.Errorf("failed to dump table %s: %w", t.Name, err)
		}
	}

	return b.String(), nil
}

func writeHeader(b *strings.Builder, h DumpHeader) {
	tool := h.Tool
	if tool == "" {
		tool = "toolbox"
	}
	at := h.ExportedAt
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(b, "-- %s database export\n", tool)
	if h.App != "" {
		fmt.Fprintf(b, "-- app: %s\n", h.App)
	}
	if h.Backend != "" {
		fmt.Fprintf(b, "-- backend: %s\n", h.Backend)
	}
	fmt.Fprintf(b, "-- exported_at: %s\n", at.UTC().Format(time.RFC3339))
}

func dumpRows(ctx context.Context, e *Engine, t Table, b *strings.Builder) error {
	query := "SELECT * FROM " + QuoteIdent(t.Name)
	if !strings.Contains(strings.ToUpper(t.SQL), "WITHOUT ROWID") {
		query += " ORDER BY rowid"
	}

	rows, err := e.conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	prefix := "INSERT INTO " + QuoteIdent(t.Name) + " (" + strings.Join(quoted, ", ") + ") VALUES ("

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	literals := make([]string, len(cols))

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			literals[i] = Literal(v)
		}
		b.WriteString(prefix)
		b.WriteString(strings.Join(literals, ", "))
		b.WriteString(");\n")
	}
	return rows.Err()
}

// Literal renders a value as a SQL literal. Single quotes in text are doubled.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(x)
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return formatReal(x)
	case float32:
		return formatReal(float64(x))
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return quoteString(x.Format(time.RFC3339Nano))
	default:
		return quoteString(fmt.Sprint(x))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// formatReal keeps the REAL storage class on re-import by always carrying
// a decimal point or exponent.
func formatReal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NULL"
	case math.IsInf(f, 1):
		return "9e999"
	case math.IsInf(f, -1):
		return "-9e999"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func ensureIfNotExists(stmt string) string {
	stmt = strings.TrimRight(strings.TrimSpace(stmt), ";")
	loc := createPrefix.FindStringSubmatchIndex(stmt)
	if loc == nil {
		return stmt
	}
	unique := ""
	if loc[2] >= 0 {
		unique = "UNIQUE "
	}
	kind := strings.ToUpper(stmt[loc[4]:loc[5]])
	return "CREATE " + unique + kind + " IF NOT EXISTS " + stmt[loc[1]:]
}
