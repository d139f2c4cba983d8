// ABOUTME: Restore of a SQL dump into the relational engine
// ABOUTME: Splits statements outside quotes and replays them in document order
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// RestoreMode selects whether a restore replaces or merges table contents.
type RestoreMode string

const (
	// RestoreReplace clears each table in the bundle before loading its rows.
	RestoreReplace RestoreMode = "replace"
	// RestoreMerge executes the bundle as-is; existing rows stay.
	RestoreMerge RestoreMode = "merge"
)

// ParseRestoreMode validates a mode name; "" means replace.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RestoreReplace:
		return RestoreReplace, nil
	case RestoreMerge:
		return RestoreMerge, nil
	}
	return "", fmt.Errorf("unknown restore mode %q (want replace or merge)", s)
}

// Executor runs one mutating statement.
type Executor interface {
	Execute(ctx context.Context, query string, args ...any) (Result, error)
}

// RestoreOptions controls Restore.
type RestoreOptions struct {
	Mode RestoreMode
	// Allowed reports whether a table may be created or written. Nil allows every table.
	Allowed func(table string) bool
}

// RestoreStats summarizes a restore.
type RestoreStats struct {
	Statements int
	Cleared    []string
	Rows       int64
}

// StatementError reports which statement of a bundle failed.
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	stmt := e.Statement
	if len(stmt) > 80 {
		stmt = stmt[:77] + "..."
	}
	return fmt.Sprintf("statement %d (%s): %v", e.Index, stmt, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

const identPattern = `("(?:[^"]|"")+"|\[[^\]]+\]|` + "`[^`]+`" + `|[A-Za-z_][A-Za-z0-9_$]*)`

var (
	createTableRe = regexp.MustCompile(`(?is)^CREATE\s+(?:TEMP(?:ORARY)?\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + identPattern)
	createIndexRe = regexp.MustCompile(`(?is)^CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?` + identPattern + `\s+ON\s+` + identPattern)
	insertRe      = regexp.MustCompile(`(?is)^(?:INSERT|REPLACE)(?:\s+OR\s+[A-Z]+)?\s+INTO\s+` + identPattern)
)

// ErrUnsupportedStatement is returned for bundle statements other than
// CREATE TABLE, CREATE INDEX and INSERT.
var ErrUnsupportedStatement = errors.New("statement is not allowed in a bundle")

// Restore executes a dump statement by statement. Every statement is checked
// before the first one runs, so a rejected bundle changes nothing. There is no
// transaction around execution: when a statement fails, tables before it are
// already reloaded and tables after it are untouched.
func Restore(ctx context.Context, exec Executor, text string, opts RestoreOptions) (RestoreStats, error) {
	var stats RestoreStats
	if opts.Mode == "" {
		opts.Mode = RestoreReplace
	}
	stmts := SplitStatements(text)
	if err := CheckBundle(stmts, opts.Allowed); err != nil {
		return stats, err
	}
	cleared := map[string]bool{}

	clearTable := func(table string) error {
		if cleared[table] {
			return nil
		}
		cleared[table] = true
		if _, err := exec.Execute(ctx, "DELETE FROM "+QuoteIdent(table)); err != nil {
			return err
		}
		stats.Cleared = append(stats.Cleared, table)
		return nil
	}

	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if m := createTableRe.FindStringSubmatch(stmt); m != nil {
			stmt = ensureIfNotExists(stmt)
			if _, err := exec.Execute(ctx, stmt); err != nil {
				return stats, &StatementError{Index: i + 1, Statement: stmt, Err: err}
			}
			stats.Statements++
			if opts.Mode == RestoreReplace {
				if err := clearTable(unquoteIdent(m[1])); err != nil {
					return stats, &StatementError{Index: i + 1, Statement: stmt, Err: err}
				}
			}
			continue
		}

		if m := insertRe.FindStringSubmatch(stmt); m != nil && opts.Mode == RestoreReplace {
			if err := clearTable(unquoteIdent(m[1])); err != nil {
				return stats, &StatementError{Index: i + 1, Statement: stmt, Err: err}
			}
		}

		res, err := exec.Execute(ctx, stmt)
		if err != nil {
			return stats, &StatementError{Index: i + 1, Statement: stmt, Err: err}
		}
		stats.Statements++
		if insertRe.MatchString(stmt) {
			stats.Rows += res.Changes
		}
	}
	return stats, nil
}

// CheckBundle verifies that every statement is a CREATE TABLE, CREATE INDEX
// or INSERT and, when allowed is non-nil, that its table is allowed.
func CheckBundle(stmts []string, allowed func(table string) bool) error {
	for i, stmt := range stmts {
		table, ok := targetTable(stmt)
		if !ok {
			return &StatementError{Index: i + 1, Statement: stmt, Err: ErrUnsupportedStatement}
		}
		if allowed != nil && !allowed(table) {
			return &StatementError{Index: i + 1, Statement: stmt, Err: fmt.Errorf("%w: %s", ErrUndeclaredTable, table)}
		}
	}
	return nil
}

// targetTable returns the table a bundle statement writes to, or ok=false
// for any other kind of statement.
func targetTable(stmt string) (string, bool) {
	if m := createTableRe.FindStringSubmatch(stmt); m != nil {
		return unquoteIdent(m[1]), true
	}
	if m := createIndexRe.FindStringSubmatch(stmt); m != nil {
		return unquoteIdent(m[2]), true
	}
	if m := insertRe.FindStringSubmatch(stmt); m != nil {
		return unquoteIdent(m[1]), true
	}
	return "", false
}

// SplitStatements splits SQL text on statement-ending semicolons. Semicolons
// inside quoted strings, quoted identifiers and comments do not split, and
// comments are dropped. Blank fragments are skipped.
func SplitStatements(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(text, i, c)
			cur.WriteString(text[i:end])
			i = end - 1
		case c == '[':
			end := strings.IndexByte(text[i:], ']')
			if end < 0 {
				cur.WriteString(text[i:])
				i = len(text)
				continue
			}
			cur.WriteString(text[i : i+end+1])
			i += end
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				i = len(text)
				continue
			}
			i += nl
			cur.WriteByte('\n')
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
				continue
			}
			i += end + 3
			cur.WriteByte(' ')
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

// closingQuote returns the index just past the quote that closes the one
// at start. A doubled quote is an escaped quote.
func closingQuote(text string, start int, q byte) int {
	for j := start + 1; j < len(text); j++ {
		if text[j] != q {
			continue
		}
		if j+1 < len(text) && text[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(text)
}

func unquoteIdent(s string) string {
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"':
			return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
		case s[0] == '`' && s[len(s)-1] == '`':
			return s[1 : len(s)-1]
		case s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}
