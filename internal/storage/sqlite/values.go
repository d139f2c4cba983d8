// ABOUTME: Conversions between SQLite storage classes and Go values
// ABOUTME: Booleans are 0/1 integers, timestamps are ISO-8601 text
package sqlite

import (
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is the ISO-8601 form stored in TEXT columns. Fixed width in
// UTC keeps lexicographic order equal to chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// BoolToInt converts a logical boolean to its stored form.
func BoolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// IntToBool converts a stored 0/1 integer back to a boolean.
func IntToBool(n int64) bool {
	return n != 0
}

// FormatTime renders t as stored timestamp text.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts stored timestamp text, including plain RFC 3339.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Int returns the column as an integer; NULL and unknown types yield 0.
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		return BoolToInt(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	}
	return 0
}

// Float returns the column as a float; NULL yields 0.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// Bool converts a stored 0/1 column to a logical boolean.
func (r Row) Bool(col string) bool {
	return r.Int(col) != 0
}

// String returns the column as text; NULL yields "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return FormatTime(v)
	default:
		return fmt.Sprint(v)
	}
}

// Time parses a stored timestamp column; NULL or bad text yields the zero time.
func (r Row) Time(col string) time.Time {
	if v, ok := r[col].(time.Time); ok {
		return v
	}
	t, err := ParseTime(r.String(col))
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsNull reports whether the column is SQL NULL or absent.
func (r Row) IsNull(col string) bool {
	return r[col] == nil
}
