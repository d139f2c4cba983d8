// ABOUTME: Badger key layout for collections, records, indexes, and counters
// ABOUTME: Encodes keys so byte order matches string and numeric order
package kvstore

import (
	"encoding/json"
	"fmt"
	"math"
)

const sep = "\x00"

// Key prefixes for different entity types
const (
	schemaPrefix  = "s" + sep
	recordPrefix  = "r" + sep
	indexPrefix   = "i" + sep
	counterPrefix = "q" + sep
)

var versionKey = []byte(schemaPrefix + "version")

func collectionDefKey(name string) []byte {
	return []byte(schemaPrefix + "col" + sep + name)
}

func collectionDefPrefix() []byte {
	return []byte(schemaPrefix + "col" + sep)
}

func recordsPrefix(col string) []byte {
	return []byte(recordPrefix + col + sep)
}

func recordKey(col, encKey string) []byte {
	return []byte(recordPrefix + col + sep + encKey)
}

func indexesPrefix(col string) []byte {
	return []byte(indexPrefix + col + sep)
}

func indexValuePrefix(col, index, encValue string) []byte {
	return []byte(indexPrefix + col + sep + index + sep + encValue + sep)
}

func indexEntryKey(col, index, encValue, encKey string) []byte {
	return append(indexValuePrefix(col, index, encValue), encKey...)
}

func counterKey(col string) []byte {
	return []byte(counterPrefix + col)
}

// encodeValue produces an order-preserving string for a key or index value.
// Numbers sort numerically (sign bit flipped, fixed width); strings sort
// bytewise after all numbers.
func encodeValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return "s" + x, nil
	case bool:
		if x {
			return "b1", nil
		}
		return "b0", nil
	case int:
		return encodeInt(int64(x)), nil
	case int32:
		return encodeInt(int64(x)), nil
	case int64:
		return encodeInt(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return "", fmt.Errorf("integer %d out of range", x)
		}
		return encodeInt(int64(x)), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("non-integral number %v cannot be a key", x)
		}
		return encodeInt(int64(x)), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return "", fmt.Errorf("non-integral number %v cannot be a key", x)
		}
		return encodeInt(n), nil
	case nil:
		return "", fmt.Errorf("key value is missing")
	}
	return "", fmt.Errorf("unsupported key type %T", v)
}

func encodeInt(n int64) string {
	return fmt.Sprintf("n%020d", uint64(n)^(1<<63))
}
