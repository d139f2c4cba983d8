// ABOUTME: Transaction-scoped record, index, and schema operations
// ABOUTME: Every write keeps index entries consistent with the stored record
package kvstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/dgraph-io/badger/v3"
)

// Record is one stored object.
type Record map[string]any

// Tx is a read or read-write view of the store used by operations and migrations.
type Tx struct {
	txn           *badger.Txn
	defs          map[string]Collection
	schemaChanged bool
}

func (tx *Tx) collection(name string) (Collection, error) {
	c, ok := tx.defs[name]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

// CreateCollection declares a new collection.
func (tx *Tx) CreateCollection(c Collection) error {
	if c.Name == "" || c.KeyPath == "" {
		return fmt.Errorf("collection needs a name and a key path")
	}
	if _, ok := tx.defs[c.Name]; ok {
		return fmt.Errorf("%w: %s", ErrCollectionExists, c.Name)
	}
	if err := tx.writeDef(c); err != nil {
		return err
	}
	return nil
}

// DeleteCollection drops a collection with all of its records and indexes.
func (tx *Tx) DeleteCollection(name string) error {
	if _, err := tx.collection(name); err != nil {
		return err
	}
	for _, p := range [][]byte{recordsPrefix(name), indexesPrefix(name)} {
		if err := tx.deletePrefix(p); err != nil {
			return err
		}
	}
	if err := tx.txn.Delete(counterKey(name)); err != nil {
		return err
	}
	if err := tx.txn.Delete(collectionDefKey(name)); err != nil {
		return err
	}
	delete(tx.defs, name)
	tx.schemaChanged = true
	return nil
}

// CreateIndex adds an index to an existing collection and backfills it.
func (tx *Tx) CreateIndex(collection string, idx Index) error {
	c, err := tx.collection(collection)
	if err != nil {
		return err
	}
	if _, ok := c.index(idx.Name); ok {
		return fmt.Errorf("index %s already exists on %s", idx.Name, collection)
	}
	c.Indexes = append(append([]Index(nil), c.Indexes...), idx)

	var recs []Record
	err = tx.scan(recordsPrefix(collection), true, func(_ []byte, val []byte) error {
		rec, err := decodeRecord(val)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return err
	}
	for _, rec := range recs {
		enc, err := encodeValue(rec[c.KeyPath])
		if err != nil {
			return err
		}
		if err := tx.writeIndexEntry(c, idx, rec, enc); err != nil {
			return err
		}
	}
	return tx.writeDef(c)
}

func (tx *Tx) writeDef(c Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}
	if err := tx.txn.Set(collectionDefKey(c.Name), data); err != nil {
		return err
	}
	tx.defs[c.Name] = c
	tx.schemaChanged = true
	return nil
}

// put stores rec, assigning an auto-increment key when needed. It returns the key.
func (tx *Tx) put(c Collection, rec Record, insertOnly bool) (any, error) {
	rec = copyRecord(rec)

	keyVal, ok := rec[c.KeyPath]
	if !ok || keyVal == nil {
		if !c.AutoIncrement {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingKey, c.Name, c.KeyPath)
		}
		n, err := tx.nextID(c.Name)
		if err != nil {
			return nil, err
		}
		keyVal = n
		rec[c.KeyPath] = n
	} else if c.AutoIncrement {
		if n, ok := asInt(keyVal); ok {
			if err := tx.bumpCounter(c.Name, n); err != nil {
				return nil, err
			}
		}
	}

	enc, err := encodeValue(keyVal)
	if err != nil {
		return nil, fmt.Errorf("bad key for %s: %w", c.Name, err)
	}

	old, err := tx.getRaw(c.Name, enc)
	if err != nil {
		return nil, err
	}
	if old != nil {
		if insertOnly {
			return nil, fmt.Errorf("%w: %s[%v]", ErrDuplicateKey, c.Name, keyVal)
		}
		if err := tx.removeIndexEntries(c, old, enc); err != nil {
			return nil, err
		}
	}

	for _, idx := range c.Indexes {
		if err := tx.writeIndexEntry(c, idx, rec, enc); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := tx.txn.Set(recordKey(c.Name, enc), data); err != nil {
		return nil, err
	}
	return keyVal, nil
}

func (tx *Tx) get(c Collection, key any) (Record, error) {
	enc, err := encodeValue(key)
	if err != nil {
		return nil, fmt.Errorf("bad key for %s: %w", c.Name, err)
	}
	rec, err := tx.getRaw(c.Name, enc)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s[%v]", ErrNotFound, c.Name, key)
	}
	return rec, nil
}

func (tx *Tx) getRaw(col, enc string) (Record, error) {
	item, err := tx.txn.Get(recordKey(col, enc))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeRecord(val)
}

func (tx *Tx) delete(c Collection, key any) error {
	enc, err := encodeValue(key)
	if err != nil {
		return fmt.Errorf("bad key for %s: %w", c.Name, err)
	}
	old, err := tx.getRaw(c.Name, enc)
	if err != nil || old == nil {
		return err
	}
	if err := tx.removeIndexEntries(c, old, enc); err != nil {
		return err
	}
	return tx.txn.Delete(recordKey(c.Name, enc))
}

func (tx *Tx) writeIndexEntry(c Collection, idx Index, rec Record, encKey string) error {
	v, ok := rec[idx.Field]
	if !ok || v == nil {
		return nil
	}
	ev, err := encodeIndexValue(v)
	if err != nil {
		return fmt.Errorf("bad value for index %s.%s: %w", c.Name, idx.Name, err)
	}
	if idx.Unique {
		conflict := false
		own := indexEntryKey(c.Name, idx.Name, ev, encKey)
		err := tx.scan(indexValuePrefix(c.Name, idx.Name, ev), false, func(key []byte, _ []byte) error {
			if !bytes.Equal(key, own) {
				conflict = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if conflict {
			return fmt.Errorf("%w: %s.%s = %v", ErrConstraint, c.Name, idx.Name, v)
		}
	}
	return tx.txn.Set(indexEntryKey(c.Name, idx.Name, ev, encKey), nil)
}

func (tx *Tx) removeIndexEntries(c Collection, rec Record, encKey string) error {
	for _, idx := range c.Indexes {
		v, ok := rec[idx.Field]
		if !ok || v == nil {
			continue
		}
		ev, err := encodeIndexValue(v)
		if err != nil {
			continue
		}
		if err := tx.txn.Delete(indexEntryKey(c.Name, idx.Name, ev, encKey)); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) nextID(col string) (int64, error) {
	cur, err := tx.counter(col)
	if err != nil {
		return 0, err
	}
	next := cur + 1
	return next, tx.txn.Set(counterKey(col), []byte(strconv.FormatInt(next, 10)))
}

func (tx *Tx) bumpCounter(col string, n int64) error {
	cur, err := tx.counter(col)
	if err != nil {
		return err
	}
	if n <= cur {
		return nil
	}
	return tx.txn.Set(counterKey(col), []byte(strconv.FormatInt(n, 10)))
}

func (tx *Tx) counter(col string) (int64, error) {
	item, err := tx.txn.Get(counterKey(col))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(val), 10, 64)
}

// scan visits every key under prefix in order. Values are only loaded when withValues is set.
func (tx *Tx) scan(prefix []byte, withValues bool, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = withValues
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		var val []byte
		if withValues {
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			val = v
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) deletePrefix(prefix []byte) error {
	var keys [][]byte
	err := tx.scan(prefix, false, func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := tx.txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func encodeIndexValue(v any) (string, error) {
	if f, ok := v.(float64); ok && f != math.Trunc(f) {
		return "f" + strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	return encodeValue(v)
}

func decodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	for k, v := range rec {
		rec[k] = normalize(v)
	}
	return rec, nil
}

// normalize turns decoded numbers into int64 when integral, float64 otherwise.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case int:
		return int64(x)
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	}
	return 0, false
}

func copyRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
