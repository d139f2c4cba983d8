// ABOUTME: Badger-backed structured store with named collections and indexes
// ABOUTME: Opens or creates the database and brings its schema up to date
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v3"

	"github.com/harper/toolbox/internal/util"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrMissingKey        = errors.New("record has no key")
	ErrConstraint        = errors.New("unique index violation")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownIndex      = errors.New("unknown index")
	ErrCollectionExists  = errors.New("collection already exists")
	ErrClosed            = errors.New("store is closed")
)

// Options configures Open.
type Options struct {
	// Dir is the badger directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool

	// Migrations defaults to DefaultMigrations.
	Migrations []Migration
	// DestructiveUpgrade drops every collection on a version bump and
	// rebuilds the schema from scratch instead of applying the new steps.
	DestructiveUpgrade bool

	// Estimator defaults to a disk estimator over Dir.
	Estimator Estimator

	MaxRetries int
	RetryDelay time.Duration

	Logger *log.Logger
}

// Store is the key-value backend.
type Store struct {
	db        *badger.DB
	opts      Options
	logger    *log.Logger
	estimator Estimator

	mu      sync.RWMutex
	defs    map[string]Collection
	version int
	closed  bool
}

// Open opens or creates the store and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Migrations == nil {
		opts.Migrations = DefaultMigrations
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.WithPrefix("kvstore")

	db, err := openBadger(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		opts:   opts,
		logger: logger,
		defs:   map[string]Collection{},
	}
	s.estimator = opts.Estimator
	if s.estimator == nil {
		s.estimator = &DiskEstimator{Dir: opts.Dir, Usage: s.usage}
		if opts.InMemory {
			s.estimator = unavailableEstimator{}
		}
	}

	if err := s.loadSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openBadger(ctx context.Context, opts Options, logger *log.Logger) (*badger.DB, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, fmt.Errorf("kvstore: no directory configured")
		}
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	// By default we have no logger as it would interleave with CLI output
	bopts = bopts.WithLogger(nil)

	var db *badger.DB
	err := util.Do(ctx, util.Policy{
		MaxRetries: opts.MaxRetries,
		BaseDelay:  opts.RetryDelay,
		// another process holding the directory lock may let go shortly
		Retryable: func(err error) bool { return strings.Contains(err.Error(), "lock") },
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Debug("retrying open", "attempt", attempt, "delay", delay, "err", err)
		},
	}, func() error {
		var err error
		db, err = badger.Open(bopts)
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open key-value store: %w", err)
	}
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Version returns the applied schema version.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Dir returns the badger directory, or "" for an in-memory store.
func (s *Store) Dir() string {
	if s.opts.InMemory {
		return ""
	}
	return s.opts.Dir
}

// Collections returns the declared collections sorted by name.
func (s *Store) Collections() []Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Collection, 0, len(s.defs))
	for _, c := range s.defs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) loadSchema() error {
	return s.db.View(func(txn *badger.Txn) error {
		tx := &Tx{txn: txn, defs: map[string]Collection{}}
		defs := map[string]Collection{}
		err := tx.scan(collectionDefPrefix(), true, func(_ []byte, val []byte) error {
			var c Collection
			if err := json.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("failed to decode collection: %w", err)
			}
			defs[c.Name] = c
			return nil
		})
		if err != nil {
			return err
		}

		version := 0
		item, err := txn.Get(versionKey)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if version, err = strconv.Atoi(string(val)); err != nil {
				return fmt.Errorf("bad schema version %q: %w", val, err)
			}
		}

		s.mu.Lock()
		s.defs = defs
		s.version = version
		s.mu.Unlock()
		return nil
	})
}

func (s *Store) migrate(ctx context.Context) error {
	steps := append([]Migration(nil), s.opts.Migrations...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	target := latestVersion(steps)

	current := s.Version()
	if current > target {
		return fmt.Errorf("store schema version %d is newer than supported version %d", current, target)
	}
	if current == target {
		return nil
	}

	if s.opts.DestructiveUpgrade && current > 0 {
		s.logger.Warn("destructive upgrade: dropping all collections", "from", current, "to", target)
		if err := s.db.DropAll(); err != nil {
			return fmt.Errorf("failed to drop store: %w", err)
		}
		s.mu.Lock()
		s.defs = map[string]Collection{}
		s.version = 0
		s.mu.Unlock()
		current = 0
	}

	for _, m := range steps {
		if m.Version <= current {
			continue
		}
		err := s.update(ctx, func(tx *Tx) error {
			if err := m.Apply(tx); err != nil {
				return err
			}
			return tx.txn.Set(versionKey, []byte(strconv.Itoa(m.Version)))
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		s.mu.Lock()
		s.version = m.Version
		s.mu.Unlock()
		s.logger.Debug("applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}

func (s *Store) newTx(txn *badger.Txn) *Tx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make(map[string]Collection, len(s.defs))
	for k, v := range s.defs {
		defs[k] = v
	}
	return &Tx{txn: txn, defs: defs}
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(ctx context.Context, fn func(*Tx) error) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	return util.Do(ctx, util.Policy{
		MaxRetries: s.opts.MaxRetries,
		BaseDelay:  s.opts.RetryDelay,
		Retryable:  func(err error) bool { return errors.Is(err, badger.ErrConflict) },
	}, func() error {
		var tx *Tx
		err := s.db.Update(func(txn *badger.Txn) error {
			tx = s.newTx(txn)
			return fn(tx)
		})
		if err == nil && tx.schemaChanged {
			s.mu.Lock()
			s.defs = tx.defs
			s.mu.Unlock()
		}
		return err
	})
}

func (s *Store) view(ctx context.Context, fn func(*Tx) error) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(s.newTx(txn))
	})
}

func (s *Store) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Add inserts a record; it fails with ErrDuplicateKey if the key exists.
// Auto-increment collections assign a key when the record has none.
func (s *Store) Add(ctx context.Context, collection string, rec Record) (any, error) {
	var key any
	err := s.update(ctx, func(tx *Tx) error {
		c, err := tx.collection(collection)
		if err != nil {
			return err
		}
		key, err = tx.put(c, rec, true)
		return err
	})
	return key, err
}

// Put inserts or replaces the record with the same key.
func (s *Store) Put(ctx context.Context, collection string, rec Record) (any, error) {
	var key any
	err := s.update(ctx, func(tx *Tx) error {
		c, err := tx.collection(collection)
		if err != nil {
			return err
		}
		key, err = tx.put(c, rec, false)
		return err
	})
	return key, err
}

// Get returns the record with key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, collection string, key any) (Record, error) {
	var rec Record
	err := s.view(ctx, func(tx *Tx) error {
		c, err := tx.collection(collection)
		if err != nil {
			return err
		}
		rec, err = tx.get(c, key)
		return err
	})
	return rec, err
}

// GetAll returns every record in key order.
func (s *Store) GetAll(ctx context.Context, collection string) ([]Record, error) {
	recs := []Record{}
	err := s.view(ctx, func(tx *Tx) error {
		if _, err := tx.collection(collection); err != nil {
			return err
		}
		return tx.scan(recordsPrefix(collection), true, func(_ []byte, val []byte) error {
			rec, err := decodeRecord(val)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// Delete removes the record with key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, collection string, key any) error {
	return s.update(ctx, func(tx *Tx) error {
		c, err := tx.collection(collection)
		if err != nil {
			return err
		}
		return tx.delete(c, key)
	})
}

// Clear removes every record of a collection. The auto-increment counter is kept.
func (s *Store) Clear(ctx context.Context, collection string) error {
	var keys [][]byte
	err := s.view(ctx, func(tx *Tx) error {
		if _, err := tx.collection(collection); err != nil {
			return err
		}
		for _, p := range [][]byte{recordsPrefix(collection), indexesPrefix(collection)} {
			err := tx.scan(p, false, func(key, _ []byte) error {
				keys = append(keys, key)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// a write batch splits large clears across transactions
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("failed to clear %s: %w", collection, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	return nil
}

// QueryByIndex returns the records whose indexed field equals value, in key order.
func (s *Store) QueryByIndex(ctx context.Context, collection, index string, value any) ([]Record, error) {
	recs := []Record{}
	err := s.view(ctx, func(tx *Tx) error {
		c, err := tx.collection(collection)
		if err != nil {
			return err
		}
		if _, ok := c.index(index); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, index)
		}
		ev, err := encodeIndexValue(value)
		if err != nil {
			return err
		}
		prefix := indexValuePrefix(collection, index, ev)

		var encKeys []string
		err = tx.scan(prefix, false, func(key, _ []byte) error {
			encKeys = append(encKeys, string(key[len(prefix):]))
			return nil
		})
		if err != nil {
			return err
		}
		for _, enc := range encKeys {
			rec, err := tx.getRaw(collection, enc)
			if err != nil {
				return err
			}
			if rec != nil {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	return recs, err
}

// Count returns the number of records in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	n := 0
	err := s.view(ctx, func(tx *Tx) error {
		if _, err := tx.collection(collection); err != nil {
			return err
		}
		return tx.scan(recordsPrefix(collection), false, func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

// Estimate reports capacity. An unavailable estimate yields zeros.
func (s *Store) Estimate(ctx context.Context) Quota {
	q, err := s.estimator.Estimate(ctx)
	if err != nil {
		s.logger.Debug("storage estimate unavailable", "err", err)
		return Quota{}
	}
	return q
}

func (s *Store) usage() int64 {
	lsm, vlog := s.db.Size()
	return lsm + vlog
}
