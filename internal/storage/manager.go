// ABOUTME: Storage manager selecting a backend and running SQL against its image
// ABOUTME: Every mutation is persisted through the active backend
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/toolbox/internal/storage/dirfs"
	"github.com/harper/toolbox/internal/storage/kvstore"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

var (
	ErrNotInitialized = errors.New("storage not initialized")
	// ErrUnavailable is returned in degraded mode when no engine could be created.
	ErrUnavailable = errors.New("storage unavailable")
)

// Options configures a Manager.
type Options struct {
	AppName string
	// DataDir holds the key-value store.
	DataDir string

	KVInMemory         bool
	KVDisabled         bool
	KVEstimator        kvstore.Estimator
	DestructiveUpgrade bool
	MaxRetries         int
	RetryDelay         time.Duration

	// Directory is a directory granted up front, e.g. from a flag.
	Directory string
	// Picker prompts for a directory. Nil means directory access is unsupported.
	Picker dirfs.Picker

	MemoryCeiling int64
	ImportMode    sqlite.RestoreMode

	// Openers replaces the built-in opener for a kind.
	Openers map[Kind]Opener

	Logger *log.Logger
	Now    func() time.Time
}

// Manager owns the active backend and the relational engine.
type Manager struct {
	opts   Options
	logger *log.Logger

	mu          sync.Mutex
	initialized bool
	degraded    bool
	passes      int
	active      Backend
	engine      *sqlite.Engine

	kv       *kvstore.Store
	kvErr    error
	kvOpened bool

	handle *dirfs.Handle
	flags  map[string]any

	schemas []appSchema
	tables  []string
}

type appSchema struct {
	name string
	sql  string
}

// NewManager returns an uninitialized manager.
func NewManager(opts Options) *Manager {
	if opts.AppName == "" {
		opts.AppName = "toolbox"
	}
	if opts.ImportMode == "" {
		opts.ImportMode = sqlite.RestoreReplace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		opts:   opts,
		logger: logger.WithPrefix("storage"),
		flags:  map[string]any{},
	}
}

// Initialize selects a backend. Candidates are the preferred kinds followed
// by the fallback order. When every candidate fails the manager runs degraded
// on a bare in-memory engine and still reports success. Calling it again is a no-op.
func (m *Manager) Initialize(ctx context.Context, preferred ...Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked(ctx, preferred)
}

func (m *Manager) initializeLocked(ctx context.Context, preferred []Kind) error {
	if m.initialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.passes++

	for _, kind := range candidates(preferred) {
		b, engine, err := m.attach(ctx, kind)
		if err != nil {
			m.logger.Warn("backend unavailable", "backend", kind, "err", err)
			continue
		}
		m.active = b
		m.engine = engine
		m.initialized = true
		m.adoptDirectory(ctx, b)
		m.logger.Debug("storage initialized", "backend", kind)
		return nil
	}

	m.degraded = true
	m.initialized = true
	engine, err := sqlite.OpenEngine(ctx, nil)
	if err != nil {
		m.logger.Error("no storage engine available", "err", err)
		return nil
	}
	m.engine = engine
	m.logger.Warn("every backend failed, running in memory only")
	return nil
}

// attach opens a backend and loads its image into a fresh engine. Nothing
// from a failed attempt is kept.
func (m *Manager) attach(ctx context.Context, kind Kind) (Backend, *sqlite.Engine, error) {
	open, ok := m.opts.Openers[kind]
	if !ok {
		open = m.defaultOpener(kind)
	}
	if open == nil {
		return nil, nil, fmt.Errorf("no opener for backend %s", kind)
	}
	b, err := open(ctx)
	if err != nil {
		return nil, nil, err
	}

	image, err := b.Load(ctx)
	if err != nil {
		_ = b.Close()
		return nil, nil, err
	}
	engine, err := sqlite.OpenEngine(ctx, image)
	if err != nil {
		_ = b.Close()
		return nil, nil, err
	}
	return b, engine, nil
}

func (m *Manager) defaultOpener(kind Kind) Opener {
	switch kind {
	case KindIndexedStore:
		return m.openIndexedStore
	case KindDirectoryFile:
		return m.openDirectory
	case KindInMemory:
		return func(context.Context) (Backend, error) {
			return newMemoryBackend(m.opts.MemoryCeiling), nil
		}
	}
	return nil
}

func (m *Manager) openIndexedStore(ctx context.Context) (Backend, error) {
	store, err := m.keyValue(ctx)
	if err != nil {
		return nil, err
	}
	return &kvBackend{store: store, name: m.opts.AppName, now: m.opts.Now}, nil
}

func (m *Manager) openDirectory(ctx context.Context) (Backend, error) {
	if m.handle == nil {
		if m.opts.Directory == "" {
			if m.opts.Picker == nil {
				return nil, dirfs.ErrUnsupported
			}
			return nil, errors.New("no directory granted in this session")
		}
		h, err := dirfs.Grant(m.opts.Directory)
		if err != nil {
			return nil, err
		}
		return &directoryBackend{fs: dirfs.New(h, m.opts.AppName), handle: h}, nil
	}
	return &directoryBackend{fs: dirfs.New(*m.handle, m.opts.AppName), handle: *m.handle}, nil
}

// keyValue opens the key-value store once. It also backs the directory
// flags and backups whichever backend is active.
func (m *Manager) keyValue(ctx context.Context) (*kvstore.Store, error) {
	if m.kvOpened {
		return m.kv, m.kvErr
	}
	m.kvOpened = true
	if m.opts.KVDisabled {
		m.kvErr = errors.New("key-value store disabled")
		return nil, m.kvErr
	}
	m.kv, m.kvErr = kvstore.Open(ctx, kvstore.Options{
		Dir:                filepath.Join(m.opts.DataDir, m.opts.AppName),
		InMemory:           m.opts.KVInMemory,
		DestructiveUpgrade: m.opts.DestructiveUpgrade,
		Estimator:          m.opts.KVEstimator,
		MaxRetries:         m.opts.MaxRetries,
		RetryDelay:         m.opts.RetryDelay,
		Logger:             m.logger,
	})
	return m.kv, m.kvErr
}

// SelectionPasses counts how many times backend selection actually ran.
func (m *Manager) SelectionPasses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passes
}

// Kind returns the active backend kind. Degraded mode reports in-memory.
func (m *Manager) Kind() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		if m.initialized {
			return KindInMemory
		}
		return ""
	}
	return m.active.Kind()
}

// StorageType is Kind as a string.
func (m *Manager) StorageType() string {
	return string(m.Kind())
}

// Degraded reports whether every backend failed during selection.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Tables returns the declared app tables in declaration order.
func (m *Manager) Tables() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tables...)
}

func (m *Manager) ready() error {
	if !m.initialized {
		return ErrNotInitialized
	}
	if m.engine == nil {
		return ErrUnavailable
	}
	return nil
}

// Query runs a read statement.
func (m *Manager) Query(ctx context.Context, query string, args ...any) ([]sqlite.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.engine.Query(ctx, query, args...)
}

// Execute runs a mutating statement and persists the image.
func (m *Manager) Execute(ctx context.Context, query string, args ...any) (sqlite.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return sqlite.Result{}, err
	}
	res, err := m.engine.Execute(ctx, query, args...)
	if err != nil {
		return res, err
	}
	return res, m.persistLocked(ctx)
}

func (m *Manager) persistLocked(ctx context.Context) error {
	if m.active == nil || m.engine == nil {
		return nil
	}
	image, err := m.engine.Image(ctx)
	if err != nil {
		return fmt.Errorf("failed to export image: %w", err)
	}
	if err := m.active.Persist(ctx, image); err != nil {
		m.logger.Warn("persist failed", "backend", m.active.Kind(), "err", err)
		return err
	}
	return nil
}

var createTableRe = regexp.MustCompile(`(?is)\bCREATE\s+(?:TEMP\s+|TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?("[^"]+"|` + "`[^`]+`" + `|\[[^\]]+\]|[\w.]+)`)

// SchemaTables returns the table names a schema script creates, in order.
func SchemaTables(schemaSQL string) []string {
	var names []string
	for _, stmt := range sqlite.SplitStatements(schemaSQL) {
		if m := createTableRe.FindStringSubmatch(stmt); m != nil {
			names = append(names, trimIdent(m[1]))
		}
	}
	return names
}

func trimIdent(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '"', '`', '[':
			return s[1 : len(s)-1]
		}
	}
	return s
}

// InitializeAppTables runs an app's schema script once and declares its tables.
func (m *Manager) InitializeAppTables(ctx context.Context, appName, schemaSQL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	for _, s := range m.schemas {
		if s.name == appName {
			return nil
		}
	}
	if err := m.engine.ExecScript(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create %s tables: %w", appName, err)
	}
	m.schemas = append(m.schemas, appSchema{name: appName, sql: schemaSQL})
	for _, t := range SchemaTables(schemaSQL) {
		if !m.declared(t) {
			m.tables = append(m.tables, t)
		}
	}
	return m.persistLocked(ctx)
}

func (m *Manager) declared(table string) bool {
	for _, t := range m.tables {
		if t == table {
			return true
		}
	}
	return false
}

// StorageInfo reports the active backend's location and capacity.
func (m *Manager) StorageInfo(ctx context.Context) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Info{}, ErrNotInitialized
	}

	var size int64
	if m.engine != nil {
		if image, err := m.engine.Image(ctx); err == nil {
			size = int64(len(image))
		}
	}
	if m.active == nil {
		info := newMemoryBackend(m.opts.MemoryCeiling).Info(ctx, size)
		info.Degraded = true
		return info, nil
	}
	return m.active.Info(ctx, size), nil
}

// ExportData renders every declared table as a SQL bundle.
func (m *Manager) ExportData(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return "", err
	}
	return sqlite.Dump(ctx, m.engine, m.tables, sqlite.DumpHeader{
		App:        m.opts.AppName,
		Backend:    string(m.kindLocked()),
		ExportedAt: m.opts.Now(),
	})
}

// ImportData executes a SQL bundle. Tables are cleared first unless the
// import mode is merge. The image is persisted once, also after a partial failure.
func (m *Manager) ImportData(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	stats, err := sqlite.Restore(ctx, m.engine, text, sqlite.RestoreOptions{
		Mode:    m.opts.ImportMode,
		Allowed: m.declared,
	})
	if perr := m.persistLocked(ctx); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return fmt.Errorf("failed to import data: %w", err)
	}
	m.logger.Debug("import complete", "statements", stats.Statements, "rows", stats.Rows, "cleared", stats.Cleared)
	return nil
}

func (m *Manager) kindLocked() Kind {
	if m.active == nil {
		return KindInMemory
	}
	return m.active.Kind()
}

// Collections returns the key-value store, or nil when it is not open.
func (m *Manager) Collections() *kvstore.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kv
}

// Close persists the image and releases every resource. The manager can be
// initialized again afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.initialized {
		errs = append(errs, m.persistLocked(context.Background()))
	}
	if m.engine != nil {
		errs = append(errs, m.engine.Close())
		m.engine = nil
	}
	if m.active != nil {
		errs = append(errs, m.active.Close())
		m.active = nil
	}
	if m.kv != nil {
		errs = append(errs, m.kv.Close())
		m.kv = nil
	}
	m.kvOpened = false
	m.kvErr = nil
	m.initialized = false
	m.degraded = false
	// a later Initialize starts a new session: schemas are declared again
	// and the directory must be granted again
	m.schemas = nil
	m.tables = nil
	m.handle = nil
	return errors.Join(errs...)
}
