package badger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
)

// Registry implements storage.Opener with one BadgerDB per locator path.
// Databases stay open until the registry is closed.
type Registry struct {
	mu       sync.Mutex
	backends map[string]*Backend
	inMemory bool
	closed   bool
	active   atomic.Int64
	logger   *slog.Logger
}

var _ storage.Opener = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry) error

// WithInMemory keeps every database in memory. Used by tests.
func WithInMemory() Option {
	return func(r *Registry) error {
		r.inMemory = true
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		backends: make(map[string]*Backend),
		logger:   slog.Default().With("component", "storage-registry"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Open returns a session on the generative tables at loc.
func (r *Registry) Open(ctx context.Context, loc core.Locator) (storage.Session, error) {
	if loc.Kind == core.KindFile {
		return nil, core.ErrInvalidTableKind
	}
	backend, err := r.backend(loc)
	if err != nil {
		return nil, err
	}
	r.active.Add(1)
	return &tableSession{Engine: NewEngine(backend, loc), release: r.release}, nil
}

// OpenFiles returns a session on the file table at loc.
func (r *Registry) OpenFiles(ctx context.Context, loc core.Locator) (storage.FileSession, error) {
	if loc.Kind != core.KindFile {
		return nil, core.ErrInvalidTableKind
	}
	backend, err := r.backend(loc)
	if err != nil {
		return nil, err
	}
	r.active.Add(1)
	return &fileSession{FileTable: NewFileTable(backend, loc), release: r.release}, nil
}

// Exists reports whether a database exists at loc.
func (r *Registry) Exists(loc core.Locator) bool {
	r.mu.Lock()
	_, open := r.backends[loc.Path()]
	r.mu.Unlock()
	if open || r.inMemory {
		return open
	}
	info, err := os.Stat(loc.Path())
	return err == nil && info.IsDir()
}

// ActiveSessions returns the number of sessions not yet closed.
func (r *Registry) ActiveSessions() int {
	return int(r.active.Load())
}

// Close closes every open database.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if n := r.active.Load(); n > 0 {
		r.logger.Warn("closing registry with open sessions", "sessions", n)
	}
	var errs []error
	for path, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.backends, path)
	}
	return errors.Join(errs...)
}

func (r *Registry) backend(loc core.Locator) (*Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, storage.ErrStorageClosed
	}
	path := loc.Path()
	if b, ok := r.backends[path]; ok {
		return b, nil
	}
	b, err := OpenBackend(path, r.inMemory)
	if err != nil {
		return nil, err
	}
	r.backends[path] = b
	r.logger.Debug("opened database", "path", path)
	return b, nil
}

func (r *Registry) release() {
	r.active.Add(-1)
}

type tableSession struct {
	*Engine
	once    sync.Once
	release func()
}

func (s *tableSession) Close() error {
	s.once.Do(s.release)
	return nil
}

type fileSession struct {
	*FileTable
	once    sync.Once
	release func()
}

func (s *fileSession) Close() error {
	s.once.Do(s.release)
	return nil
}
