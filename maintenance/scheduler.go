package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
)

const (
	DefaultReindexInterval  = 60 * time.Second
	DefaultOptimizeInterval = 60 * time.Second
	DefaultRetention        = 7 * 24 * time.Hour
	DefaultPageSize         = 200
)

// Scheduler runs the reindex and optimize jobs over one storage root.
type Scheduler struct {
	root   string
	opener storage.Opener

	reindexLock      Locker
	optimizeLock     Locker
	reindexInterval  time.Duration
	optimizeInterval time.Duration
	retention        time.Duration
	pageSize         int
	logger           *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithIntervals sets the periods of the reindex and optimize jobs.
// Defaults are DefaultReindexInterval and DefaultOptimizeInterval.
func WithIntervals(reindex, optimize time.Duration) Option {
	return func(s *Scheduler) error {
		if reindex <= 0 || optimize <= 0 {
			return ErrInvalidInterval
		}
		s.reindexInterval = reindex
		s.optimizeInterval = optimize
		return nil
	}
}

// WithRetention sets how long superseded row versions are kept.
// Default is DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(s *Scheduler) error {
		s.retention = d
		return nil
	}
}

// WithLocks replaces the default file locks.
func WithLocks(reindex, optimize Locker) Option {
	return func(s *Scheduler) error {
		s.reindexLock = reindex
		s.optimizeLock = optimize
		return nil
	}
}

// WithPageSize sets how many table records are listed per page.
// Default is DefaultPageSize.
func WithPageSize(n int) Option {
	return func(s *Scheduler) error {
		if n > 0 {
			s.pageSize = n
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewScheduler creates a scheduler over the tables under root.
func NewScheduler(root string, opener storage.Opener, opts ...Option) (*Scheduler, error) {
	if root == "" {
		return nil, ErrRootRequired
	}
	if opener == nil {
		return nil, ErrOpenerRequired
	}
	s := &Scheduler{
		root:             root,
		opener:           opener,
		reindexLock:      NewFileLock(filepath.Join(root, ReindexLockFile)),
		optimizeLock:     NewFileLock(filepath.Join(root, OptimizeLockFile)),
		reindexInterval:  DefaultReindexInterval,
		optimizeInterval: DefaultOptimizeInterval,
		retention:        DefaultRetention,
		pageSize:         DefaultPageSize,
		logger:           slog.Default().With("component", "maintenance"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start runs both jobs on their intervals until ctx is done. The first run of
// each job happens one interval after Start.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("maintenance started", "reindex_interval", s.reindexInterval, "optimize_interval", s.optimizeInterval)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.every(ctx, s.reindexInterval, s.RunReindex)
	}()
	go func() {
		defer wg.Done()
		s.every(ctx, s.optimizeInterval, s.RunOptimize)
	}()
	wg.Wait()
	s.logger.Info("maintenance stopped")
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, run func(context.Context) (core.RunSummary, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are logged by the run.
			_, _ = run(ctx)
		}
	}
}

// RunReindex performs one reindex pass.
func (s *Scheduler) RunReindex(ctx context.Context) (core.RunSummary, error) {
	return s.pass(ctx, "reindex", s.reindexLock, func(t target) (core.IndexOutcome, bool) {
		if t.session == nil {
			return 0, false
		}
		done, err := t.session.CreateIndexes(ctx, t.tableID)
		return s.outcome("reindex", t, done, err), true
	})
}

// RunOptimize performs one optimize pass.
func (s *Scheduler) RunOptimize(ctx context.Context) (core.RunSummary, error) {
	return s.pass(ctx, "optimization", s.optimizeLock, func(t target) (core.IndexOutcome, bool) {
		if t.session == nil {
			return s.optimizeFiles(ctx, t), true
		}
		compacted, err := t.session.CompactFiles(ctx, t.tableID)
		if err != nil {
			return s.outcome("optimization", t, false, err), true
		}
		cleaned, err := t.session.CleanupOldVersions(ctx, t.tableID, s.retention)
		return s.outcome("optimization", t, compacted && cleaned, err), true
	})
}

func (s *Scheduler) optimizeFiles(ctx context.Context, t target) core.IndexOutcome {
	files, err := s.opener.OpenFiles(ctx, t.loc)
	if err != nil {
		return s.outcome("optimization", t, false, err)
	}
	defer files.Close()

	compacted, err := files.CompactFiles(ctx)
	if err != nil {
		return s.outcome("optimization", t, false, err)
	}
	cleaned, err := files.CleanupOldVersions(ctx, s.retention)
	return s.outcome("optimization", t, compacted && cleaned, err)
}

func (s *Scheduler) outcome(job string, t target, done bool, err error) core.IndexOutcome {
	switch {
	case err != nil:
		s.logger.Error("periodic "+job+" failed for table", "table", t.path(), "err", err)
		return core.OutcomeFailed
	case done:
		return core.OutcomeOK
	default:
		return core.OutcomeSkipped
	}
}

// pass runs visit over every table while holding lock. visit reports false
// for tables the job does not count.
func (s *Scheduler) pass(ctx context.Context, job string, lock Locker, visit func(target) (core.IndexOutcome, bool)) (core.RunSummary, error) {
	var summary core.RunSummary
	locked, err := lock.TryLock(ctx)
	if err != nil {
		s.logger.Error("periodic "+job+" encountered an error", "err", err)
		return summary, err
	}
	if !locked {
		summary.LockSkipped = true
		s.logger.Info("periodic " + job + " skipped")
		return summary, nil
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release maintenance lock", "job", job, "err", err)
		}
	}()

	s.logger.Debug("periodic " + job + " started")
	err = s.walk(ctx, func(t target) {
		if o, counted := visit(t); counted {
			summary.Add(o)
		}
	})
	if err != nil {
		s.logger.Error("periodic "+job+" encountered an error", "err", err)
		return summary, err
	}
	s.logger.Info("periodic "+job+" completed", "ok", summary.OK, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// target is one table visited by a pass. The file table has no session.
type target struct {
	loc     core.Locator
	tableID string
	session storage.Session
}

func (t target) path() string {
	if t.session == nil {
		return filepath.Join(t.loc.Path(), "file")
	}
	return filepath.Join(t.loc.Path(), t.tableID)
}

// walk visits every generative table, then the file table, of every project
// under the root. Directories that are not valid identifiers are ignored.
func (s *Scheduler) walk(ctx context.Context, fn func(target)) error {
	orgs, err := subdirs(s.root)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		projects, err := subdirs(filepath.Join(s.root, org))
		if err != nil {
			return err
		}
		for _, project := range projects {
			for _, kind := range core.GenerativeKinds {
				if err := ctx.Err(); err != nil {
					return err
				}
				loc := core.Locator{Root: s.root, OrgID: org, ProjectID: project, Kind: kind}
				if !s.opener.Exists(loc) {
					continue
				}
				if err := s.walkKind(ctx, loc, fn); err != nil {
					s.logger.Error("failed to list tables", "locator", loc.Path(), "err", err)
				}
			}
			files := core.Locator{Root: s.root, OrgID: org, ProjectID: project, Kind: core.KindFile}
			if s.opener.Exists(files) {
				fn(target{loc: files})
			}
		}
	}
	return nil
}

func (s *Scheduler) walkKind(ctx context.Context, loc core.Locator, fn func(target)) error {
	session, err := s.opener.Open(ctx, loc)
	if err != nil {
		return err
	}
	defer session.Close()

	for offset, total := 0, 1; offset < total; offset += s.pageSize {
		var metas []*core.TableMeta
		metas, total, err = session.ListTables(ctx, offset, s.pageSize, nil)
		if err != nil {
			return err
		}
		for _, meta := range metas {
			fn(target{loc: loc, tableID: meta.ID, session: session})
		}
	}
	return nil
}

// subdirs lists the identifier-named directories of dir.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || core.ValidateIdentifier(e.Name()) != nil {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
