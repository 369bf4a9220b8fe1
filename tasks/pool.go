// Package tasks runs fire-and-forget background work such as index rebuilds
// scheduled by request handlers. Task failures are logged here and never
// reach the caller that submitted them.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrQueueClosed is returned by Submit after Release.
var ErrQueueClosed = errors.New("task queue closed")

// Queue accepts background tasks.
type Queue interface {
	// Submit schedules fn and returns without waiting for it.
	Submit(name string, fn func(ctx context.Context) error) error
}

// Pool is a Queue backed by a bounded goroutine pool.
type Pool struct {
	pool    *ants.Pool
	size    int
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Queue = (*Pool)(nil)

// Option configures a Pool.
type Option func(*Pool) error

// WithPoolSize sets the number of concurrent tasks.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pool) error {
		if size < 1 {
			size = 1
		}
		p.size = size
		return nil
	}
}

// WithTaskTimeout bounds how long one task may run. Zero means no bound.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) error {
		p.timeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPool creates a task pool.
func NewPool(opts ...Option) (*Pool, error) {
	p := &Pool{
		size:   max(runtime.NumCPU()/2, 1),
		logger: slog.Default().With("component", "tasks"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(p.size, ants.WithPanicHandler(func(v any) {
		p.logger.Error("background task panicked", "panic", v)
	}))
	if err != nil {
		return nil, err
	}
	p.pool = pool
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p, nil
}

// Submit schedules fn. It blocks only while every worker is busy.
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) error {
	if p.pool.IsClosed() {
		return ErrQueueClosed
	}
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		p.run(name, fn)
	})
	if err != nil {
		p.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrQueueClosed
		}
		return err
	}
	return nil
}

func (p *Pool) run(name string, fn func(ctx context.Context) error) {
	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := fn(ctx); err != nil {
		p.logger.Error("background task failed", "task", name, "err", err)
		return
	}
	p.logger.Debug("background task done", "task", name, "elapsed", time.Since(start))
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release cancels running tasks and waits up to timeout for them to stop.
func (p *Pool) Release(timeout time.Duration) error {
	p.cancel()
	return p.pool.ReleaseTimeout(timeout)
}
