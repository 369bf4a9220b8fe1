package generation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
	"github.com/poiesic/gentable/tasks"
	"github.com/poiesic/gentable/tables"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultRowsBatchSize    = 3
	DefaultColsBatchSize    = 5
	DefaultReindexThreshold = 2000
)

// Executor runs generation requests against one storage root.
type Executor struct {
	root     string
	opener   storage.Opener
	llm      ai.LLM
	embedder ai.Embedder
	queue    tasks.Queue

	rowsBatch int
	colsBatch int
	threshold int
	defaults  core.Credentials
	logger    *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor) error

// WithBatchSizes sets how many rows and how many columns per row are computed
// concurrently. Non-positive values keep the defaults.
func WithBatchSizes(rows, cols int) Option {
	return func(e *Executor) error {
		if rows > 0 {
			e.rowsBatch = rows
		}
		if cols > 0 {
			e.colsBatch = cols
		}
		return nil
	}
}

// WithReindexThreshold sets the largest table that ReindexAuto rebuilds.
// Default is DefaultReindexThreshold.
func WithReindexThreshold(rows int) Option {
	return func(e *Executor) error {
		e.threshold = rows
		return nil
	}
}

// WithDefaultCredentials sets server-side API keys. Request credentials take
// precedence.
func WithDefaultCredentials(creds core.Credentials) Option {
	return func(e *Executor) error {
		e.defaults = creds
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewExecutor creates an executor for the tables under root.
func NewExecutor(root string, opener storage.Opener, llm ai.LLM, embedder ai.Embedder, queue tasks.Queue, opts ...Option) (*Executor, error) {
	if opener == nil {
		return nil, ErrOpenerRequired
	}
	if llm == nil {
		return nil, ErrLLMRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}
	e := &Executor{
		root:      root,
		opener:    opener,
		llm:       llm,
		embedder:  embedder,
		queue:     queue,
		rowsBatch: DefaultRowsBatchSize,
		colsBatch: DefaultColsBatchSize,
		threshold: DefaultReindexThreshold,
		logger:    slog.Default().With("component", "generation"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Execute runs a request and writes every row in one transaction.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	if len(p.rows) == 0 {
		return result, nil
	}

	session, err := e.opener.Open(ctx, p.loc)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var committed []*core.Row
	stats, err := e.run(ctx, p, func(_ context.Context, row *core.Row) error {
		committed = append(committed, row)
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	if stats.allFailed() {
		return nil, fmt.Errorf("%w: %w", ErrAllColumnsFailed, stats.firstErr)
	}

	if err := p.write(ctx, session, committed...); err != nil {
		return nil, err
	}
	result.Rows = committed
	result.ReindexScheduled = e.maybeReindex(p)
	e.logger.Debug("rows generated", "table", p.meta.ID, "rows", len(committed), "cells", stats.cells, "failed", stats.failed)
	return result, nil
}

// Stream validates a request and returns an iterator over its events. Rows
// are written as soon as they complete. The request only runs while the
// iterator is consumed.
func (e *Executor) Stream(ctx context.Context, req Request) (iter.Seq2[Event, error], error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return func(yield func(Event, error) bool) {
		if len(p.rows) == 0 {
			return
		}
		session, err := e.opener.Open(ctx, p.loc)
		if err != nil {
			yield(Event{}, err)
			return
		}
		defer session.Close()

		stopped := false
		stats, err := e.run(ctx, p, func(ctx context.Context, row *core.Row) error {
			return p.write(ctx, session, row)
		}, func(ev Event) bool {
			if !yield(ev, nil) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
		if err != nil {
			yield(Event{}, err)
			return
		}
		if stats.allFailed() {
			yield(Event{}, fmt.Errorf("%w: %w", ErrAllColumnsFailed, stats.firstErr))
			return
		}
		e.maybeReindex(p)
	}, nil
}

// runStats counts computed cells of one run.
type runStats struct {
	cells    int
	failed   int
	firstErr error
}

func (s runStats) allFailed() bool {
	return s.cells > 0 && s.failed == s.cells
}

// errStopped ends a run whose consumer went away.
var errStopped = errors.New("stream stopped")

// run computes the planned rows and hands them to commit in request order.
// emit, when set, receives every event; returning false stops the run.
func (e *Executor) run(ctx context.Context, p *plan, commit func(context.Context, *core.Row) error, emit func(Event) bool) (runStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each row holds a window slot from start until it is committed.
	window := semaphore.NewWeighted(int64(e.rowsBatch))
	results := make([]chan cellResult, len(p.rows))
	started := make([]chan struct{}, len(p.rows))
	for i, r := range p.rows {
		results[i] = make(chan cellResult, r.cellCount())
		started[i] = make(chan struct{})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range p.rows {
			if err := window.Acquire(ctx, 1); err != nil {
				return
			}
			close(started[i])
			wg.Add(1)
			go func(r *plannedRow, out chan<- cellResult) {
				defer wg.Done()
				e.computeRow(ctx, p, r, out)
			}(&p.rows[i], results[i])
		}
	}()
	// Cancel before waiting so abandoned workers return promptly.
	defer wg.Wait()
	defer cancel()

	var stats runStats
	for i := range p.rows {
		r := &p.rows[i]
		n := r.cellCount()
		cells := make([]cellResult, n)
		pending := make(map[int]cellResult)
		for pos := 0; pos < n; {
			if res, ok := pending[pos]; ok {
				delete(pending, pos)
				cells[pos] = res
				stats.cells++
				if res.err != nil {
					stats.failed++
					if stats.firstErr == nil {
						stats.firstErr = res.err
					}
				}
				if emit != nil && !emit(r.cellEvent(res)) {
					return stats, errStopped
				}
				pos++
				continue
			}
			select {
			case res := <-results[i]:
				pending[res.pos] = res
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}

		// A row with nothing to compute can finish before its slot is taken.
		select {
		case <-started[i]:
		case <-ctx.Done():
			return stats, ctx.Err()
		}
		row := r.assemble(cells)
		if err := commit(ctx, row); err != nil {
			return stats, err
		}
		window.Release(1)
		if emit != nil && !emit(Event{Type: EventRow, RowIndex: r.index, RowID: row.ID, Row: row}) {
			return stats, errStopped
		}
	}
	return stats, nil
}

// maybeReindex applies the reindex policy to the row count seen before the
// write and submits a rebuild.
func (e *Executor) maybeReindex(p *plan) bool {
	if !ShouldReindex(p.reindex, p.prior, e.threshold) {
		return false
	}
	if err := e.submitReindex(p.loc, p.meta.ID); err != nil {
		e.logger.Warn("failed to schedule reindex", "table", p.meta.ID, "err", err)
		return false
	}
	return true
}

// Reindex submits an index rebuild of one table to the task queue.
func (e *Executor) Reindex(id core.TableIdentity) error {
	loc, err := tables.Resolve(e.root, id)
	if err != nil {
		return err
	}
	return e.submitReindex(loc, id.TableID)
}

func (e *Executor) submitReindex(loc core.Locator, tableID string) error {
	return e.queue.Submit("reindex "+tableID, func(ctx context.Context) error {
		s, err := e.opener.Open(ctx, loc)
		if err != nil {
			return err
		}
		defer s.Close()
		_, err = s.CreateIndexes(ctx, tableID)
		return err
	})
}
