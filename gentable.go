// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package gentable orchestrates generative tables: tables whose columns hold
// plain values, LLM-generated text or embeddings computed from other columns.
//
// Service is the entry point for request handlers. It owns the generation
// executor, the ingestion pipeline, the searcher and the maintenance
// scheduler, and exposes every caller-facing operation.
package gentable

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/generation"
	"github.com/poiesic/gentable/ingestion"
	"github.com/poiesic/gentable/maintenance"
	"github.com/poiesic/gentable/search"
	"github.com/poiesic/gentable/storage"
	"github.com/poiesic/gentable/tables"
	"github.com/poiesic/gentable/tasks"
)

var (
	// ErrOpenerRequired is returned when no storage opener is provided.
	ErrOpenerRequired = errors.New("storage opener required")

	// ErrProviderRequired is returned when no AI provider is provided.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrQueueRequired is returned when no task queue is provided.
	ErrQueueRequired = errors.New("task queue required")
)

// Service exposes the caller operations over one storage root.
type Service struct {
	root      string
	opener    storage.Opener
	provider  ai.Provider
	queue     tasks.Queue
	executor  *generation.Executor
	pipeline  *ingestion.Pipeline
	searcher  *search.Searcher
	scheduler *maintenance.Scheduler
	threshold int
	logger    *slog.Logger

	// closers run in order on Close.
	closers []func() error
}

// Option configures a Service.
type Option func(*options)

type options struct {
	rowsBatch   int
	colsBatch   int
	threshold   int
	defaults    core.Credentials
	titleModel  string
	maintenance []maintenance.Option
	logger      *slog.Logger
}

// WithBatchSizes bounds concurrent rows per request and concurrent cells per
// row.
func WithBatchSizes(rows, cols int) Option {
	return func(o *options) {
		o.rowsBatch, o.colsBatch = rows, cols
	}
}

// WithReindexThreshold sets the row count up to which writes with an auto
// reindex intent trigger an immediate rebuild.
func WithReindexThreshold(n int) Option {
	return func(o *options) {
		o.threshold = n
	}
}

// WithDefaultCredentials sets server-side API keys. Request credentials take
// precedence.
func WithDefaultCredentials(creds core.Credentials) Option {
	return func(o *options) {
		o.defaults = creds
	}
}

// WithTitleModel sets the preferred model for upload title inference.
func WithTitleModel(model string) Option {
	return func(o *options) {
		o.titleModel = model
	}
}

// WithMaintenance passes options to the maintenance scheduler.
func WithMaintenance(opts ...maintenance.Option) Option {
	return func(o *options) {
		o.maintenance = append(o.maintenance, opts...)
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewService wires the components over opener, provider and queue. The
// caller keeps ownership of the three collaborators.
func NewService(root string, opener storage.Opener, provider ai.Provider, queue tasks.Queue, opts ...Option) (*Service, error) {
	if opener == nil {
		return nil, ErrOpenerRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}
	o := &options{
		rowsBatch:  generation.DefaultRowsBatchSize,
		colsBatch:  generation.DefaultColsBatchSize,
		threshold:  generation.DefaultReindexThreshold,
		titleModel: ingestion.DefaultTitleModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	executor, err := generation.NewExecutor(root, opener, provider, provider, queue,
		generation.WithBatchSizes(o.rowsBatch, o.colsBatch),
		generation.WithReindexThreshold(o.threshold),
		generation.WithDefaultCredentials(o.defaults),
		generation.WithLogger(logger.With("component", "generation")),
	)
	if err != nil {
		return nil, err
	}
	pipeline, err := ingestion.NewPipeline(root, opener, executor, provider, provider,
		ingestion.WithTitleModel(o.titleModel),
		ingestion.WithDefaultCredentials(o.defaults),
		ingestion.WithLogger(logger.With("component", "ingestion")),
	)
	if err != nil {
		return nil, err
	}
	searcher, err := search.NewSearcher(root, opener, provider, provider,
		search.WithDefaultCredentials(o.defaults),
		search.WithLogger(logger.With("component", "search")),
	)
	if err != nil {
		return nil, err
	}
	scheduler, err := maintenance.NewScheduler(root, opener,
		append([]maintenance.Option{maintenance.WithLogger(logger.With("component", "maintenance"))}, o.maintenance...)...)
	if err != nil {
		return nil, err
	}

	return &Service{
		root:      root,
		opener:    opener,
		provider:  provider,
		queue:     queue,
		executor:  executor,
		pipeline:  pipeline,
		searcher:  searcher,
		scheduler: scheduler,
		threshold: o.threshold,
		logger:    logger.With("component", "service"),
	}, nil
}

// Close releases what the service owns. Services built by NewService own
// nothing.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.logger.Error("error closing service", "err", err)
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Scheduler returns the maintenance scheduler.
func (s *Service) Scheduler() *maintenance.Scheduler {
	return s.scheduler
}

// fail passes domain errors through unchanged and logs then wraps the rest.
func (s *Service) fail(op string, id core.TableIdentity, err error) error {
	if err == nil || core.IsClientError(err) || errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Error("operation failed", "op", op, "org", id.OrgID, "project", id.ProjectID,
		"kind", id.Kind, "table", id.TableID, "err", err)
	return fmt.Errorf("%s %q: %w", op, id.TableID, err)
}

// session opens the kind's storage location and returns the table variant.
func (s *Service) session(ctx context.Context, id core.TableIdentity) (storage.Session, tables.Table, error) {
	loc, err := tables.Resolve(s.root, id)
	if err != nil {
		return nil, nil, err
	}
	table, err := tables.New(id.Kind, loc)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.opener.Open(ctx, loc)
	if err != nil {
		return nil, nil, err
	}
	return session, table, nil
}

// AddRows inserts rows, computing their generative columns.
func (s *Service) AddRows(ctx context.Context, req generation.Request) (*generation.Result, error) {
	req.Op = generation.OpAdd
	res, err := s.executor.Execute(ctx, req)
	return res, s.fail("add rows", req.Table, err)
}

// StreamAddRows is AddRows delivering cell and row events as they complete.
func (s *Service) StreamAddRows(ctx context.Context, req generation.Request) (iter.Seq2[generation.Event, error], error) {
	req.Op = generation.OpAdd
	return s.stream(ctx, "add rows", req)
}

// RegenRows recomputes generative columns of existing rows.
func (s *Service) RegenRows(ctx context.Context, req generation.Request) (*generation.Result, error) {
	req.Op = generation.OpRegen
	res, err := s.executor.Execute(ctx, req)
	return res, s.fail("regen rows", req.Table, err)
}

// StreamRegenRows is RegenRows delivering events as they complete.
func (s *Service) StreamRegenRows(ctx context.Context, req generation.Request) (iter.Seq2[generation.Event, error], error) {
	req.Op = generation.OpRegen
	return s.stream(ctx, "regen rows", req)
}

func (s *Service) stream(ctx context.Context, op string, req generation.Request) (iter.Seq2[generation.Event, error], error) {
	seq, err := s.executor.Stream(ctx, req)
	if err != nil {
		return nil, s.fail(op, req.Table, err)
	}
	return func(yield func(generation.Event, error) bool) {
		for ev, err := range seq {
			if !yield(ev, s.fail(op, req.Table, err)) {
				return
			}
		}
	}, nil
}

// HybridSearch searches a table.
func (s *Service) HybridSearch(ctx context.Context, id core.TableIdentity, query core.SearchQuery, creds core.Credentials) ([]search.Hit, error) {
	hits, err := s.searcher.HybridSearch(ctx, id, query, creds)
	return hits, s.fail("hybrid search", id, err)
}

// UploadFile ingests a file into a knowledge table.
func (s *Service) UploadFile(ctx context.Context, req ingestion.UploadRequest) (*ingestion.UploadResult, error) {
	res, err := s.pipeline.Ingest(ctx, req)
	return res, s.fail("upload file", req.Table, err)
}

// TriggerReindex runs one reindex pass now.
func (s *Service) TriggerReindex(ctx context.Context) (core.RunSummary, error) {
	return s.scheduler.RunReindex(ctx)
}

// TriggerOptimize runs one optimize pass now.
func (s *Service) TriggerOptimize(ctx context.Context) (core.RunSummary, error) {
	return s.scheduler.RunOptimize(ctx)
}

// RunMaintenance runs the periodic jobs until ctx is done.
func (s *Service) RunMaintenance(ctx context.Context) {
	s.scheduler.Start(ctx)
}
