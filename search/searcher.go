package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
	"github.com/poiesic/gentable/tables"
)

// Hit is one search result ready for transmission.
type Hit struct {
	Row   core.ExternalRow
	Score float32
}

// Searcher provides hybrid vector and lexical search over generative tables.
type Searcher struct {
	root     string
	opener   storage.Opener
	embedder ai.Embedder
	reranker ai.Reranker
	defaults core.Credentials
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithDefaultCredentials sets server-side API keys. Request credentials take
// precedence.
func WithDefaultCredentials(creds core.Credentials) Option {
	return func(s *Searcher) error {
		s.defaults = creds
		return nil
	}
}

// NewSearcher creates a new searcher over the tables under root.
func NewSearcher(root string, opener storage.Opener, embedder ai.Embedder, reranker ai.Reranker, opts ...Option) (*Searcher, error) {
	if opener == nil {
		return nil, ErrOpenerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if reranker == nil {
		return nil, ErrRerankerRequired
	}

	s := &Searcher{
		root:     root,
		opener:   opener,
		embedder: embedder,
		reranker: reranker,
		logger:   slog.Default().With("component", "search"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// HybridSearch searches the table named by id.
func (s *Searcher) HybridSearch(ctx context.Context, id core.TableIdentity, query core.SearchQuery, creds core.Credentials) ([]Hit, error) {
	return s.HybridSearchWithMonitor(ctx, id, query, creds, nil)
}

// HybridSearchWithMonitor searches the table named by id. The monitor
// receives callbacks at each stage of the search process.
func (s *Searcher) HybridSearchWithMonitor(ctx context.Context, id core.TableIdentity, query core.SearchQuery, creds core.Credentials, monitor Monitor) ([]Hit, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if query.TableID == "" {
		query.TableID = id.TableID
	}
	query = query.WithDefaults()
	if err := validate(query); err != nil {
		return nil, err
	}
	monitor.Start(query)

	loc, err := tables.Resolve(s.root, id)
	if err != nil {
		return nil, err
	}
	session, err := s.opener.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	meta, err := session.OpenTable(ctx, id.TableID)
	if err != nil {
		return nil, err
	}
	creds = creds.Merge(s.defaults)

	// 1. Embed the query for each embedding column
	vectors, err := s.embedQuery(ctx, meta, query.Query, creds)
	if err != nil {
		s.logger.Error("error generating embedding for query", "table", id.TableID, "err", err)
		return nil, err
	}
	columns := make([]string, 0, len(vectors))
	for col := range vectors {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	monitor.AfterEmbedding(columns)

	// 2. Vector, predicate and lexical retrieval
	rows, err := session.HybridSearch(ctx, meta.ID, storage.SearchParams{
		Vectors:      vectors,
		Text:         query.Query,
		TextColumns:  textColumns(meta),
		Filter:       query.Where,
		Limit:        query.Limit,
		Metric:       query.Metric,
		NProbes:      query.NProbes,
		RefineFactor: query.RefineFactor,
	})
	if err != nil {
		s.logger.Error("error querying for similar rows", "table", id.TableID, "err", err)
		return nil, err
	}
	monitor.AfterRetrieval(rows)

	// 3. Optional second pass
	if query.RerankingModel != "" && len(rows) > 0 {
		rows, err = s.rerank(ctx, meta, query, rows, creds)
		if err != nil {
			s.logger.Error("error reranking results", "table", id.TableID, "model", query.RerankingModel, "err", err)
			return nil, err
		}
		monitor.AfterRerank(rows)
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, Hit{Row: core.ToExternal(meta, r.Row, false), Score: r.Score})
	}
	monitor.Finish(hits)
	return hits, nil
}

func validate(q core.SearchQuery) error {
	if q.Limit > core.MaxSearchLimit {
		return fmt.Errorf("%w: limit must be at most %d", core.ErrInvalidQuery, core.MaxSearchLimit)
	}
	switch q.Metric {
	case core.MetricCosine, core.MetricDot, core.MetricL2:
	default:
		return fmt.Errorf("%w: unknown metric %q", core.ErrInvalidQuery, q.Metric)
	}
	return nil
}

// embedQuery embeds text once per embedding model and maps the vectors to
// the columns using that model. An empty query has no vectors.
func (s *Searcher) embedQuery(ctx context.Context, meta *core.TableMeta, text string, creds core.Credentials) (map[string][]float32, error) {
	vectors := make(map[string][]float32)
	if strings.TrimSpace(text) == "" {
		return vectors, nil
	}
	byModel := make(map[string][]float32)
	for _, col := range meta.EmbeddingColumns() {
		if col.Gen == nil || col.Gen.EmbeddingModel == "" {
			continue
		}
		model := col.Gen.EmbeddingModel
		vec, ok := byModel[model]
		if !ok {
			if _, ok := creds.For(model); !ok {
				return nil, fmt.Errorf("%w: %q", core.ErrMissingCredential, core.ProviderOf(model))
			}
			out, err := s.embedder.Embed(ctx, []string{text}, model, creds)
			if err != nil {
				return nil, err
			}
			if len(out) != 1 {
				return nil, fmt.Errorf("%w: want 1, got %d", ai.ErrEmbeddingCount, len(out))
			}
			vec = core.NormalizeVector(out[0])
			byModel[model] = vec
		}
		vectors[col.ID] = vec
	}
	return vectors, nil
}

// rerank reorders rows by the reranking model's relevance scores.
func (s *Searcher) rerank(ctx context.Context, meta *core.TableMeta, query core.SearchQuery, rows []*core.ScoredRow, creds core.Credentials) ([]*core.ScoredRow, error) {
	docs := make([]string, len(rows))
	for i, r := range rows {
		docs[i] = document(meta, r.Row)
	}
	scores, err := s.reranker.Rerank(ctx, query.RerankingModel, query.Query, docs, creds)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(rows) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrRerankCount, len(rows), len(scores))
	}

	out := make([]*core.ScoredRow, len(rows))
	for i, r := range rows {
		out[i] = &core.ScoredRow{Row: r.Row, Score: scores[i]}
	}
	// Sort by score descending
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
