package search

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/poiesic/gentable/ai/mock"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage/badger"
	"github.com/poiesic/gentable/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "db"

var testCreds = core.Credentials{core.ProviderOpenAI: "test-key"}

func testColumns() []core.ColumnSpec {
	return []core.ColumnSpec{
		{ID: "text", Kind: core.ValuePlain, DataType: core.DataString},
		{ID: "topic", Kind: core.ValuePlain, DataType: core.DataString},
		{ID: "vec", Kind: core.ValueEmbedding, DataType: core.DataVector, VectorLength: 3,
			Gen: &core.GenConfig{EmbeddingModel: "openai/text-embedding-3-small", SourceColumn: "text"}},
	}
}

// newTestSearcher seeds a table with three rows and returns a searcher over
// it whose embedder maps every query close to the first two rows.
func newTestSearcher(t *testing.T, cols []core.ColumnSpec) (*Searcher, *mock.MockProvider, core.TableIdentity) {
	t.Helper()
	registry, err := badger.NewMemoryRegistry()
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	ident := core.TableIdentity{OrgID: "org", ProjectID: "proj", Kind: core.KindAction, TableID: "notes"}
	loc, err := tables.Resolve(testRoot, ident)
	require.NoError(t, err)
	ctx := context.Background()
	session, err := registry.Open(ctx, loc)
	require.NoError(t, err)
	defer session.Close()

	_, err = session.CreateTable(ctx, &core.TableMeta{ID: ident.TableID, Columns: cols})
	require.NoError(t, err)
	rows := []*core.Row{
		{Values: map[string]any{"text": "This is about artificial intelligence", "topic": "ai", "vec": []float32{0.9, 0.1, 0.0}}},
		{Values: map[string]any{"text": "This is about machine learning", "topic": "ai", "vec": []float32{0.85, 0.15, 0.0}}},
		{Values: map[string]any{"text": "This is about cooking recipes", "topic": "food", "vec": []float32{0.1, 0.1, 0.8}}},
	}
	_, err = session.AddRows(ctx, ident.TableID, rows...)
	require.NoError(t, err)

	provider := mock.NewMockProvider()
	provider.EmbedFunc = func(_ context.Context, texts []string, _ string, _ core.Credentials) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0.88, 0.12, 0.0}
		}
		return out, nil
	}
	searcher, err := NewSearcher(testRoot, registry, provider, provider)
	require.NoError(t, err)
	return searcher, provider, ident
}

func TestNewSearcher(t *testing.T) {
	registry, err := badger.NewMemoryRegistry()
	require.NoError(t, err)
	defer registry.Close()

	provider := mock.NewMockProvider()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(testRoot, registry, provider, provider)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(testRoot, registry, provider, provider, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(testRoot, registry, provider, provider, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil opener", func(t *testing.T) {
		_, err := NewSearcher(testRoot, nil, provider, provider)
		assert.Equal(t, ErrOpenerRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(testRoot, registry, nil, provider)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("nil reranker", func(t *testing.T) {
		_, err := NewSearcher(testRoot, registry, provider, nil)
		assert.Equal(t, ErrRerankerRequired, err)
	})
}

func TestHybridSearch(t *testing.T) {
	searcher, provider, ident := newTestSearcher(t, testColumns())

	hits, err := searcher.HybridSearch(context.Background(), ident, core.SearchQuery{Query: "artificial intelligence", Limit: 10}, testCreds)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "This is about artificial intelligence", hits[0].Row["text"].Value)
	assert.Equal(t, 1, provider.CallCount())

	// Results should be sorted by score
	for i := 0; i < len(hits)-1; i++ {
		assert.GreaterOrEqual(t, hits[i].Score, hits[i+1].Score)
	}
}

func TestHybridSearch_ExternalRows(t *testing.T) {
	searcher, _, ident := newTestSearcher(t, testColumns())

	hits, err := searcher.HybridSearch(context.Background(), ident, core.SearchQuery{Query: "machine learning", Limit: 1}, testCreds)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	row := hits[0].Row
	assert.NotContains(t, row, core.ColumnID)
	assert.NotContains(t, row, core.ColumnUpdatedAt)

	vec := row["vec"]
	assert.IsType(t, []float64{}, vec.Value)
	assert.IsType(t, []float32{}, vec.Original)
}

func TestHybridSearch_Filter(t *testing.T) {
	searcher, provider, ident := newTestSearcher(t, testColumns())

	// Without a query the filter alone selects rows.
	hits, err := searcher.HybridSearch(context.Background(), ident, core.SearchQuery{Where: core.Filter{"topic": "food"}}, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "This is about cooking recipes", hits[0].Row["text"].Value)
	assert.Zero(t, provider.CallCount())

	hits, err = searcher.HybridSearch(context.Background(), ident, core.SearchQuery{Query: "recipes", Where: core.Filter{"topic": "ai"}}, testCreds)
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, "ai", h.Row["topic"].Value)
	}
}

func TestHybridSearch_Rerank(t *testing.T) {
	searcher, provider, ident := newTestSearcher(t, testColumns())
	var model string
	provider.RerankFunc = func(_ context.Context, m, _ string, docs []string, _ core.Credentials) ([]float32, error) {
		model = m
		scores := make([]float32, len(docs))
		for i, d := range docs {
			if strings.Contains(d, "cooking") {
				scores[i] = 10
			}
		}
		return scores, nil
	}

	hits, err := searcher.HybridSearch(context.Background(), ident, core.SearchQuery{
		Query:          "about",
		Limit:          10,
		RerankingModel: "cohere/rerank-english-v3.0",
	}, testCreds)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "cohere/rerank-english-v3.0", model)
	assert.Equal(t, "This is about cooking recipes", hits[0].Row["text"].Value)
	assert.Equal(t, float32(10), hits[0].Score)
}

func TestHybridSearch_RerankCountMismatch(t *testing.T) {
	searcher, provider, ident := newTestSearcher(t, testColumns())
	provider.RerankFunc = func(context.Context, string, string, []string, core.Credentials) ([]float32, error) {
		return []float32{1}, nil
	}

	_, err := searcher.HybridSearch(context.Background(), ident, core.SearchQuery{
		Query: "about", Limit: 10, RerankingModel: "cohere/rerank-english-v3.0",
	}, testCreds)
	assert.ErrorIs(t, err, ErrRerankCount)
}

func TestHybridSearch_EmbedsOncePerModel(t *testing.T) {
	cols := append(testColumns(), core.ColumnSpec{
		ID: "topic_vec", Kind: core.ValueEmbedding, DataType: core.DataVector, VectorLength: 3,
		Gen: &core.GenConfig{EmbeddingModel: "openai/text-embedding-3-small", SourceColumn: "topic"},
	})
	searcher, provider, ident := newTestSearcher(t, cols)
	monitor := &testMonitor{}

	_, err := searcher.HybridSearchWithMonitor(context.Background(), ident, core.SearchQuery{Query: "intelligence"}, testCreds, monitor)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.CallCount())
	assert.Equal(t, []string{"topic_vec", "vec"}, monitor.columns)
}

func TestHybridSearch_Validation(t *testing.T) {
	searcher, _, ident := newTestSearcher(t, testColumns())
	ctx := context.Background()

	_, err := searcher.HybridSearch(ctx, ident, core.SearchQuery{Query: "x", Limit: core.MaxSearchLimit + 1}, testCreds)
	assert.ErrorIs(t, err, core.ErrInvalidQuery)

	_, err = searcher.HybridSearch(ctx, ident, core.SearchQuery{Query: "x", Metric: "manhattan"}, testCreds)
	assert.ErrorIs(t, err, core.ErrInvalidQuery)

	_, err = searcher.HybridSearch(ctx, ident, core.SearchQuery{Query: "x"}, nil)
	assert.ErrorIs(t, err, core.ErrMissingCredential)

	missing := ident
	missing.TableID = "missing"
	_, err = searcher.HybridSearch(ctx, missing, core.SearchQuery{Query: "x"}, testCreds)
	assert.ErrorIs(t, err, core.ErrTableNotFound)
}

func TestHybridSearchWithMonitor(t *testing.T) {
	searcher, _, ident := newTestSearcher(t, testColumns())
	monitor := &testMonitor{}

	hits, err := searcher.HybridSearchWithMonitor(context.Background(), ident, core.SearchQuery{Query: "test query"}, testCreds, monitor)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	assert.True(t, monitor.startCalled)
	assert.Equal(t, core.DefaultSearchLimit, monitor.query.Limit)
	assert.Equal(t, core.MetricCosine, monitor.query.Metric)
	assert.Equal(t, len(hits), monitor.retrieved)
	assert.False(t, monitor.reranked)
	assert.True(t, monitor.finishCalled)
}

// testMonitor records the stages it observes.
type testMonitor struct {
	startCalled  bool
	finishCalled bool
	reranked     bool
	query        core.SearchQuery
	columns      []string
	retrieved    int
}

func (m *testMonitor) Start(query core.SearchQuery) {
	m.startCalled = true
	m.query = query
}

func (m *testMonitor) AfterEmbedding(columns []string) { m.columns = columns }

func (m *testMonitor) AfterRetrieval(rows []*core.ScoredRow) { m.retrieved = len(rows) }

func (m *testMonitor) AfterRerank(_ []*core.ScoredRow) { m.reranked = true }

func (m *testMonitor) Finish(_ []Hit) {
	m.finishCalled = true
}
