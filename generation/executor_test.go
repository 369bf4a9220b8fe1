package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/ai/mock"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage/badger"
	"github.com/poiesic/gentable/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "db"

var testCreds = core.Credentials{core.ProviderOpenAI: "test-key"}

// testQueue records submissions and optionally runs them inline.
type testQueue struct {
	mu     sync.Mutex
	names  []string
	inline bool
	errs   []error
}

func (q *testQueue) Submit(name string, fn func(ctx context.Context) error) error {
	q.mu.Lock()
	q.names = append(q.names, name)
	q.mu.Unlock()
	if q.inline {
		err := fn(context.Background())
		q.mu.Lock()
		q.errs = append(q.errs, err)
		q.mu.Unlock()
	}
	return nil
}

func (q *testQueue) submitted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.names...)
}

type fixture struct {
	exec     *Executor
	registry *badger.Registry
	llm      *mock.MockLLM
	embedder *mock.MockEmbedder
	queue    *testQueue
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	registry, err := badger.NewMemoryRegistry()
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	f := &fixture{
		registry: registry,
		llm:      mock.NewMockLLM("openai/gpt-4o-mini"),
		embedder: mock.NewMockEmbedder(),
		queue:    &testQueue{},
	}
	f.exec, err = NewExecutor(testRoot, registry, f.llm, f.embedder, f.queue, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) createTable(t *testing.T, kind core.TableKind, id string, cols []core.ColumnSpec) core.TableIdentity {
	t.Helper()
	ident := core.TableIdentity{OrgID: "org", ProjectID: "proj", Kind: kind, TableID: id}
	loc, err := tables.Resolve(testRoot, ident)
	require.NoError(t, err)
	session, err := f.registry.Open(context.Background(), loc)
	require.NoError(t, err)
	defer session.Close()
	_, err = session.CreateTable(context.Background(), &core.TableMeta{ID: id, Columns: cols})
	require.NoError(t, err)
	return ident
}

func (f *fixture) rows(t *testing.T, ident core.TableIdentity) []*core.Row {
	t.Helper()
	loc, err := tables.Resolve(testRoot, ident)
	require.NoError(t, err)
	session, err := f.registry.Open(context.Background(), loc)
	require.NoError(t, err)
	defer session.Close()
	rows, _, err := session.ListRows(context.Background(), ident.TableID, 0, 0)
	require.NoError(t, err)
	return rows
}

func qaColumns() []core.ColumnSpec {
	return []core.ColumnSpec{
		{ID: "question", Kind: core.ValuePlain, DataType: core.DataString},
		{ID: "answer", Kind: core.ValueGenerated, DataType: core.DataString,
			Gen: &core.GenConfig{Model: "openai/gpt-4o-mini", Prompt: "Answer: ${question}"}},
		{ID: "answer_vec", Kind: core.ValueEmbedding, DataType: core.DataVector, VectorLength: mock.DefaultDimension,
			Gen: &core.GenConfig{EmbeddingModel: "openai/text-embedding-3-small", SourceColumn: "answer"}},
	}
}

func generatedColumns(n int, model string) []core.ColumnSpec {
	cols := []core.ColumnSpec{{ID: "q", Kind: core.ValuePlain, DataType: core.DataString}}
	for i := range n {
		cols = append(cols, core.ColumnSpec{
			ID: fmt.Sprintf("c%d", i), Kind: core.ValueGenerated, DataType: core.DataString,
			Gen: &core.GenConfig{Model: model, Prompt: fmt.Sprintf("${q}/c%d", i)},
		})
	}
	return cols
}

// addRequest builds an add request with one row per value of column.
func addRequest(ident core.TableIdentity, column string, values ...string) Request {
	req := Request{Table: ident, Op: OpAdd, Credentials: testCreds, Reindex: core.ReindexNo}
	for _, v := range values {
		req.Rows = append(req.Rows, RowPayload{Values: map[string]any{column: v}})
	}
	return req
}

func TestNewExecutor_RequiresCollaborators(t *testing.T) {
	llm := mock.NewMockLLM()
	emb := mock.NewMockEmbedder()
	q := &testQueue{}
	registry, err := badger.NewMemoryRegistry()
	require.NoError(t, err)
	defer registry.Close()

	_, err = NewExecutor(testRoot, nil, llm, emb, q)
	assert.ErrorIs(t, err, ErrOpenerRequired)
	_, err = NewExecutor(testRoot, registry, nil, emb, q)
	assert.ErrorIs(t, err, ErrLLMRequired)
	_, err = NewExecutor(testRoot, registry, llm, nil, q)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewExecutor(testRoot, registry, llm, emb, nil)
	assert.ErrorIs(t, err, ErrQueueRequired)
}

func TestExecute_AddComputesColumns(t *testing.T) {
	f := newFixture(t)
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())

	result, err := f.exec.Execute(context.Background(), addRequest(ident, "question", "one", "two"))
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	rows := f.rows(t, ident)
	require.Len(t, rows, 2)
	for i, q := range []string{"one", "two"} {
		assert.Equal(t, q, rows[i].Values["question"])
		assert.Equal(t, "Answer: "+q, rows[i].Values["answer"])
		vec, ok := rows[i].Values["answer_vec"].([]float32)
		require.True(t, ok)
		assert.Len(t, vec, mock.DefaultDimension)
		assert.InDelta(t, 1.0, core.L2Norm(vec), 1e-5)
		assert.Empty(t, rows[i].State)
	}
	assert.Equal(t, 2, f.llm.PredictCalls())
	assert.Equal(t, 2, f.embedder.CallCount())
}

func TestExecute_SuppliedValuesAreKept(t *testing.T) {
	f := newFixture(t)
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())

	req := addRequest(ident, "question")
	req.Rows = []RowPayload{{Values: map[string]any{"Question": "q", "ANSWER": "given"}}}
	_, err := f.exec.Execute(context.Background(), req)
	require.NoError(t, err)

	rows := f.rows(t, ident)
	require.Len(t, rows, 1)
	assert.Equal(t, "given", rows[0].Values["answer"])
	assert.Zero(t, f.llm.PredictCalls())
	assert.Equal(t, 1, f.embedder.CallCount())
}

func TestExecute_MissingCredentialFailsOnlyItsCell(t *testing.T) {
	f := newFixture(t)
	cols := []core.ColumnSpec{
		{ID: "q", Kind: core.ValuePlain, DataType: core.DataString},
		{ID: "gpt", Kind: core.ValueGenerated, DataType: core.DataString,
			Gen: &core.GenConfig{Model: "openai/gpt-4o-mini", Prompt: "${q}"}},
		{ID: "claude", Kind: core.ValueGenerated, DataType: core.DataString,
			Gen: &core.GenConfig{Model: "anthropic/claude-3-5-haiku", Prompt: "${q}"}},
	}
	ident := f.createTable(t, core.KindAction, "mixed", cols)

	_, err := f.exec.Execute(context.Background(), addRequest(ident, "q", "hello"))
	require.NoError(t, err)

	rows := f.rows(t, ident)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0].Values["gpt"])
	assert.Nil(t, rows[0].Values["claude"])
	assert.Contains(t, rows[0].State["claude"].Error, core.ErrMissingCredential.Error())
	assert.Empty(t, rows[0].State["gpt"].Error)
}

func TestExecute_DefaultCredentials(t *testing.T) {
	f := newFixture(t, WithDefaultCredentials(core.Credentials{core.ProviderAnthropic: "server-key"}))
	cols := generatedColumns(1, "anthropic/claude-3-5-haiku")
	ident := f.createTable(t, core.KindAction, "claude", cols)

	var got core.Credentials
	f.llm.PredictFunc = func(_ context.Context, _ string, _ []core.Message, _ ai.SamplingParams, creds core.Credentials) (string, error) {
		got = creds
		return "ok", nil
	}
	_, err := f.exec.Execute(context.Background(), addRequest(ident, "q", "x"))
	require.NoError(t, err)
	assert.Equal(t, "server-key", got[core.ProviderAnthropic])
	assert.Equal(t, "test-key", got[core.ProviderOpenAI])
}

func TestExecute_AllColumnsFailed(t *testing.T) {
	f := newFixture(t)
	ident := f.createTable(t, core.KindAction, "fail", generatedColumns(2, "openai/gpt-4o-mini"))
	f.llm.PredictFunc = func(context.Context, string, []core.Message, ai.SamplingParams, core.Credentials) (string, error) {
		return "", errors.New("provider down")
	}

	_, err := f.exec.Execute(context.Background(), addRequest(ident, "q", "a", "b"))
	require.ErrorIs(t, err, ErrAllColumnsFailed)
	assert.Contains(t, err.Error(), "provider down")
	assert.Empty(t, f.rows(t, ident))
}

func TestExecute_SchemaViolationFailsFast(t *testing.T) {
	f := newFixture(t)
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())

	req := addRequest(ident, "question", "fine")
	req.Rows = append(req.Rows, RowPayload{Values: map[string]any{"ID": "forced"}})
	_, err := f.exec.Execute(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrSchemaFixed)

	req = addRequest(ident, "question", "fine")
	req.Rows = append(req.Rows, RowPayload{Values: map[string]any{"nope": 1}})
	_, err = f.exec.Execute(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrUnknownColumn)

	_, err = f.exec.Stream(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrUnknownColumn)

	assert.Zero(t, f.llm.PredictCalls())
	assert.Empty(t, f.rows(t, ident))
}

func TestExecute_UnknownTable(t *testing.T) {
	f := newFixture(t)
	ident := core.TableIdentity{OrgID: "org", ProjectID: "proj", Kind: core.KindAction, TableID: "missing"}
	_, err := f.exec.Execute(context.Background(), addRequest(ident, "q", "x"))
	assert.ErrorIs(t, err, core.ErrTableNotFound)

	ident.Kind = core.KindFile
	_, err = f.exec.Execute(context.Background(), addRequest(ident, "q", "x"))
	assert.ErrorIs(t, err, core.ErrInvalidTableKind)
}

func TestExecute_Regen(t *testing.T) {
	f := newFixture(t)
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())
	_, err := f.exec.Execute(context.Background(), addRequest(ident, "question", "one"))
	require.NoError(t, err)
	before := f.rows(t, ident)[0]

	f.llm.PredictFunc = func(_ context.Context, _ string, msgs []core.Message, _ ai.SamplingParams, _ core.Credentials) (string, error) {
		return strings.ToUpper(msgs[len(msgs)-1].Content), nil
	}
	_, err = f.exec.Execute(context.Background(), Request{
		Table:       ident,
		Op:          OpRegen,
		Rows:        []RowPayload{{RowID: before.ID}},
		Credentials: testCreds,
		Reindex:     core.ReindexNo,
	})
	require.NoError(t, err)

	after := f.rows(t, ident)
	require.Len(t, after, 1)
	assert.Equal(t, before.ID, after[0].ID)
	assert.Equal(t, "one", after[0].Values["question"])
	assert.Equal(t, "ANSWER: ONE", after[0].Values["answer"])
	assert.NotEqual(t, before.Values["answer_vec"], after[0].Values["answer_vec"])

	_, err = f.exec.Execute(context.Background(), Request{
		Table: ident, Op: OpRegen, Rows: []RowPayload{{RowID: "missing"}}, Credentials: testCreds,
	})
	assert.ErrorIs(t, err, core.ErrRowNotFound)
}

func TestExecute_RegenSelectedColumns(t *testing.T) {
	f := newFixture(t)
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())
	_, err := f.exec.Execute(context.Background(), addRequest(ident, "question", "one"))
	require.NoError(t, err)
	row := f.rows(t, ident)[0]
	predicts, embeds := f.llm.PredictCalls(), f.embedder.CallCount()

	_, err = f.exec.Execute(context.Background(), Request{
		Table: ident, Op: OpRegen, Rows: []RowPayload{{RowID: row.ID}},
		Columns: []string{"Answer_Vec"}, Credentials: testCreds, Reindex: core.ReindexNo,
	})
	require.NoError(t, err)
	assert.Equal(t, predicts, f.llm.PredictCalls())
	assert.Equal(t, embeds+1, f.embedder.CallCount())

	_, err = f.exec.Execute(context.Background(), Request{
		Table: ident, Op: OpRegen, Rows: []RowPayload{{RowID: row.ID}},
		Columns: []string{"question"}, Credentials: testCreds,
	})
	assert.ErrorIs(t, err, core.ErrInvalidColumn)
}

func TestExecute_ChatThread(t *testing.T) {
	f := newFixture(t)
	ident := f.createTable(t, core.KindChat, "chat", tables.ChatColumns("openai/gpt-4o-mini", "Be brief."))

	var (
		mu   sync.Mutex
		seen [][]core.Message
	)
	f.llm.PredictFunc = func(_ context.Context, _ string, msgs []core.Message, _ ai.SamplingParams, _ core.Credentials) (string, error) {
		mu.Lock()
		seen = append(seen, msgs)
		mu.Unlock()
		return "re: " + msgs[len(msgs)-1].Content, nil
	}

	for _, turn := range []string{"hi", "again"} {
		_, err := f.exec.Execute(context.Background(), Request{
			Table:       ident,
			Op:          OpAdd,
			Rows:        []RowPayload{{Values: map[string]any{core.ColumnUser: turn}}},
			Credentials: testCreds,
			Reindex:     core.ReindexNo,
		})
		require.NoError(t, err)
	}

	require.Len(t, seen, 2)
	assert.Equal(t, []core.Message{
		{Role: core.RoleSystem, Content: "Be brief."},
		{Role: core.RoleUser, Content: "hi"},
	}, seen[0])
	assert.Equal(t, []core.Message{
		{Role: core.RoleSystem, Content: "Be brief."},
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "re: hi"},
		{Role: core.RoleUser, Content: "again"},
	}, seen[1])
}

func TestExecute_ConcurrencyBound(t *testing.T) {
	f := newFixture(t, WithBatchSizes(3, 5))
	ident := f.createTable(t, core.KindAction, "wide", generatedColumns(10, "openai/gpt-4o-mini"))

	var inflight, peak atomic.Int64
	f.llm.PredictFunc = func(ctx context.Context, _ string, msgs []core.Message, _ ai.SamplingParams, _ core.Credentials) (string, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return msgs[len(msgs)-1].Content, nil
	}

	questions := make([]string, 10)
	for i := range questions {
		questions[i] = fmt.Sprintf("r%d", i)
	}
	result, err := f.exec.Execute(context.Background(), addRequest(ident, "q", questions...))
	require.NoError(t, err)
	require.Len(t, result.Rows, 10)

	assert.LessOrEqual(t, peak.Load(), int64(15))
	assert.Greater(t, peak.Load(), int64(1))
	assert.Equal(t, 100, f.llm.PredictCalls())
	for i, row := range result.Rows {
		assert.Equal(t, fmt.Sprintf("r%d/c9", i), row.Values["c9"])
	}
}

func TestStream_OrderedEvents(t *testing.T) {
	f := newFixture(t)
	cols := generatedColumns(2, "openai/gpt-4o-mini")
	ident := f.createTable(t, core.KindAction, "order", cols)

	// Later cells finish first.
	delays := map[string]time.Duration{
		"r0/c0": 40 * time.Millisecond,
		"r0/c1": 30 * time.Millisecond,
		"r1/c0": 20 * time.Millisecond,
		"r1/c1": 0,
	}
	f.llm.PredictFunc = func(_ context.Context, _ string, msgs []core.Message, _ ai.SamplingParams, _ core.Credentials) (string, error) {
		prompt := msgs[len(msgs)-1].Content
		time.Sleep(delays[prompt])
		return prompt, nil
	}

	seq, err := f.exec.Stream(context.Background(), addRequest(ident, "q", "r0", "r1"))
	require.NoError(t, err)

	var cells, committed []string
	for ev, err := range seq {
		require.NoError(t, err)
		switch ev.Type {
		case EventCell:
			cells = append(cells, fmt.Sprintf("%c%d", 'A'+ev.Column[1]-'0', ev.RowIndex+1))
		case EventRow:
			require.NotNil(t, ev.Row)
			assert.NotEmpty(t, ev.RowID)
			committed = append(committed, ev.RowID)
		}
	}
	assert.Equal(t, []string{"A1", "B1", "A2", "B2"}, cells)
	assert.Len(t, committed, 2)
	assert.Len(t, f.rows(t, ident), 2)
}

func TestStream_AbandonStopsWork(t *testing.T) {
	f := newFixture(t, WithBatchSizes(2, 2))
	ident := f.createTable(t, core.KindAction, "abandon", generatedColumns(2, "openai/gpt-4o-mini"))

	var inflight atomic.Int64
	f.llm.PredictFunc = func(ctx context.Context, _ string, msgs []core.Message, _ ai.SamplingParams, _ core.Credentials) (string, error) {
		inflight.Add(1)
		defer inflight.Add(-1)
		select {
		case <-time.After(5 * time.Millisecond):
			return msgs[len(msgs)-1].Content, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	questions := make([]string, 20)
	for i := range questions {
		questions[i] = fmt.Sprintf("r%d", i)
	}
	seq, err := f.exec.Stream(context.Background(), addRequest(ident, "q", questions...))
	require.NoError(t, err)

	for ev, err := range seq {
		require.NoError(t, err)
		if ev.Type == EventRow {
			break
		}
	}

	assert.Zero(t, inflight.Load())
	assert.Len(t, f.rows(t, ident), 1)
	assert.Less(t, f.llm.PredictCalls(), 40)
	assert.Zero(t, f.registry.ActiveSessions())
}

func TestStream_AllColumnsFailed(t *testing.T) {
	f := newFixture(t)
	ident := f.createTable(t, core.KindAction, "fail", generatedColumns(1, "openai/gpt-4o-mini"))
	f.llm.PredictFunc = func(context.Context, string, []core.Message, ai.SamplingParams, core.Credentials) (string, error) {
		return "", errors.New("boom")
	}

	seq, err := f.exec.Stream(context.Background(), addRequest(ident, "q", "x"))
	require.NoError(t, err)

	var errs []error
	var cellErrors int
	for ev, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ev.Type == EventCell && ev.Error != "" {
			cellErrors++
		}
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrAllColumnsFailed)
	assert.Equal(t, 1, cellErrors)
}

func TestExecute_ReindexPolicy(t *testing.T) {
	f := newFixture(t)
	f.queue.inline = true
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())

	req := addRequest(ident, "question", "one")
	req.Reindex = core.ReindexAuto
	result, err := f.exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.ReindexScheduled)
	assert.Equal(t, []string{"reindex qa"}, f.queue.submitted())
	require.Len(t, f.queue.errs, 1)
	assert.NoError(t, f.queue.errs[0])

	loc, err := tables.Resolve(testRoot, ident)
	require.NoError(t, err)
	session, err := f.registry.Open(context.Background(), loc)
	require.NoError(t, err)
	meta, err := session.OpenTable(context.Background(), "qa")
	require.NoError(t, err)
	assert.Equal(t, meta.Version, meta.IndexedVersion)
	require.NoError(t, session.Close())

	req.Reindex = core.ReindexNo
	result, err = f.exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.ReindexScheduled)
	assert.Len(t, f.queue.submitted(), 1)
}

func TestExecute_ReindexAutoSkipsLargeTables(t *testing.T) {
	f := newFixture(t, WithReindexThreshold(1))
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())

	req := addRequest(ident, "question", "one", "two")
	_, err := f.exec.Execute(context.Background(), req)
	require.NoError(t, err)

	req.Reindex = core.ReindexAuto
	result, err := f.exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.ReindexScheduled)

	req.Reindex = core.ReindexYes
	result, err = f.exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.ReindexScheduled)
}

func TestExecute_ReindexAutoCountsBeforeWrite(t *testing.T) {
	f := newFixture(t, WithReindexThreshold(1))
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())

	// The table is empty when the request starts, so three new rows
	// still fall under the threshold.
	req := addRequest(ident, "question", "one", "two", "three")
	req.Reindex = core.ReindexAuto
	result, err := f.exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.ReindexScheduled)
	assert.Equal(t, []string{"reindex qa"}, f.queue.submitted())
	assert.Len(t, f.rows(t, ident), 3)
}

func TestExecute_PlainOnlyRows(t *testing.T) {
	f := newFixture(t, WithBatchSizes(2, 0))
	ident := f.createTable(t, core.KindAction, "plain", generatedColumns(0, ""))

	values := make([]string, 10)
	for i := range values {
		values[i] = fmt.Sprintf("row-%d", i)
	}
	result, err := f.exec.Execute(context.Background(), addRequest(ident, "q", values...))
	require.NoError(t, err)
	require.Len(t, result.Rows, 10)

	rows := f.rows(t, ident)
	require.Len(t, rows, 10)
	for i, row := range rows {
		assert.Equal(t, values[i], row.Values["q"])
	}
	assert.Zero(t, f.llm.PredictCalls())
}

func TestStream_PlainOnlyRows(t *testing.T) {
	f := newFixture(t, WithBatchSizes(1, 0))
	ident := f.createTable(t, core.KindAction, "plain", generatedColumns(0, ""))

	seq, err := f.exec.Stream(context.Background(), addRequest(ident, "q", "a", "b", "c", "d"))
	require.NoError(t, err)
	var got []int
	for ev, err := range seq {
		require.NoError(t, err)
		if ev.Type == EventRow {
			got = append(got, ev.RowIndex)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3}, got)
	assert.Len(t, f.rows(t, ident), 4)
}

func TestExecute_MixedSuppliedAndComputedRows(t *testing.T) {
	f := newFixture(t, WithBatchSizes(2, 0))
	ident := f.createTable(t, core.KindAction, "qa", qaColumns())

	req := addRequest(ident, "question")
	for i := range 8 {
		values := map[string]any{"question": fmt.Sprintf("q%d", i)}
		if i%2 == 0 {
			values["answer"] = fmt.Sprintf("given %d", i)
			values["answer_vec"] = unitVector(mock.DefaultDimension)
		}
		req.Rows = append(req.Rows, RowPayload{Values: values})
	}
	result, err := f.exec.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Rows, 8)

	rows := f.rows(t, ident)
	require.Len(t, rows, 8)
	for i, row := range rows {
		if i%2 == 0 {
			assert.Equal(t, fmt.Sprintf("given %d", i), row.Values["answer"])
		} else {
			assert.Equal(t, fmt.Sprintf("Answer: q%d", i), row.Values["answer"])
		}
		assert.Empty(t, row.State)
	}
	assert.Equal(t, 4, f.llm.PredictCalls())
	assert.Equal(t, 4, f.embedder.CallCount())
}

func unitVector(n int) []float32 {
	v := make([]float32, n)
	v[0] = 1
	return v
}

func TestShouldReindex(t *testing.T) {
	tests := []struct {
		name   string
		intent core.ReindexIntent
		count  int
		want   bool
	}{
		{"auto small", core.ReindexAuto, 100, true},
		{"auto at threshold", core.ReindexAuto, 2000, true},
		{"auto large", core.ReindexAuto, 2500, false},
		{"forced yes", core.ReindexYes, 2500, true},
		{"forced no", core.ReindexNo, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReindex(tt.intent, tt.count, DefaultReindexThreshold))
		})
	}
}
