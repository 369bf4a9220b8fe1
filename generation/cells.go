package generation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
	"golang.org/x/sync/errgroup"
)

// computeRow runs the column batches of one row in order and sends every
// cell result to out. Cells of a batch see the values of earlier batches.
func (e *Executor) computeRow(ctx context.Context, p *plan, r *plannedRow, out chan<- cellResult) {
	values := make(map[string]any, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}

	pos := 0
	for _, batch := range r.batches {
		results := make([]cellResult, len(batch))
		var g errgroup.Group
		g.SetLimit(e.colsBatch)
		for j, col := range batch {
			g.Go(func() error {
				res := e.computeCell(ctx, p, r, col, values)
				res.pos = pos + j
				results[j] = res
				out <- res
				return nil
			})
		}
		_ = g.Wait()
		for _, res := range results {
			if res.err == nil {
				values[res.column] = res.value
			}
		}
		pos += len(batch)
	}
}

func (e *Executor) computeCell(ctx context.Context, p *plan, r *plannedRow, col *core.ColumnSpec, values map[string]any) cellResult {
	res := cellResult{column: col.ID}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	model := col.Model()
	if _, ok := p.creds.For(model); !ok {
		res.err = fmt.Errorf("%w: %q", core.ErrMissingCredential, core.ProviderOf(model))
	} else if col.Kind == core.ValueEmbedding {
		res.value, res.err = e.embedCell(ctx, p, col, values)
	} else {
		res.value, res.err = e.generateCell(ctx, p, r, col, values)
	}
	if res.err != nil && ctx.Err() == nil {
		e.logger.Warn("cell computation failed", "table", p.meta.ID, "row", r.index, "column", col.ID, "err", res.err)
	}
	return res
}

func (e *Executor) generateCell(ctx context.Context, p *plan, r *plannedRow, col *core.ColumnSpec, values map[string]any) (any, error) {
	messages, ok := r.threads[col.ID]
	if ok {
		messages = slices.Clone(messages)
	} else if col.Gen.SystemPrompt != "" {
		messages = []core.Message{{Role: core.RoleSystem, Content: col.Gen.SystemPrompt}}
	}
	messages = append(messages, core.Message{Role: core.RoleUser, Content: core.RenderPrompt(col.Gen.Prompt, values)})

	params := ai.SamplingParams{
		Temperature: col.Gen.Temperature,
		TopP:        col.Gen.TopP,
		MaxTokens:   col.Gen.MaxTokens,
	}
	return e.llm.Predict(ctx, col.Gen.Model, messages, params, p.creds)
}

// embedCell embeds the source column text. Empty text leaves the cell empty.
func (e *Executor) embedCell(ctx context.Context, p *plan, col *core.ColumnSpec, values map[string]any) (any, error) {
	src, ok := p.meta.Column(col.Gen.SourceColumn)
	if !ok {
		return nil, fmt.Errorf("%w: source %q", core.ErrUnknownColumn, col.Gen.SourceColumn)
	}
	text := (&core.Row{Values: values}).Text(src.ID)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	vecs, err := e.embedder.Embed(ctx, []string{text}, col.Gen.EmbeddingModel, p.creds)
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: want 1, got %d", ai.ErrEmbeddingCount, len(vecs))
	}
	vec := core.NormalizeVector(vecs[0])
	if col.VectorLength > 0 && len(vec) != col.VectorLength {
		return nil, fmt.Errorf("%w: column %q expects %d, got %d", storage.ErrDimensionMismatch, col.ID, col.VectorLength, len(vec))
	}
	return vec, nil
}
