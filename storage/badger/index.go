package badger

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
)

// rrfK is the rank offset of reciprocal rank fusion.
const rrfK = 60

// CreateIndexes rebuilds the vector index of every embedding column when the
// table changed since the last build.
func (e *Engine) CreateIndexes(ctx context.Context, tableID string) (bool, error) {
	e.backend.indexMu.Lock()
	defer e.backend.indexMu.Unlock()

	meta, err := e.OpenTable(ctx, tableID)
	if err != nil {
		return false, err
	}
	if meta.IndexedVersion == meta.Version {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if err := e.backend.DropPrefix(makeTableScope(indexPrefix, tableID)); err != nil {
		return false, err
	}

	cols := meta.EmbeddingColumns()
	wb := e.backend.NewWriteBatch()
	defer wb.Cancel()

	entries := 0
	err = e.backend.View(func(tx *badger.Txn) error {
		// Index against the metadata visible in this snapshot.
		snap, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}
		meta = snap
		return iterateRows(tx, tableID, snap, func(_ []byte, row *core.Row) error {
			for _, col := range cols {
				vec, ok := row.Values[col.ID].([]float32)
				if !ok || len(vec) == 0 {
					continue
				}
				if err := wb.Set(makeIndexEntryKey(tableID, col.ID, row.ID), encodeVector(vec)); err != nil {
					return err
				}
				entries++
			}
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	if err := wb.Flush(); err != nil {
		return false, err
	}

	indexed := meta.Version
	err = e.backend.Update(ctx, func(tx *badger.Txn) error {
		current, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}
		current.IndexedVersion = indexed
		return writeMeta(tx, current)
	})
	if err != nil {
		return false, err
	}
	e.logger.Debug("indexes rebuilt", "table", tableID, "version", indexed, "entries", entries)
	return true, nil
}

// HybridSearch ranks filtered rows by vector similarity and lexical overlap
// and fuses the rankings with reciprocal rank fusion.
func (e *Engine) HybridSearch(ctx context.Context, tableID string, params storage.SearchParams) ([]*core.ScoredRow, error) {
	if params.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", core.ErrInvalidQuery)
	}
	refine := max(params.RefineFactor, 1)
	pool := params.Limit * refine

	var results []*core.ScoredRow
	err := e.backend.View(func(tx *badger.Txn) error {
		meta, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}
		for col, vec := range params.Vectors {
			spec, ok := meta.Column(col)
			if !ok || spec.VectorLength == 0 {
				return fmt.Errorf("%w: %q is not a vector column", core.ErrUnknownColumn, col)
			}
			if len(vec) != spec.VectorLength {
				return fmt.Errorf("%w: column %q expects %d, got %d", storage.ErrDimensionMismatch, col, spec.VectorLength, len(vec))
			}
		}

		candidates := make(map[string]*core.Row)
		var rankings [][]string

		if len(params.Vectors) > 0 {
			indexed := meta.IndexedVersion == meta.Version
			for col, query := range params.Vectors {
				spec, _ := meta.Column(col)
				var ranked []scored
				if indexed {
					ranked, err = e.rankIndexed(tx, meta, spec.ID, query, params, pool, candidates)
				} else {
					ranked, err = e.rankScan(tx, meta, spec.ID, query, params, pool, candidates)
				}
				if err != nil {
					return err
				}
				rankings = append(rankings, ids(ranked))
			}
		}

		terms := tokenize(params.Text)
		if len(terms) > 0 && len(params.TextColumns) > 0 {
			ranked, err := rankLexical(tx, meta, terms, params, pool, candidates)
			if err != nil {
				return err
			}
			rankings = append(rankings, ids(ranked))
		}

		if len(rankings) == 0 {
			return iterateRows(tx, tableID, meta, func(_ []byte, row *core.Row) error {
				if !params.Filter.Matches(row) {
					return nil
				}
				if len(results) >= params.Limit {
					return errStopIteration
				}
				results = append(results, &core.ScoredRow{Row: row})
				return nil
			})
		}

		for _, hit := range fuse(rankings, params.Limit) {
			results = append(results, &core.ScoredRow{Row: candidates[hit.id], Score: float32(hit.score)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

type scored struct {
	id    string
	score float64
}

// rankIndexed scores every index entry then refines the best ones against
// the filter until pool rows are collected.
func (e *Engine) rankIndexed(tx *badger.Txn, meta *core.TableMeta, column string, query []float32, params storage.SearchParams, pool int, candidates map[string]*core.Row) ([]scored, error) {
	prefix := makeIndexEntryPrefix(meta.ID, column)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var all []scored
	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		rowID := string(item.Key()[len(prefix):])
		err := item.Value(func(val []byte) error {
			vec, err := decodeVector(val)
			if err != nil {
				return err
			}
			all = append(all, scored{id: rowID, score: similarity(params.Metric, query, vec)})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sortScored(all)

	ranked := make([]scored, 0, min(pool, len(all)))
	for _, s := range all {
		if len(ranked) >= pool {
			break
		}
		row, ok := candidates[s.id]
		if !ok {
			var err error
			row, _, err = readRow(tx, meta, s.id)
			if errors.Is(err, core.ErrRowNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		if !params.Filter.Matches(row) {
			continue
		}
		candidates[s.id] = row
		ranked = append(ranked, s)
	}
	return ranked, nil
}

// rankScan scores stored vectors directly when the index is stale.
func (e *Engine) rankScan(tx *badger.Txn, meta *core.TableMeta, column string, query []float32, params storage.SearchParams, pool int, candidates map[string]*core.Row) ([]scored, error) {
	var all []scored
	rows := make(map[string]*core.Row)
	err := iterateRows(tx, meta.ID, meta, func(_ []byte, row *core.Row) error {
		vec, ok := row.Values[column].([]float32)
		if !ok || len(vec) == 0 || !params.Filter.Matches(row) {
			return nil
		}
		all = append(all, scored{id: row.ID, score: similarity(params.Metric, query, vec)})
		rows[row.ID] = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortScored(all)
	if len(all) > pool {
		all = all[:pool]
	}
	for _, s := range all {
		if _, ok := candidates[s.id]; !ok {
			candidates[s.id] = rows[s.id]
		}
	}
	return all, nil
}

func rankLexical(tx *badger.Txn, meta *core.TableMeta, terms []string, params storage.SearchParams, pool int, candidates map[string]*core.Row) ([]scored, error) {
	var all []scored
	rows := make(map[string]*core.Row)
	err := iterateRows(tx, meta.ID, meta, func(_ []byte, row *core.Row) error {
		if !params.Filter.Matches(row) {
			return nil
		}
		best := 0.0
		for _, col := range params.TextColumns {
			best = max(best, lexicalScore(terms, row.Text(col)))
		}
		if best > 0 {
			all = append(all, scored{id: row.ID, score: best})
			rows[row.ID] = row
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortScored(all)
	if len(all) > pool {
		all = all[:pool]
	}
	for _, s := range all {
		if _, ok := candidates[s.id]; !ok {
			candidates[s.id] = rows[s.id]
		}
	}
	return all, nil
}

// fuse combines rankings with reciprocal rank fusion and returns the top
// limit hits.
func fuse(rankings [][]string, limit int) []scored {
	totals := make(map[string]float64)
	var order []string
	for _, ranking := range rankings {
		for rank, id := range ranking {
			if _, ok := totals[id]; !ok {
				order = append(order, id)
			}
			totals[id] += 1.0 / float64(rrfK+rank+1)
		}
	}
	fused := make([]scored, 0, len(order))
	for _, id := range order {
		fused = append(fused, scored{id: id, score: totals[id]})
	}
	sortScored(fused)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// sortScored orders by descending score, breaking ties by id.
func sortScored(s []scored) {
	slices.SortStableFunc(s, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
}

func ids(s []scored) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s[i].id
	}
	return out
}

// similarity returns a score where larger is closer.
func similarity(metric core.Metric, a, b []float32) float64 {
	n := min(len(a), len(b))
	switch metric {
	case core.MetricDot:
		var dot float64
		for i := 0; i < n; i++ {
			dot += float64(a[i]) * float64(b[i])
		}
		return dot
	case core.MetricL2:
		var sum float64
		for i := 0; i < n; i++ {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return -math.Sqrt(sum)
	default:
		var dot float64
		for i := 0; i < n; i++ {
			dot += float64(a[i]) * float64(b[i])
		}
		na, nb := core.L2Norm(a), core.L2Norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (na * nb)
	}
}

// makeIndexEntryPrefix generates the prefix of one column's index entries.
// Format: idx:tableID\x00column\x00
func makeIndexEntryPrefix(tableID, column string) []byte {
	return append(makeIndexKey(tableID, column), sep)
}

// makeIndexEntryKey generates a key for one indexed vector.
func makeIndexEntryKey(tableID, column, rowID string) []byte {
	return append(makeIndexEntryPrefix(tableID, column), rowID...)
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, storage.ErrTruncatedData
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
