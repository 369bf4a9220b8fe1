package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
	"github.com/poiesic/gentable/tables"
)

// plan is a validated request ready to run.
type plan struct {
	op      Op
	loc     core.Locator
	meta    *core.TableMeta
	rows    []plannedRow
	creds   core.Credentials
	reindex core.ReindexIntent
	// prior is the table's row count before the request writes.
	prior   int
}

// plannedRow is one row with the columns it still needs computed.
type plannedRow struct {
	index   int
	id      string
	regen   bool
	values  map[string]any
	batches [][]*core.ColumnSpec

	// threads holds the conversation history of multi-turn columns.
	threads map[string][]core.Message
}

type cellResult struct {
	pos    int
	column string
	value  any
	err    error
}

func (r *plannedRow) cellCount() int {
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func (r *plannedRow) cellEvent(res cellResult) Event {
	ev := Event{
		Type:     EventCell,
		RowIndex: r.index,
		RowID:    r.id,
		Column:   res.column,
		Value:    res.value,
	}
	if res.err != nil {
		ev.Error = res.err.Error()
		ev.Value = nil
	}
	return ev
}

// assemble builds the row to store from the computed cells. A regenerated
// row carries only the computed columns.
func (r *plannedRow) assemble(cells []cellResult) *core.Row {
	row := &core.Row{
		ID:     r.id,
		Values: make(map[string]any, len(r.values)+len(cells)),
		State:  make(map[string]core.CellState),
	}
	if !r.regen {
		for k, v := range r.values {
			row.Values[k] = v
		}
	}
	for _, c := range cells {
		if c.err != nil {
			row.Values[c.column] = nil
			row.State[c.column] = core.CellState{Error: c.err.Error()}
			continue
		}
		row.Values[c.column] = c.value
	}
	return row
}

// write stores rows in one transaction.
func (p *plan) write(ctx context.Context, session storage.Session, rows ...*core.Row) error {
	if p.op == OpRegen {
		return session.UpdateRows(ctx, p.meta.ID, rows...)
	}
	_, err := session.AddRows(ctx, p.meta.ID, rows...)
	return err
}

// prepare validates a request and loads everything the run reads.
func (e *Executor) prepare(ctx context.Context, req Request) (*plan, error) {
	loc, err := tables.Resolve(e.root, req.Table)
	if err != nil {
		return nil, err
	}
	table, err := tables.New(req.Table.Kind, loc)
	if err != nil {
		return nil, err
	}

	session, err := e.opener.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	meta, err := session.OpenTable(ctx, req.Table.TableID)
	if err != nil {
		return nil, err
	}
	columns, err := selectColumns(meta, req)
	if err != nil {
		return nil, err
	}
	prior, err := session.CountRows(ctx, meta.ID)
	if err != nil {
		return nil, err
	}

	p := &plan{
		op:      req.Op,
		loc:     loc,
		meta:    meta,
		creds:   req.Credentials.Merge(e.defaults),
		reindex: req.Reindex,
		prior:   prior,
	}
	switch req.Op {
	case OpAdd:
		for i, payload := range req.Rows {
			if err := table.ValidateWrite(tables.OpAdd, meta, payload.Values); err != nil {
				return nil, err
			}
			values := canonicalValues(meta, payload.Values)
			var missing []*core.ColumnSpec
			for _, col := range columns {
				if values[col.ID] == nil {
					missing = append(missing, col)
				}
			}
			p.rows = append(p.rows, plannedRow{
				index:   i,
				values:  values,
				batches: batchColumns(missing, e.colsBatch),
			})
		}
	case OpRegen:
		for i, payload := range req.Rows {
			if payload.RowID == "" {
				return nil, fmt.Errorf("%w: row %d has no id", core.ErrRowNotFound, i)
			}
			row, err := session.GetRow(ctx, meta.ID, payload.RowID)
			if err != nil {
				return nil, err
			}
			p.rows = append(p.rows, plannedRow{
				index:   i,
				id:      row.ID,
				regen:   true,
				values:  row.Values,
				batches: batchColumns(columns, e.colsBatch),
			})
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOp, req.Op)
	}

	if chat, ok := table.(*tables.Chat); ok {
		if err := p.loadThreads(ctx, session, chat, columns); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// loadThreads attaches the conversation history each multi-turn cell
// continues: every stored row for new rows, the rows before it for a
// regenerated row.
func (p *plan) loadThreads(ctx context.Context, session storage.Session, chat *tables.Chat, columns []*core.ColumnSpec) error {
	var multi []*core.ColumnSpec
	for _, col := range columns {
		if col.Kind == core.ValueGenerated && col.Gen.MultiTurn {
			multi = append(multi, col)
		}
	}
	if len(multi) == 0 {
		return nil
	}
	history, _, err := session.ListRows(ctx, p.meta.ID, 0, 0)
	if err != nil {
		return err
	}
	position := make(map[string]int, len(history))
	for i, row := range history {
		position[row.ID] = i
	}

	for i := range p.rows {
		r := &p.rows[i]
		prior := history
		if r.regen {
			prior = history[:position[r.id]]
		}
		r.threads = make(map[string][]core.Message, len(multi))
		for _, col := range multi {
			thread, err := chat.ConversationThread(p.meta, prior, col.ID)
			if err != nil {
				return err
			}
			r.threads[col.ID] = thread
		}
	}
	return nil
}

// selectColumns returns the computed columns a request recomputes, in
// schema order.
func selectColumns(meta *core.TableMeta, req Request) ([]*core.ColumnSpec, error) {
	var cols []*core.ColumnSpec
	if req.Op == OpRegen && len(req.Columns) > 0 {
		seen := make(map[string]bool)
		for _, name := range req.Columns {
			col, ok := meta.Column(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, name)
			}
			if !col.IsComputed() {
				return nil, fmt.Errorf("%w: %q is not a computed column", core.ErrInvalidColumn, name)
			}
			seen[col.ID] = true
		}
		for i := range meta.Columns {
			if seen[meta.Columns[i].ID] {
				cols = append(cols, &meta.Columns[i])
			}
		}
		return cols, nil
	}
	for i := range meta.Columns {
		if meta.Columns[i].IsComputed() {
			cols = append(cols, &meta.Columns[i])
		}
	}
	return cols, nil
}

// canonicalValues keys supplied values by their schema column id.
func canonicalValues(meta *core.TableMeta, values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for name, v := range values {
		col, ok := meta.Column(name)
		if !ok {
			continue
		}
		if col.DataType == core.DataVector {
			if vec, ok := asVector(v); ok {
				v = vec
			}
		}
		out[col.ID] = v
	}
	return out
}

// asVector converts JSON-decoded number arrays to a vector.
func asVector(v any) ([]float32, bool) {
	switch x := v.(type) {
	case []float32:
		return x, true
	case []float64:
		vec := make([]float32, len(x))
		for i, f := range x {
			vec[i] = float32(f)
		}
		return vec, true
	case []any:
		vec := make([]float32, len(x))
		for i, item := range x {
			f, ok := item.(float64)
			if !ok {
				return nil, false
			}
			vec[i] = float32(f)
		}
		return vec, true
	default:
		return nil, false
	}
}

// batchColumns splits columns into batches of at most size. A batch closes
// early when the next column reads a column of the current batch.
func batchColumns(cols []*core.ColumnSpec, size int) [][]*core.ColumnSpec {
	var (
		batches [][]*core.ColumnSpec
		current []*core.ColumnSpec
		members = make(map[string]bool)
	)
	for _, col := range cols {
		if len(current) > 0 && (len(current) >= size || dependsOn(col, members)) {
			batches = append(batches, current)
			current = nil
			members = make(map[string]bool)
		}
		current = append(current, col)
		members[strings.ToLower(col.ID)] = true
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func dependsOn(col *core.ColumnSpec, members map[string]bool) bool {
	if col.Gen == nil {
		return false
	}
	if col.Kind == core.ValueEmbedding {
		return members[strings.ToLower(strings.TrimSpace(col.Gen.SourceColumn))]
	}
	for _, ref := range core.PromptReferences(col.Gen.Prompt) {
		if members[strings.ToLower(ref)] {
			return true
		}
	}
	return false
}
