package generation

import "github.com/poiesic/gentable/core"

// Op is the kind of mutation a request performs.
type Op int

const (
	// OpAdd inserts new rows.
	OpAdd Op = iota
	// OpRegen recomputes the computed columns of existing rows.
	OpRegen
)

// RowPayload is one row of a request.
type RowPayload struct {
	// RowID names the row to regenerate. Ignored by OpAdd.
	RowID string

	// Values are the supplied values of a new row. Supplied columns are
	// kept and not computed. Ignored by OpRegen.
	Values map[string]any
}

// Request is one add or regenerate call.
type Request struct {
	Table core.TableIdentity
	Op    Op
	Rows  []RowPayload

	// Columns limits regeneration to these computed columns. Empty means
	// every computed column.
	Columns []string

	Reindex     core.ReindexIntent
	Credentials core.Credentials
}

// EventType distinguishes stream events.
type EventType int

const (
	// EventCell carries one computed cell.
	EventCell EventType = iota
	// EventRow reports that a row was committed.
	EventRow
)

// Event is one element of a generation stream.
type Event struct {
	Type EventType

	// RowIndex is the position of the row in the request.
	RowIndex int

	// RowID is set on EventRow, and on EventCell for regenerated rows.
	RowID string

	// Column, Value and Error describe an EventCell.
	Column string
	Value  any
	Error  string

	// Row is the committed row of an EventRow.
	Row *core.Row
}

// Result is the outcome of a non-streaming request.
type Result struct {
	// Rows are the written rows in request order.
	Rows []*core.Row

	// ReindexScheduled reports whether an index rebuild was submitted.
	ReindexScheduled bool
}

// ShouldReindex applies the reindex policy: always for ReindexYes, never for
// ReindexNo, and for ReindexAuto only while the table holds at most
// threshold rows.
func ShouldReindex(intent core.ReindexIntent, rowCount, threshold int) bool {
	switch intent {
	case core.ReindexYes:
		return true
	case core.ReindexAuto:
		return rowCount <= threshold
	default:
		return false
	}
}
