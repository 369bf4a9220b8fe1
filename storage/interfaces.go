package storage

import (
	"context"
	"time"

	"github.com/poiesic/gentable/core"
)

// Opener hands out storage sessions for a locator. A session must be closed
// on every exit path of the operation that opened it.
// Implementations must be thread-safe and support concurrent access.
type Opener interface {
	// Open returns a session on the generative tables at loc, creating the
	// location if needed.
	Open(ctx context.Context, loc core.Locator) (Session, error)

	// OpenFiles returns a session on the file table at loc.
	OpenFiles(ctx context.Context, loc core.Locator) (FileSession, error)

	// Exists reports whether anything has been stored at loc.
	Exists(loc core.Locator) bool

	// Close releases every location.
	Close() error
}

// Session is a scoped handle on one location's generative tables.
type Session interface {
	TableStore
	Close() error
}

// FileSession is a scoped handle on one project's file table.
type FileSession interface {
	FileStore
	Close() error
}

// TableStore provides table, row, index and maintenance operations.
type TableStore interface {
	// CreateTable stores new table metadata.
	// Returns core.ErrTableExists if the id is taken.
	CreateTable(ctx context.Context, meta *core.TableMeta) (*core.TableMeta, error)

	// OpenTable returns table metadata.
	// Returns core.ErrTableNotFound if the table does not exist.
	OpenTable(ctx context.Context, tableID string) (*core.TableMeta, error)

	// ListTables returns tables ordered by id, optionally restricted to one
	// parent, along with the total count.
	ListTables(ctx context.Context, offset, limit int, parentID *string) ([]*core.TableMeta, int, error)

	// DuplicateTable copies a table's metadata, and optionally its rows, to a
	// new id.
	DuplicateTable(ctx context.Context, sourceID, destID string, includeData bool) (*core.TableMeta, error)

	// RenameTable changes a table id.
	RenameTable(ctx context.Context, tableID, newID string) (*core.TableMeta, error)

	// DeleteTable removes a table with its rows, versions and indexes.
	DeleteTable(ctx context.Context, tableID string) error

	// UpdateColumns replaces the column list. Values of dropped columns are
	// removed and renamed columns carry their values along.
	UpdateColumns(ctx context.Context, tableID string, cols []core.ColumnSpec, renames map[string]string) (*core.TableMeta, error)

	// ListRows returns rows in insertion order with the total count.
	ListRows(ctx context.Context, tableID string, offset, limit int) ([]*core.Row, int, error)

	// GetRow returns one row.
	// Returns core.ErrRowNotFound if the row does not exist.
	GetRow(ctx context.Context, tableID, rowID string) (*core.Row, error)

	// AddRows inserts rows atomically. Rows without an ID get a new one.
	AddRows(ctx context.Context, tableID string, rows ...*core.Row) ([]*core.Row, error)

	// UpdateRows replaces the given column values of existing rows
	// atomically, keeping the previous row as a version.
	UpdateRows(ctx context.Context, tableID string, rows ...*core.Row) error

	// DeleteRows removes rows by id, or every row matching filter when ids is
	// empty. Returns the number removed.
	DeleteRows(ctx context.Context, tableID string, ids []string, filter core.Filter) (int, error)

	// CountRows returns the number of rows.
	CountRows(ctx context.Context, tableID string) (int, error)

	// CreateIndexes rebuilds the vector indexes when the table changed since
	// the last build. Returns false if the index was already current.
	CreateIndexes(ctx context.Context, tableID string) (bool, error)

	// CompactFiles consolidates storage. Returns false if nothing changed
	// since the last compaction.
	CompactFiles(ctx context.Context, tableID string) (bool, error)

	// CleanupOldVersions prunes row versions older than olderThan.
	// Returns false if the cleanup could not complete.
	CleanupOldVersions(ctx context.Context, tableID string, olderThan time.Duration) (bool, error)

	// HybridSearch runs vector plus predicate retrieval.
	HybridSearch(ctx context.Context, tableID string, params SearchParams) ([]*core.ScoredRow, error)
}

// FileStore provides operations on uploaded files.
type FileStore interface {
	// AddFile stores a file. Content and checksum are kept verbatim.
	AddFile(ctx context.Context, file *core.FileRecord) (*core.FileRecord, error)

	// GetFile returns a file with its content.
	// Returns ErrNotFound if the file does not exist.
	GetFile(ctx context.Context, id string) (*core.FileRecord, error)

	// ListFiles returns file headers without content.
	ListFiles(ctx context.Context) ([]*core.FileRecord, error)

	// CompactFiles consolidates the file table.
	CompactFiles(ctx context.Context) (bool, error)

	// CleanupOldVersions prunes stale file table data.
	CleanupOldVersions(ctx context.Context, olderThan time.Duration) (bool, error)
}

// SearchParams configures a hybrid search.
type SearchParams struct {
	// Vectors holds one query vector per embedding column.
	Vectors map[string][]float32

	// Text is matched lexically against TextColumns.
	Text        string
	TextColumns []string

	Filter       core.Filter
	Limit        int
	Metric       core.Metric
	NProbes      int
	RefineFactor int
}
