package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
)

// Engine implements storage.TableStore on one BadgerDB location.
type Engine struct {
	backend *Backend
	loc     core.Locator
	logger  *slog.Logger
	now     func() time.Time
}

var _ storage.TableStore = (*Engine)(nil)

// NewEngine creates an engine over an open backend.
func NewEngine(backend *Backend, loc core.Locator) *Engine {
	return &Engine{
		backend: backend,
		loc:     loc,
		logger:  slog.Default().With("component", "table-engine", "locator", loc.Path()),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateTable stores new table metadata.
func (e *Engine) CreateTable(ctx context.Context, meta *core.TableMeta) (*core.TableMeta, error) {
	if err := core.ValidateIdentifier(meta.ID); err != nil {
		return nil, err
	}
	if err := core.ValidateColumns(meta.Columns); err != nil {
		return nil, err
	}

	created := *meta
	created.Columns = slices.Clone(meta.Columns)
	created.Kind = e.loc.Kind
	created.Version = 1
	created.IndexedVersion = 0
	created.CompactedVersion = 0
	created.CreatedAt = e.now()
	created.UpdatedAt = created.CreatedAt

	err := e.backend.Update(ctx, func(tx *badger.Txn) error {
		if _, err := tx.Get(makeTableKey(created.ID)); err == nil {
			return fmt.Errorf("%w: %q", core.ErrTableExists, created.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := writeMeta(tx, &created); err != nil {
			return err
		}
		return writeCount(tx, created.ID, 0)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("table created", "table", created.ID, "columns", len(created.Columns))
	return &created, nil
}

// OpenTable returns table metadata.
func (e *Engine) OpenTable(ctx context.Context, tableID string) (*core.TableMeta, error) {
	var meta *core.TableMeta
	err := e.backend.View(func(tx *badger.Txn) error {
		var err error
		meta, err = readMeta(tx, tableID)
		return err
	})
	return meta, err
}

// ListTables returns tables ordered by id along with the total count.
func (e *Engine) ListTables(ctx context.Context, offset, limit int, parentID *string) ([]*core.TableMeta, int, error) {
	var (
		tables []*core.TableMeta
		total  int
	)
	err := e.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(tablePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var meta *core.TableMeta
			err := iter.Item().Value(func(val []byte) error {
				var err error
				meta, err = storage.UnmarshalMeta(val)
				return err
			})
			if err != nil {
				return err
			}
			if parentID != nil && (meta.ParentID == nil || *meta.ParentID != *parentID) {
				continue
			}
			total++
			if total <= offset || (limit > 0 && len(tables) >= limit) {
				continue
			}
			tables = append(tables, meta)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return tables, total, nil
}

// DuplicateTable copies a table to a new id. The copy records the source as
// its parent.
func (e *Engine) DuplicateTable(ctx context.Context, sourceID, destID string, includeData bool) (*core.TableMeta, error) {
	if err := core.ValidateIdentifier(destID); err != nil {
		return nil, err
	}
	source, err := e.OpenTable(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if _, err := e.OpenTable(ctx, destID); err == nil {
		return nil, fmt.Errorf("%w: %q", core.ErrTableExists, destID)
	}

	var copied uint64
	if includeData {
		if copied, err = e.copyScope(rowPrefix, sourceID, destID); err != nil {
			_ = e.backend.DropPrefix(tableScopes(destID)...)
			return nil, err
		}
	}

	dup := *source
	dup.ID = destID
	dup.Columns = slices.Clone(source.Columns)
	parent := sourceID
	dup.ParentID = &parent
	dup.Version = 1
	dup.IndexedVersion = 0
	dup.CompactedVersion = 0
	dup.CreatedAt = e.now()
	dup.UpdatedAt = dup.CreatedAt

	err = e.backend.Update(ctx, func(tx *badger.Txn) error {
		if _, err := tx.Get(makeTableKey(destID)); err == nil {
			return fmt.Errorf("%w: %q", core.ErrTableExists, destID)
		}
		if err := writeMeta(tx, &dup); err != nil {
			return err
		}
		return writeCount(tx, destID, copied)
	})
	if err != nil {
		_ = e.backend.DropPrefix(tableScopes(destID)...)
		return nil, err
	}
	return &dup, nil
}

// RenameTable changes a table id, moving rows, versions and indexes.
func (e *Engine) RenameTable(ctx context.Context, tableID, newID string) (*core.TableMeta, error) {
	if err := core.ValidateIdentifier(newID); err != nil {
		return nil, err
	}
	meta, err := e.OpenTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if _, err := e.OpenTable(ctx, newID); err == nil {
		return nil, fmt.Errorf("%w: %q", core.ErrTableExists, newID)
	}

	for _, prefix := range []string{rowPrefix, versionPrefix, indexPrefix} {
		if _, err := e.copyScope(prefix, tableID, newID); err != nil {
			_ = e.backend.DropPrefix(tableScopes(newID)...)
			return nil, err
		}
	}

	renamed := *meta
	renamed.ID = newID
	renamed.Version++
	renamed.UpdatedAt = e.now()

	err = e.backend.Update(ctx, func(tx *badger.Txn) error {
		count, err := readCount(tx, tableID)
		if err != nil {
			return err
		}
		if err := writeMeta(tx, &renamed); err != nil {
			return err
		}
		if err := writeCount(tx, newID, count); err != nil {
			return err
		}
		if err := tx.Delete(makeTableKey(tableID)); err != nil {
			return err
		}
		return tx.Delete(makeCountKey(tableID))
	})
	if err != nil {
		_ = e.backend.DropPrefix(tableScopes(newID)...)
		return nil, err
	}
	if err := e.backend.DropPrefix(tableScopes(tableID)...); err != nil {
		e.logger.Warn("failed to drop renamed table data", "table", tableID, "err", err)
	}
	return &renamed, nil
}

// DeleteTable removes a table with its rows, versions and indexes.
func (e *Engine) DeleteTable(ctx context.Context, tableID string) error {
	err := e.backend.Update(ctx, func(tx *badger.Txn) error {
		if _, err := readMeta(tx, tableID); err != nil {
			return err
		}
		if err := tx.Delete(makeTableKey(tableID)); err != nil {
			return err
		}
		return tx.Delete(makeCountKey(tableID))
	})
	if err != nil {
		return err
	}
	return e.backend.DropPrefix(tableScopes(tableID)...)
}

// UpdateColumns replaces the column list, rewriting stored rows so dropped
// columns disappear and renamed columns keep their values.
func (e *Engine) UpdateColumns(ctx context.Context, tableID string, cols []core.ColumnSpec, renames map[string]string) (*core.TableMeta, error) {
	if err := core.ValidateColumns(cols); err != nil {
		return nil, err
	}

	var updated *core.TableMeta
	err := e.backend.Update(ctx, func(tx *badger.Txn) error {
		meta, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}

		// Rows are decoded with a schema that knows both old and new names.
		decodeMeta := *meta
		decodeMeta.Columns = append(slices.Clone(meta.Columns), cols...)

		keep := make(map[string]bool, len(cols))
		for _, c := range cols {
			keep[c.ID] = true
		}

		type rewrite struct {
			key []byte
			row *core.Row
		}
		var rewrites []rewrite
		err = iterateRows(tx, tableID, &decodeMeta, func(key []byte, row *core.Row) error {
			for from, to := range renames {
				if v, ok := row.Values[from]; ok {
					row.Values[to] = v
					delete(row.Values, from)
				}
				if s, ok := row.State[from]; ok {
					row.State[to] = s
					delete(row.State, from)
				}
			}
			for col := range row.Values {
				if !keep[col] {
					delete(row.Values, col)
					delete(row.State, col)
				}
			}
			rewrites = append(rewrites, rewrite{key: key, row: row})
			return nil
		})
		if err != nil {
			return err
		}
		for _, rw := range rewrites {
			data, err := storage.MarshalRow(rw.row)
			if err != nil {
				return err
			}
			if err := tx.Set(rw.key, data); err != nil {
				return err
			}
		}

		meta.Columns = slices.Clone(cols)
		e.bump(meta)
		if err := writeMeta(tx, meta); err != nil {
			return err
		}
		updated = meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// copyScope copies every key of one table scope to another table id and
// returns the number of keys copied.
func (e *Engine) copyScope(prefix, fromID, toID string) (uint64, error) {
	from := makeTableScope(prefix, fromID)
	to := makeTableScope(prefix, toID)

	wb := e.backend.NewWriteBatch()
	defer wb.Cancel()

	var copied uint64
	err := e.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = from
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := append(slices.Clone(to), item.Key()[len(from):]...)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := wb.Set(key, val); err != nil {
				return err
			}
			copied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return copied, wb.Flush()
}

func (e *Engine) bump(meta *core.TableMeta) {
	meta.Version++
	meta.UpdatedAt = e.now()
}

func readMeta(tx *badger.Txn, tableID string) (*core.TableMeta, error) {
	item, err := tx.Get(makeTableKey(tableID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %q", core.ErrTableNotFound, tableID)
		}
		return nil, err
	}
	var meta *core.TableMeta
	err = item.Value(func(val []byte) error {
		meta, err = storage.UnmarshalMeta(val)
		return err
	})
	return meta, err
}

func writeMeta(tx *badger.Txn, meta *core.TableMeta) error {
	data, err := storage.MarshalMeta(meta)
	if err != nil {
		return err
	}
	return tx.Set(makeTableKey(meta.ID), data)
}

func readCount(tx *badger.Txn, tableID string) (uint64, error) {
	return readCounterKey(tx, makeCountKey(tableID))
}

func writeCount(tx *badger.Txn, tableID string, n uint64) error {
	return tx.Set(makeCountKey(tableID), storage.MarshalCounter(n))
}
