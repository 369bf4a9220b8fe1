package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
)

// ListRows returns rows in insertion order with the total count.
func (e *Engine) ListRows(ctx context.Context, tableID string, offset, limit int) ([]*core.Row, int, error) {
	var (
		rows  []*core.Row
		total uint64
	)
	err := e.backend.View(func(tx *badger.Txn) error {
		meta, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}
		if total, err = readCount(tx, tableID); err != nil {
			return err
		}
		seen := 0
		return iterateRows(tx, tableID, meta, func(_ []byte, row *core.Row) error {
			seen++
			if seen <= offset {
				return nil
			}
			if limit > 0 && len(rows) >= limit {
				return errStopIteration
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, int(total), nil
}

// GetRow returns one row.
func (e *Engine) GetRow(ctx context.Context, tableID, rowID string) (*core.Row, error) {
	var row *core.Row
	err := e.backend.View(func(tx *badger.Txn) error {
		meta, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}
		row, _, err = readRow(tx, meta, rowID)
		return err
	})
	return row, err
}

// AddRows inserts rows atomically. Rows without an ID are assigned a
// time-ordered UUID so that key order matches insertion order.
func (e *Engine) AddRows(ctx context.Context, tableID string, rows ...*core.Row) ([]*core.Row, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	for _, row := range rows {
		if row.ID != "" {
			continue
		}
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		row.ID = id.String()
	}

	err := e.backend.Update(ctx, func(tx *badger.Txn) error {
		meta, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}
		count, err := readCount(tx, tableID)
		if err != nil {
			return err
		}
		now := e.now()
		for _, row := range rows {
			if err := checkVectors(meta, row.Values); err != nil {
				return err
			}
			row.UpdatedAt = now
			data, err := storage.MarshalRow(row)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRowKey(tableID, row.ID), data); err != nil {
				return err
			}
		}
		if err := writeCount(tx, tableID, count+uint64(len(rows))); err != nil {
			return err
		}
		e.bump(meta)
		return writeMeta(tx, meta)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateRows merges the given values into existing rows. The previous row
// is kept as a version until version cleanup removes it.
func (e *Engine) UpdateRows(ctx context.Context, tableID string, rows ...*core.Row) error {
	if len(rows) == 0 {
		return nil
	}
	return e.backend.Update(ctx, func(tx *badger.Txn) error {
		meta, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}
		now := e.now()
		for _, update := range rows {
			if err := checkVectors(meta, update.Values); err != nil {
				return err
			}
			existing, raw, err := readRow(tx, meta, update.ID)
			if err != nil {
				return err
			}
			if err := tx.Set(makeVersionKey(tableID, now, update.ID), raw); err != nil {
				return err
			}

			if existing.State == nil {
				existing.State = make(map[string]core.CellState)
			}
			for col, v := range update.Values {
				existing.Values[col] = v
				if s, ok := update.State[col]; ok {
					existing.State[col] = s
				} else {
					delete(existing.State, col)
				}
			}
			existing.UpdatedAt = now

			data, err := storage.MarshalRow(existing)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRowKey(tableID, update.ID), data); err != nil {
				return err
			}
			update.UpdatedAt = now
		}
		e.bump(meta)
		return writeMeta(tx, meta)
	})
}

// DeleteRows removes rows by id, or every row matching filter when ids is
// empty. Unknown ids are ignored.
func (e *Engine) DeleteRows(ctx context.Context, tableID string, ids []string, filter core.Filter) (int, error) {
	var removed int
	err := e.backend.Update(ctx, func(tx *badger.Txn) error {
		removed = 0
		meta, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}

		type victim struct {
			id  string
			raw []byte
		}
		var victims []victim
		if len(ids) > 0 {
			for _, id := range ids {
				_, raw, err := readRow(tx, meta, id)
				if errors.Is(err, core.ErrRowNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				victims = append(victims, victim{id: id, raw: raw})
			}
		} else {
			err = iterateRawRows(tx, tableID, func(key, raw []byte) error {
				row, err := storage.UnmarshalRow(raw, meta)
				if err != nil {
					return err
				}
				if filter.Matches(row) {
					victims = append(victims, victim{id: row.ID, raw: raw})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		if len(victims) == 0 {
			return nil
		}

		now := e.now()
		for _, v := range victims {
			if err := tx.Set(makeVersionKey(tableID, now, v.id), v.raw); err != nil {
				return err
			}
			if err := tx.Delete(makeRowKey(tableID, v.id)); err != nil {
				return err
			}
		}
		count, err := readCount(tx, tableID)
		if err != nil {
			return err
		}
		remaining := uint64(0)
		if count > uint64(len(victims)) {
			remaining = count - uint64(len(victims))
		}
		if err := writeCount(tx, tableID, remaining); err != nil {
			return err
		}
		removed = len(victims)
		e.bump(meta)
		return writeMeta(tx, meta)
	})
	return removed, err
}

// CountRows returns the number of rows.
func (e *Engine) CountRows(ctx context.Context, tableID string) (int, error) {
	var n uint64
	err := e.backend.View(func(tx *badger.Txn) error {
		if _, err := readMeta(tx, tableID); err != nil {
			return err
		}
		var err error
		n, err = readCount(tx, tableID)
		return err
	})
	return int(n), err
}

// errStopIteration ends a row scan early without failing it.
var errStopIteration = errors.New("stop iteration")

// iterateRawRows calls fn with each stored row of a table in key order.
func iterateRawRows(tx *badger.Txn, tableID string, fn func(key, raw []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeTableScope(rowPrefix, tableID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), raw); err != nil {
			if errors.Is(err, errStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

// iterateRows calls fn with each decoded row of a table in key order.
func iterateRows(tx *badger.Txn, tableID string, meta *core.TableMeta, fn func(key []byte, row *core.Row) error) error {
	return iterateRawRows(tx, tableID, func(key, raw []byte) error {
		row, err := storage.UnmarshalRow(raw, meta)
		if err != nil {
			return err
		}
		if row.State == nil {
			row.State = make(map[string]core.CellState)
		}
		return fn(key, row)
	})
}

// readRow returns a decoded row together with its stored bytes.
func readRow(tx *badger.Txn, meta *core.TableMeta, rowID string) (*core.Row, []byte, error) {
	item, err := tx.Get(makeRowKey(meta.ID, rowID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: %q", core.ErrRowNotFound, rowID)
		}
		return nil, nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	row, err := storage.UnmarshalRow(raw, meta)
	if err != nil {
		return nil, nil, err
	}
	if row.State == nil {
		row.State = make(map[string]core.CellState)
	}
	return row, raw, nil
}

// checkVectors verifies that vector values match their column length.
func checkVectors(meta *core.TableMeta, values map[string]any) error {
	for _, col := range meta.Columns {
		if col.VectorLength == 0 {
			continue
		}
		v, ok := values[col.ID]
		if !ok || v == nil {
			continue
		}
		vec, ok := v.([]float32)
		if !ok {
			return fmt.Errorf("%w: column %q holds %T", storage.ErrDimensionMismatch, col.ID, v)
		}
		if len(vec) != col.VectorLength {
			return fmt.Errorf("%w: column %q expects %d, got %d", storage.ErrDimensionMismatch, col.ID, col.VectorLength, len(vec))
		}
	}
	return nil
}
