package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// CompactFiles reclaims storage when the table changed since the last
// compaction. Returns false if there was nothing to do or the collector was
// busy.
func (e *Engine) CompactFiles(ctx context.Context, tableID string) (bool, error) {
	meta, err := e.OpenTable(ctx, tableID)
	if err != nil {
		return false, err
	}
	if meta.CompactedVersion == meta.Version {
		return false, nil
	}

	ran, err := e.backend.RunGC()
	if err != nil || !ran {
		return false, err
	}

	compacted := meta.Version
	err = e.backend.Update(ctx, func(tx *badger.Txn) error {
		current, err := readMeta(tx, tableID)
		if err != nil {
			return err
		}
		current.CompactedVersion = compacted
		return writeMeta(tx, current)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// CleanupOldVersions deletes superseded row versions older than olderThan.
func (e *Engine) CleanupOldVersions(ctx context.Context, tableID string, olderThan time.Duration) (bool, error) {
	if _, err := e.OpenTable(ctx, tableID); err != nil {
		return false, err
	}
	cutoff := e.now().Add(-olderThan)

	var stale [][]byte
	err := e.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTableScope(versionPrefix, tableID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			// Version keys sort by time, so the first recent one ends the scan.
			if !versionTimeFromKey(tableID, key).Before(cutoff) {
				break
			}
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if len(stale) == 0 {
		return true, nil
	}

	wb := e.backend.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return false, err
		}
	}
	if err := wb.Flush(); err != nil {
		return false, err
	}
	e.logger.Debug("pruned row versions", "table", tableID, "count", len(stale))
	return true, nil
}
