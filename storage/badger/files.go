package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
)

// FileTable implements storage.FileStore on one project's file location.
type FileTable struct {
	backend *Backend
	logger  *slog.Logger
	now     func() time.Time
}

var _ storage.FileStore = (*FileTable)(nil)

// NewFileTable creates a file table over an open backend.
func NewFileTable(backend *Backend, loc core.Locator) *FileTable {
	return &FileTable{
		backend: backend,
		logger:  slog.Default().With("component", "file-table", "locator", loc.Path()),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddFile stores the header and content of a file in one transaction.
func (f *FileTable) AddFile(ctx context.Context, file *core.FileRecord) (*core.FileRecord, error) {
	stored := *file
	if stored.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		stored.ID = id.String()
	}
	if stored.Size == 0 {
		stored.Size = int64(len(stored.Content))
	}
	stored.CreatedAt = f.now()

	err := f.backend.Update(ctx, func(tx *badger.Txn) error {
		if err := tx.Set(makeFileKey(stored.ID), storage.MarshalFileHeader(&stored)); err != nil {
			return err
		}
		if err := tx.Set(makeBlobKey(stored.ID), stored.Content); err != nil {
			return err
		}
		version, err := readCounterKey(tx, []byte(fileVersionKey))
		if err != nil {
			return err
		}
		return tx.Set([]byte(fileVersionKey), storage.MarshalCounter(version+1))
	})
	if err != nil {
		return nil, err
	}
	f.logger.Debug("file stored", "file", stored.ID, "name", stored.Name, "size", stored.Size)
	return &stored, nil
}

// GetFile returns a file with its content.
func (f *FileTable) GetFile(ctx context.Context, id string) (*core.FileRecord, error) {
	var file *core.FileRecord
	err := f.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeFileKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: file %q", storage.ErrNotFound, id)
			}
			return err
		}
		err = item.Value(func(val []byte) error {
			file, err = storage.UnmarshalFileHeader(val)
			return err
		})
		if err != nil {
			return err
		}
		blob, err := tx.Get(makeBlobKey(id))
		if err != nil {
			return err
		}
		file.Content, err = blob.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ListFiles returns file headers in id order.
func (f *FileTable) ListFiles(ctx context.Context) ([]*core.FileRecord, error) {
	var files []*core.FileRecord
	err := f.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(filePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				file, err := storage.UnmarshalFileHeader(val)
				if err != nil {
					return err
				}
				files = append(files, file)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return files, err
}

// CompactFiles reclaims storage when files were added since the last
// compaction.
func (f *FileTable) CompactFiles(ctx context.Context) (bool, error) {
	var version, compacted uint64
	err := f.backend.View(func(tx *badger.Txn) error {
		var err error
		if version, err = readCounterKey(tx, []byte(fileVersionKey)); err != nil {
			return err
		}
		compacted, err = readCounterKey(tx, []byte(fileCompactedKey))
		return err
	})
	if err != nil {
		return false, err
	}
	if version == compacted {
		return false, nil
	}

	ran, err := f.backend.RunGC()
	if err != nil || !ran {
		return false, err
	}
	err = f.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set([]byte(fileCompactedKey), storage.MarshalCounter(version))
	})
	return err == nil, err
}

// CleanupOldVersions is a no-op for the file table because files are never
// rewritten in place.
func (f *FileTable) CleanupOldVersions(ctx context.Context, olderThan time.Duration) (bool, error) {
	return true, nil
}

func readCounterKey(tx *badger.Txn, key []byte) (uint64, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		n, err = storage.UnmarshalCounter(val)
		return err
	})
	return n, err
}
