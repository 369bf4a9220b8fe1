package badger

import (
	"context"
	"testing"

	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileTable(t *testing.T) *FileTable {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return NewFileTable(backend, testLocator(core.KindFile))
}

func TestAddAndGetFile(t *testing.T) {
	f := newTestFileTable(t)
	ctx := context.Background()

	stored, err := f.AddFile(ctx, &core.FileRecord{Name: "notes.txt", Content: []byte("hello"), Checksum: "abc"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, int64(5), stored.Size)

	got, err := f.GetFile(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.Name)
	assert.Equal(t, "abc", got.Checksum)
	assert.Equal(t, []byte("hello"), got.Content)
	assert.Equal(t, stored.CreatedAt.UnixMicro(), got.CreatedAt.UnixMicro())

	_, err = f.GetFile(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListFiles(t *testing.T) {
	f := newTestFileTable(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := f.AddFile(ctx, &core.FileRecord{Name: name, Content: []byte(name)})
		require.NoError(t, err)
	}
	files, err := f.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Nil(t, files[0].Content)
}

func TestFileTableCompaction(t *testing.T) {
	f := newTestFileTable(t)
	ctx := context.Background()

	ok, err := f.CompactFiles(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "nothing stored yet")

	_, err = f.AddFile(ctx, &core.FileRecord{Name: "a.txt", Content: []byte("a")})
	require.NoError(t, err)
	ok, err = f.CompactFiles(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.CompactFiles(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.CleanupOldVersions(ctx, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
