package badger

import (
	"context"
	"testing"

	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SharesBackendPerLocator(t *testing.T) {
	r, err := NewMemoryRegistry()
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()
	loc := testLocator(core.KindAction)

	assert.False(t, r.Exists(loc))

	s1, err := r.Open(ctx, loc)
	require.NoError(t, err)
	_, err = s1.CreateTable(ctx, &core.TableMeta{ID: "t"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := r.Open(ctx, loc)
	require.NoError(t, err)
	defer s2.Close()
	_, err = s2.OpenTable(ctx, "t")
	require.NoError(t, err)
	assert.True(t, r.Exists(loc))

	other := loc
	other.Kind = core.KindChat
	s3, err := r.Open(ctx, other)
	require.NoError(t, err)
	defer s3.Close()
	_, err = s3.OpenTable(ctx, "t")
	assert.ErrorIs(t, err, core.ErrTableNotFound)
}

func TestRegistry_SessionAccounting(t *testing.T) {
	r, err := NewMemoryRegistry()
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	s, err := r.Open(ctx, testLocator(core.KindAction))
	require.NoError(t, err)
	f, err := r.OpenFiles(ctx, testLocator(core.KindFile))
	require.NoError(t, err)
	assert.Equal(t, 2, r.ActiveSessions())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.NoError(t, f.Close())
	assert.Zero(t, r.ActiveSessions())
}

func TestRegistry_KindMismatch(t *testing.T) {
	r, err := NewMemoryRegistry()
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	_, err = r.Open(ctx, testLocator(core.KindFile))
	assert.ErrorIs(t, err, core.ErrInvalidTableKind)
	_, err = r.OpenFiles(ctx, testLocator(core.KindAction))
	assert.ErrorIs(t, err, core.ErrInvalidTableKind)
}

func TestRegistry_Closed(t *testing.T) {
	r, err := NewMemoryRegistry()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Open(context.Background(), testLocator(core.KindAction))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestRegistry_OnDisk(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	ctx := context.Background()
	loc := core.Locator{Root: t.TempDir(), OrgID: "org", ProjectID: "proj", Kind: core.KindKnowledge}

	assert.False(t, r.Exists(loc))
	s, err := r.Open(ctx, loc)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, r.Close())

	fresh, err := NewRegistry()
	require.NoError(t, err)
	defer fresh.Close()
	assert.True(t, fresh.Exists(loc))
}
