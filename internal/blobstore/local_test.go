package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctxloom/ctxloom/internal/config"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
)

func newLocalStore(t *testing.T) Store {
	t.Helper()
	store, err := New(config.BlobStoreConfig{Type: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalStorePutGetDelete(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	key := ChunkKey("abc-123")
	require.NoError(t, store.Put(ctx, key, []byte("chunk body")))

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("chunk body"), data)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// deleting an absent key is not an error
	require.NoError(t, store.Delete(ctx, key))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	require.Error(t, store.Put(ctx, "../escape", []byte("x")))
	_, err := store.Get(ctx, "chunk/../../etc/passwd")
	require.Error(t, err)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(config.BlobStoreConfig{Type: "ftp"})
	require.Error(t, err)
}

func TestBlobKeys(t *testing.T) {
	require.Equal(t, "chunk/x", ChunkKey("x"))
	require.Equal(t, "summary/y", SummaryKey("y"))
}
