package artifact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/apperrors"
)

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	meta, err := store.Put(ctx, "app1", "report.pdf", []byte("pdf-bytes"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(9), meta.Size)
	assert.Equal(t, "memory://app1/report.pdf", meta.URI)

	data, got, err := store.Get(ctx, "app1", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf-bytes"), data)
	assert.Equal(t, "application/pdf", got.ContentType)
}

func TestMemoryStore_GetIsACopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Put(ctx, "app1", "blob", []byte{1, 2, 3}, "")
	require.NoError(t, err)

	data, _, err := store.Get(ctx, "app1", "blob")
	require.NoError(t, err)
	data[0] = 99

	again, _, err := store.Get(ctx, "app1", "blob")
	require.NoError(t, err)
	assert.Equal(t, byte(1), again[0], "mutating a returned payload must not corrupt the stored blob")
}

func TestMemoryStore_DeleteAndMissing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Put(ctx, "app1", "blob", []byte("x"), "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "app1", "blob"))
	_, _, err = store.Get(ctx, "app1", "blob")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "app1", "blob"), apperrors.ErrNotFound)
}

func TestMemoryStore_AppScoped(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Put(ctx, "app1", "blob", []byte("x"), "")
	require.NoError(t, err)

	_, _, err = store.Get(ctx, "app2", "blob")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
