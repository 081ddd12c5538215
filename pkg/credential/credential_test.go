package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

func TestMemoryService_UpsertOverwrites(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, models.UpsertCredentialRequest{
		AppName: "a", UserID: "u", CredentialKey: "github",
		CredentialData: models.JSONMap{"token": "t1"},
	})
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, models.UpsertCredentialRequest{
		AppName: "a", UserID: "u", CredentialKey: "github",
		CredentialData: models.JSONMap{"token": "t2"},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "a", "u", "github")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.CredentialData["token"])
}

func TestMemoryService_GetMissingIsNotFound(t *testing.T) {
	svc := NewMemoryService()
	_, err := svc.Get(context.Background(), "a", "u", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryService_DeleteThenGetIsNotFound(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, models.UpsertCredentialRequest{
		AppName: "a", UserID: "u", CredentialKey: "k", CredentialData: models.JSONMap{"x": 1},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "a", "u", "k"))
	_, err = svc.Get(ctx, "a", "u", "k")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "a", "u", "k"), apperrors.ErrNotFound)
}

func TestMemoryService_ScopedByAppAndUser(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, models.UpsertCredentialRequest{
		AppName: "a1", UserID: "u1", CredentialKey: "k", CredentialData: models.JSONMap{"v": "a1u1"},
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "a2", "u1", "k")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.Get(ctx, "a1", "u2", "k")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
