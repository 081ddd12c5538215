package memory

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
	testdb "github.com/negentropy-ai/engine/test/database"
)

func TestFacts_UpsertInsertsThenOverwrites(t *testing.T) {
	pool := testdb.NewTestPool(t)
	facts := NewFacts(pool, nil, slog.Default())

	f1, err := facts.UpsertFact(context.Background(), models.UpsertFactRequest{
		UserID: "u1", AppName: "app1", FactType: "preference", Key: "color",
		Value: models.JSONMap{"v": "blue"}, Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "blue", f1.Value["v"])

	f2, err := facts.UpsertFact(context.Background(), models.UpsertFactRequest{
		UserID: "u1", AppName: "app1", FactType: "preference", Key: "color",
		Value: models.JSONMap{"v": "green"}, Confidence: 0.95,
	})
	require.NoError(t, err)
	assert.Equal(t, f1.ID, f2.ID, "upsert on the same key must overwrite, not duplicate")
	assert.Equal(t, "green", f2.Value["v"])
	assert.Equal(t, f1.ValidFrom.Unix(), f2.ValidFrom.Unix(), "valid_from is preserved across overwrite")

	effective, err := facts.ListEffective(context.Background(), "u1", "app1")
	require.NoError(t, err)
	require.Len(t, effective, 1)
	assert.Equal(t, "green", effective[0].Value["v"])
}

func TestFacts_ListEffectiveExcludesExpired(t *testing.T) {
	pool := testdb.NewTestPool(t)
	facts := NewFacts(pool, nil, slog.Default())

	past := time.Now().Add(-time.Hour)
	_, err := facts.UpsertFact(context.Background(), models.UpsertFactRequest{
		UserID: "u1", AppName: "app1", FactType: "preference", Key: "expired",
		Value: models.JSONMap{"v": "old"}, Confidence: 1, ValidUntil: &past,
	})
	require.NoError(t, err)

	effective, err := facts.ListEffective(context.Background(), "u1", "app1")
	require.NoError(t, err)
	assert.Empty(t, effective)
}

func TestFacts_SearchByKeySubstringFallback(t *testing.T) {
	pool := testdb.NewTestPool(t)
	facts := NewFacts(pool, nil, slog.Default())

	_, err := facts.UpsertFact(context.Background(), models.UpsertFactRequest{
		UserID: "u1", AppName: "app1", FactType: "preference", Key: "favorite_color",
		Value: models.JSONMap{"v": "blue"}, Confidence: 1,
	})
	require.NoError(t, err)

	results, err := facts.SearchFact(context.Background(), "u1", "app1", "color")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "favorite_color", results[0].Key)
}
