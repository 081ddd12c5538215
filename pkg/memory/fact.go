package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
	"github.com/negentropy-ai/engine/pkg/storage"
)

// Facts is the Fact Store service.
type Facts struct {
	pool     *storage.Pool
	store    *storage.FactStore
	embedder provider.EmbeddingProvider
	log      *slog.Logger
}

func NewFacts(pool *storage.Pool, embedder provider.EmbeddingProvider, log *slog.Logger) *Facts {
	return &Facts{pool: pool, store: storage.NewFactStore(), embedder: embedder, log: log}
}

// UpsertFact implements upsert-by-key semantics: overwrite on an
// existing (user_id, app_name, fact_type, key), else insert with
// valid_from = now() unless the caller supplied one. Embedding failures are
// logged and the fact is still persisted, with a null embedding.
func (f *Facts) UpsertFact(ctx context.Context, req models.UpsertFactRequest) (*models.Fact, error) {
	existing, err := f.store.FindByKey(ctx, f.pool.Pool, req.UserID, req.AppName, req.FactType, req.Key)
	if err != nil {
		return nil, err
	}

	fact := &models.Fact{
		ID: newID(), ThreadID: req.ThreadID, UserID: req.UserID, AppName: req.AppName,
		FactType: req.FactType, Key: req.Key, Value: req.Value,
		Confidence: req.Confidence, ValidUntil: req.ValidUntil,
	}
	switch {
	case existing != nil:
		fact.ID = existing.ID
		fact.ValidFrom = existing.ValidFrom
	case req.ValidFrom != nil:
		fact.ValidFrom = *req.ValidFrom
	default:
		fact.ValidFrom = time.Now()
	}

	if f.embedder != nil {
		text := fmt.Sprintf("%s: %v", req.Key, req.Value)
		vec, embedErr := f.embedder.Embed(ctx, text)
		if embedErr != nil {
			f.log.Warn("fact embedding failed", "fact_type", req.FactType, "key", req.Key, "error", embedErr)
		} else {
			fact.Embedding = vec
		}
	}

	if err := f.store.Upsert(ctx, f.pool.Pool, fact); err != nil {
		return nil, err
	}
	return fact, nil
}

// ListEffective returns facts for (userID, appName) not expired as of now —
// "Read filters out rows where valid_until < now()".
func (f *Facts) ListEffective(ctx context.Context, userID, appName string) ([]*models.Fact, error) {
	return f.store.ListEffective(ctx, f.pool.Pool, userID, appName, time.Now())
}

// SearchFact implements search: vector nearest-neighbor when an
// embedder is configured, else a case-insensitive key substring search.
func (f *Facts) SearchFact(ctx context.Context, userID, appName, query string) ([]*models.Fact, error) {
	if f.embedder != nil {
		vec, err := f.embedder.Embed(ctx, query)
		if err != nil {
			return nil, apperrors.NewInfrastructureError("embedding-failed", err)
		}
		return f.store.SearchByVector(ctx, f.pool.Pool, userID, appName, storage.FromFloat32(vec), defaultSearchLimit)
	}
	return f.store.SearchByKeySubstring(ctx, f.pool.Pool, userID, appName, query, defaultSearchLimit)
}
