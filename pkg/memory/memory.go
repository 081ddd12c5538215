// Package memory implements the Memory & Fact Lifecycle component:
// episodic memory writes and search, structured fact upserts, session
// consolidation, and the governance audit protocol.
package memory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
	"github.com/negentropy-ai/engine/pkg/storage"
)

func newID() string { return uuid.New().String() }

const defaultSearchLimit = 10

// Memories is the Memory Store service. Embedder may be nil, in
// which case writes persist a null embedding and search falls back to
// substring matching.
type Memories struct {
	pool     *storage.Pool
	store    *storage.MemoryStore
	embedder provider.EmbeddingProvider
	log      *slog.Logger
}

func NewMemories(pool *storage.Pool, embedder provider.EmbeddingProvider, log *slog.Logger) *Memories {
	return &Memories{pool: pool, store: storage.NewMemoryStore(), embedder: embedder, log: log}
}

// CreateMemory writes a memory with the defaults: retention_score=1.0,
// access_count=0.
func (m *Memories) CreateMemory(ctx context.Context, req models.CreateMemoryRequest) (*models.Memory, error) {
	meta := req.Metadata
	if meta == nil {
		meta = models.JSONMap{}
	}
	mem := &models.Memory{
		ID: newID(), ThreadID: req.ThreadID, UserID: req.UserID, AppName: req.AppName,
		MemoryType: req.MemoryType, Content: req.Content, Embedding: req.Embedding,
		Metadata: meta, RetentionScore: 1.0, AccessCount: 0,
	}
	if err := m.store.Insert(ctx, m.pool.Pool, mem); err != nil {
		return nil, err
	}
	return mem, nil
}

// SearchMemory implements search: vector nearest-neighbor when an
// embedder is configured, otherwise a substring fallback. Every result
// carries retention_score as relevance_score, per spec.
func (m *Memories) SearchMemory(ctx context.Context, appName, userID, query string) ([]*models.ScoredMemory, error) {
	var rows []*models.Memory
	var err error
	if m.embedder != nil {
		vec, embedErr := m.embedder.Embed(ctx, query)
		if embedErr != nil {
			return nil, apperrors.NewInfrastructureError("embedding-failed", embedErr)
		}
		rows, err = m.store.SearchByVector(ctx, m.pool.Pool, appName, userID, storage.FromFloat32(vec), defaultSearchLimit)
	} else {
		rows, err = m.store.SearchBySubstring(ctx, m.pool.Pool, appName, userID, query, defaultSearchLimit)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*models.ScoredMemory, len(rows))
	for i, r := range rows {
		out[i] = &models.ScoredMemory{Memory: r, RelevanceScore: r.RetentionScore}
	}
	return out, nil
}

func (m *Memories) Get(ctx context.Context, id string) (*models.Memory, error) {
	return m.store.Get(ctx, m.pool.Pool, id)
}
