package knowledge

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
	"github.com/negentropy-ai/engine/pkg/storage"
)

const (
	defaultSemanticWeight = 0.7
	defaultKeywordWeight  = 0.3
	defaultRRFK           = 60
	defaultSearchLimit    = 10
)

// Engine is the Retrieval Engine: dispatches a SearchRequest to one of
// semantic / keyword / hybrid / rrf, then optionally reranks.
type Engine struct {
	store    *storage.KnowledgeStore
	pool     *storage.Pool
	embedder provider.EmbeddingProvider
	reranker Reranker
}

func NewEngine(pool *storage.Pool, embedder provider.EmbeddingProvider, reranker Reranker) *Engine {
	if reranker == nil {
		reranker = NoopReranker{}
	}
	return &Engine{store: storage.NewKnowledgeStore(), pool: pool, embedder: embedder, reranker: reranker}
}

// Search dispatches req.Mode and, if req.Rerank, passes the result through
// the configured Reranker.
func (e *Engine) Search(ctx context.Context, req models.SearchRequest) ([]*models.SearchResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var results []*models.SearchResult
	var err error
	switch req.Mode {
	case models.ModeSemantic, "":
		results, err = e.searchSemantic(ctx, req, limit)
	case models.ModeKeyword:
		results, err = e.searchKeyword(ctx, req, limit)
	case models.ModeHybrid:
		results, err = e.searchHybrid(ctx, req, limit)
	case models.ModeRRF:
		results, err = e.searchRRF(ctx, req, limit)
	default:
		return nil, apperrors.NewValidationError("mode", "must be one of semantic, keyword, hybrid, rrf")
	}
	if err != nil {
		return nil, err
	}

	if req.Rerank {
		return e.reranker.Rerank(ctx, req.Query, results)
	}
	return results, nil
}

func (e *Engine) embed(ctx context.Context, query string) (storage.Vector, error) {
	if e.embedder == nil {
		return nil, apperrors.NewValidationError("query", "semantic search requires an embedding provider")
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.NewInfrastructureError("embedding-failed", err)
	}
	return storage.FromFloat32(vec), nil
}

func (e *Engine) searchSemantic(ctx context.Context, req models.SearchRequest, limit int) ([]*models.SearchResult, error) {
	vec, err := e.embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return e.store.SearchSemantic(ctx, e.pool.Pool, req.CorpusID, vec, req.MetadataFilter, limit)
}

func (e *Engine) searchKeyword(ctx context.Context, req models.SearchRequest, limit int) ([]*models.SearchResult, error) {
	return e.store.SearchKeyword(ctx, e.pool.Pool, req.CorpusID, req.Query, req.MetadataFilter, limit)
}

// fetchBothModes runs the semantic and keyword searches concurrently; the
// semantic side is skipped entirely when no embedder is configured. Either
// side failing cancels the other.
func (e *Engine) fetchBothModes(ctx context.Context, req models.SearchRequest, fetchLimit int) (semantic, keyword []*models.SearchResult, err error) {
	g, gctx := errgroup.WithContext(ctx)
	if e.embedder != nil {
		g.Go(func() error {
			vec, err := e.embed(gctx, req.Query)
			if err != nil {
				return err
			}
			semantic, err = e.store.SearchSemantic(gctx, e.pool.Pool, req.CorpusID, vec, req.MetadataFilter, fetchLimit)
			return err
		})
	}
	g.Go(func() error {
		var err error
		keyword, err = e.store.SearchKeyword(gctx, e.pool.Pool, req.CorpusID, req.Query, req.MetadataFilter, fetchLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return semantic, keyword, nil
}

// searchHybrid implements the weighted-combination mode: run both
// semantic and keyword searches, combine by chunk id, missing scores default
// to 0, sort descending, limit K.
func (e *Engine) searchHybrid(ctx context.Context, req models.SearchRequest, limit int) ([]*models.SearchResult, error) {
	wSem := req.SemanticWeight
	wKw := req.KeywordWeight
	if wSem == 0 && wKw == 0 {
		wSem, wKw = defaultSemanticWeight, defaultKeywordWeight
	}

	// Over-fetch from each side so the combined ranking isn't starved by a
	// narrow per-mode limit before merging.
	fetchLimit := limit * 3
	if fetchLimit < limit {
		fetchLimit = limit
	}

	semantic, keyword, err := e.fetchBothModes(ctx, req, fetchLimit)
	if err != nil {
		return nil, err
	}
	return mergeWeighted(semantic, keyword, wSem, wKw, limit), nil
}

// mergeWeighted combines both result lists by chunk id with
// combined = wSem*semantic + wKw*keyword; a score missing on either side
// contributes 0. Sorted descending, truncated to limit.
func mergeWeighted(semantic, keyword []*models.SearchResult, wSem, wKw float64, limit int) []*models.SearchResult {
	merged := map[string]*models.SearchResult{}
	for _, r := range semantic {
		merged[r.Knowledge.ID] = &models.SearchResult{Knowledge: r.Knowledge, SemanticScore: r.SemanticScore}
	}
	for _, r := range keyword {
		if existing, ok := merged[r.Knowledge.ID]; ok {
			existing.KeywordScore = r.KeywordScore
		} else {
			merged[r.Knowledge.ID] = &models.SearchResult{Knowledge: r.Knowledge, KeywordScore: r.KeywordScore}
		}
	}

	out := make([]*models.SearchResult, 0, len(merged))
	for _, r := range merged {
		r.CombinedScore = wSem*r.SemanticScore + wKw*r.KeywordScore
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CombinedScore > out[j].CombinedScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// searchRRF implements reciprocal-rank fusion: rank each list 1-based,
// score = sum(1/(k+rank)) across lists the id appears in. Insensitive to the
// underlying score scale.
func (e *Engine) searchRRF(ctx context.Context, req models.SearchRequest, limit int) ([]*models.SearchResult, error) {
	k := req.RRFK
	if k <= 0 {
		k = defaultRRFK
	}
	fetchLimit := limit * 3
	if fetchLimit < limit {
		fetchLimit = limit
	}

	semantic, keyword, err := e.fetchBothModes(ctx, req, fetchLimit)
	if err != nil {
		return nil, err
	}
	return fuseRRF(semantic, keyword, k, limit), nil
}

// fuseRRF merges both lists by reciprocal rank: each id scores
// sum(1/(k+rank)) over the lists it appears in, rank 1-based. Rank-only, so
// rescaling either list's scores cannot change the output order.
func fuseRRF(semantic, keyword []*models.SearchResult, k, limit int) []*models.SearchResult {
	scores := map[string]float64{}
	items := map[string]*models.Knowledge{}
	addRanked := func(list []*models.SearchResult) {
		for rank, r := range list {
			scores[r.Knowledge.ID] += 1.0 / float64(k+rank+1)
			items[r.Knowledge.ID] = r.Knowledge
		}
	}
	addRanked(semantic)
	addRanked(keyword)

	out := make([]*models.SearchResult, 0, len(items))
	for id, kn := range items {
		out = append(out, &models.SearchResult{Knowledge: kn, CombinedScore: scores[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CombinedScore > out[j].CombinedScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
