package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
)

// Reranker rescores (and optionally reorders/filters) a batch of search
// results against the original query.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []*models.SearchResult) ([]*models.SearchResult, error)
}

// NoopReranker preserves order: the default when no reranker is configured.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, results []*models.SearchResult) ([]*models.SearchResult, error) {
	return results, nil
}

// LocalReranker rescores candidates with a cross-encoder RerankProvider run
// in-process (or against a local model server reached the same way as any
// other provider.RerankProvider), overwriting semantic_score and
// combined_score with the rescore.
type LocalReranker struct {
	Provider       provider.RerankProvider
	Model          string
	ScoreThreshold *float64
	MinMaxNormalize bool
}

func (r *LocalReranker) Rerank(ctx context.Context, query string, results []*models.SearchResult) ([]*models.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	candidates := make([]provider.RerankCandidate, len(results))
	for i, res := range results {
		candidates[i] = provider.RerankCandidate{Index: i, Text: res.Knowledge.Content}
	}
	scored, err := r.Provider.Rerank(ctx, query, candidates, len(candidates), r.Model)
	if err != nil {
		return nil, err
	}
	return applyRerankScores(results, scored, r.ScoreThreshold, r.MinMaxNormalize), nil
}

// APIReranker posts {query, documents, top_n, model} to an HTTP rerank
// endpoint and reorders by the returned relevance_score.
type APIReranker struct {
	Endpoint string
	Model    string
	TopN     int
	Client   *http.Client
}

type apiRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
	Model     string   `json:"model"`
}

type apiRerankResponseItem struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

func (r *APIReranker) Rerank(ctx context.Context, query string, results []*models.SearchResult) ([]*models.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Knowledge.Content
	}
	topN := r.TopN
	if topN <= 0 {
		topN = len(docs)
	}
	body, err := json.Marshal(apiRerankRequest{Query: query, Documents: docs, TopN: topN, Model: r.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank endpoint returned status %d", resp.StatusCode)
	}

	var items []apiRerankResponseItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	scored := make([]provider.RerankResult, len(items))
	for i, it := range items {
		scored[i] = provider.RerankResult{Index: it.Index, RelevanceScore: it.RelevanceScore}
	}
	return applyRerankScores(results, scored, nil, false), nil
}

// CompositeReranker tries primary, then fallback, then always falls back to
// NoopReranker last — any error from primary/fallback falls through.
type CompositeReranker struct {
	Primary  Reranker
	Fallback Reranker
	Log      *slog.Logger
}

func (c *CompositeReranker) Rerank(ctx context.Context, query string, results []*models.SearchResult) ([]*models.SearchResult, error) {
	if c.Primary != nil {
		out, err := c.Primary.Rerank(ctx, query, results)
		if err == nil {
			return out, nil
		}
		if c.Log != nil {
			c.Log.Warn("primary reranker failed, falling back", "error", err)
		}
	}
	if c.Fallback != nil {
		out, err := c.Fallback.Rerank(ctx, query, results)
		if err == nil {
			return out, nil
		}
		if c.Log != nil {
			c.Log.Warn("fallback reranker failed, using noop", "error", err)
		}
	}
	return NoopReranker{}.Rerank(ctx, query, results)
}

// applyRerankScores overwrites semantic_score/combined_score with the
// rescore, reorders descending, optionally drops below threshold and
// min-max normalizes.
func applyRerankScores(results []*models.SearchResult, scored []provider.RerankResult, threshold *float64, normalize bool) []*models.SearchResult {
	byIndex := make(map[int]float64, len(scored))
	for _, s := range scored {
		byIndex[s.Index] = s.RelevanceScore
	}

	out := make([]*models.SearchResult, 0, len(results))
	for i, r := range results {
		score, ok := byIndex[i]
		if !ok {
			continue
		}
		r.SemanticScore = score
		r.CombinedScore = score
		out = append(out, r)
	}

	if normalize && len(out) > 0 {
		min, max := out[0].CombinedScore, out[0].CombinedScore
		for _, r := range out {
			if r.CombinedScore < min {
				min = r.CombinedScore
			}
			if r.CombinedScore > max {
				max = r.CombinedScore
			}
		}
		if max > min {
			for _, r := range out {
				norm := (r.CombinedScore - min) / (max - min)
				r.SemanticScore = norm
				r.CombinedScore = norm
			}
		}
	}

	if threshold != nil {
		filtered := out[:0:0]
		for _, r := range out {
			if r.CombinedScore >= *threshold {
				filtered = append(filtered, r)
			}
		}
		out = filtered
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CombinedScore > out[j].CombinedScore })
	return out
}
