package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
)

func hit(id string, semantic, keyword float64) *models.SearchResult {
	return &models.SearchResult{
		Knowledge:     &models.Knowledge{ID: id, Content: "chunk " + id},
		SemanticScore: semantic,
		KeywordScore:  keyword,
	}
}

func ids(results []*models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Knowledge.ID
	}
	return out
}

func TestMergeWeighted_CombinesAndOrders(t *testing.T) {
	semantic := []*models.SearchResult{hit("C1", 0.9, 0), hit("C2", 0.5, 0)}
	keyword := []*models.SearchResult{hit("C2", 0, 0.8), hit("C3", 0, 0.4)}

	out := mergeWeighted(semantic, keyword, 0.7, 0.3, 3)

	require.Equal(t, []string{"C1", "C2", "C3"}, ids(out))
	assert.InDelta(t, 0.63, out[0].CombinedScore, 1e-6)
	assert.InDelta(t, 0.59, out[1].CombinedScore, 1e-6)
	assert.InDelta(t, 0.12, out[2].CombinedScore, 1e-6)
}

func TestMergeWeighted_MissingScoresDefaultToZero(t *testing.T) {
	out := mergeWeighted([]*models.SearchResult{hit("A", 0.5, 0)}, nil, 0.7, 0.3, 10)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.35, out[0].CombinedScore, 1e-9)
	assert.Zero(t, out[0].KeywordScore)
}

func TestMergeWeighted_AppliesLimit(t *testing.T) {
	semantic := []*models.SearchResult{hit("A", 0.9, 0), hit("B", 0.8, 0), hit("C", 0.7, 0)}
	out := mergeWeighted(semantic, nil, 1, 0, 2)
	assert.Equal(t, []string{"A", "B"}, ids(out))
}

func TestFuseRRF_RankOnly(t *testing.T) {
	semantic := []*models.SearchResult{hit("A", 0.9, 0), hit("B", 0.5, 0)}
	keyword := []*models.SearchResult{hit("B", 0, 0.8), hit("C", 0, 0.4)}

	base := fuseRRF(semantic, keyword, 60, 3)

	// Rescaling every input score by a positive constant must not change
	// the fused order.
	scaledSem := []*models.SearchResult{hit("A", 9000, 0), hit("B", 5000, 0)}
	scaledKw := []*models.SearchResult{hit("B", 0, 8000), hit("C", 0, 4000)}
	scaled := fuseRRF(scaledSem, scaledKw, 60, 3)

	assert.Equal(t, ids(base), ids(scaled))
	// B appears in both lists, so it outranks A and C.
	assert.Equal(t, "B", base[0].Knowledge.ID)
}

func TestFuseRRF_ScoresAreReciprocalRankSums(t *testing.T) {
	semantic := []*models.SearchResult{hit("A", 0.9, 0)}
	keyword := []*models.SearchResult{hit("A", 0, 0.1)}

	out := fuseRRF(semantic, keyword, 60, 1)
	require.Len(t, out, 1)
	assert.InDelta(t, 2.0/61.0, out[0].CombinedScore, 1e-9)
}
