package api

import "github.com/negentropy-ai/engine/pkg/models"

// searchResultItem flattens a SearchResult for the wire.
type searchResultItem struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	SourceURI     *string        `json:"source_uri,omitempty"`
	ChunkIndex    int            `json:"chunk_index"`
	Metadata      models.JSONMap `json:"metadata"`
	SemanticScore float64        `json:"semantic_score,omitempty"`
	KeywordScore  float64        `json:"keyword_score,omitempty"`
	CombinedScore float64        `json:"combined_score"`
}

func toSearchItems(results []*models.SearchResult) []searchResultItem {
	out := make([]searchResultItem, len(results))
	for i, r := range results {
		out[i] = searchResultItem{
			ID:            r.Knowledge.ID,
			Content:       r.Knowledge.Content,
			SourceURI:     r.Knowledge.SourceURI,
			ChunkIndex:    r.Knowledge.ChunkIndex,
			Metadata:      r.Knowledge.Metadata,
			SemanticScore: r.SemanticScore,
			KeywordScore:  r.KeywordScore,
			CombinedScore: r.CombinedScore,
		}
	}
	return out
}

// uploadResponse reports a document upload, including whether the content
// hash was already known.
type uploadResponse struct {
	Document *models.KnowledgeDocument `json:"document"`
	IsNew    bool                      `json:"is_new"`
	Run      *models.PipelineRun       `json:"run,omitempty"`
}

// sessionResponse pairs a thread with its (possibly filtered) events.
type sessionResponse struct {
	Thread *models.Thread  `json:"thread"`
	Events []*models.Event `json:"events"`
}
