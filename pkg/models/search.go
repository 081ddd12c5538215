package models

// SearchMode selects a Retrieval Engine dispatch mode.
type SearchMode string

const (
	ModeSemantic SearchMode = "semantic"
	ModeKeyword  SearchMode = "keyword"
	ModeHybrid   SearchMode = "hybrid"
	ModeRRF      SearchMode = "rrf"
)

// SearchRequest is the input to the Retrieval Engine.
type SearchRequest struct {
	CorpusID        string
	Query           string
	Mode            SearchMode
	Limit           int
	SemanticWeight  float64 // default 0.7
	KeywordWeight   float64 // default 0.3
	RRFK            int     // default 60
	MetadataFilter  JSONMap
	Rerank          bool
}

// SearchResult is one scored hit returned by the Retrieval Engine.
type SearchResult struct {
	Knowledge      *Knowledge `json:"knowledge"`
	SemanticScore  float64    `json:"semantic_score,omitempty"`
	KeywordScore   float64    `json:"keyword_score,omitempty"`
	CombinedScore  float64    `json:"combined_score"`
}

// RerankCandidate is one candidate passed to a Reranker.
type RerankCandidate struct {
	ID      string
	Text    string
	Score   float64
	Index   int
}
