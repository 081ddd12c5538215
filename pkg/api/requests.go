package api

import "github.com/negentropy-ai/engine/pkg/models"

// Request bodies, bound with gin's JSON binding. Field validation beyond
// shape happens in the handlers so failures surface as the error shape.

type createCorpusRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description *string        `json:"description"`
	Config      models.JSONMap `json:"config"`
}

type updateCorpusRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Config      models.JSONMap `json:"config"`
}

// ingestRequest covers ingest, ingest_url, replace_source, and sync_source;
// each handler checks the fields its operation requires.
type ingestRequest struct {
	Text             *string        `json:"text"`
	URL              *string        `json:"url"`
	SourceURI        *string        `json:"source_uri"`
	ChunkSize        int            `json:"chunk_size"`
	Overlap          int            `json:"overlap"`
	PreserveNewlines bool           `json:"preserve_newlines"`
	Metadata         models.JSONMap `json:"metadata"`
	RunID            string         `json:"run_id"`
	IdempotencyKey   *string        `json:"idempotency_key"`
}

func (r ingestRequest) chunkConfig() models.ChunkConfig {
	cfg := models.DefaultChunkConfig()
	if r.ChunkSize > 0 {
		cfg.ChunkSize = r.ChunkSize
		cfg.Overlap = r.Overlap
	}
	cfg.PreserveNewlines = r.PreserveNewlines
	return cfg
}

type searchRequest struct {
	Query          string         `json:"query" binding:"required"`
	Mode           string         `json:"mode"`
	Limit          int            `json:"limit"`
	SemanticWeight *float64       `json:"semantic_weight"`
	KeywordWeight  *float64       `json:"keyword_weight"`
	MetadataFilter models.JSONMap `json:"metadata_filter"`
	Rerank         bool           `json:"rerank"`
}

type upsertRunRequest struct {
	RunID           string         `json:"run_id" binding:"required"`
	Status          string         `json:"status" binding:"required"`
	Payload         models.JSONMap `json:"payload"`
	IdempotencyKey  *string        `json:"idempotency_key"`
	ExpectedVersion *int           `json:"expected_version"`
}

type createSessionRequest struct {
	UserID string         `json:"user_id" binding:"required"`
	State  models.JSONMap `json:"state"`
}

type appendEventRequest struct {
	UserID       string              `json:"user_id" binding:"required"`
	InvocationID string              `json:"invocation_id"`
	Author       string              `json:"author" binding:"required"`
	EventType    string              `json:"event_type"`
	Content      models.EventContent `json:"content"`
	StateDelta   models.StateDelta   `json:"state_delta"`
}

type updateTitleRequest struct {
	Title string `json:"title" binding:"required"`
}
