package models

import "time"

// Corpus is a named collection of knowledge chunks under one app.
type Corpus struct {
	ID          string    `json:"id"`
	AppName     string    `json:"app_name"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Config      JSONMap   `json:"config"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Knowledge is one ingested chunk.
type Knowledge struct {
	ID         string    `json:"id"`
	CorpusID   string    `json:"corpus_id"`
	AppName    string    `json:"app_name"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	SourceURI  *string   `json:"source_uri,omitempty"`
	ChunkIndex int       `json:"chunk_index"`
	Metadata   JSONMap   `json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentStatus is the lifecycle state of an uploaded KnowledgeDocument.
type DocumentStatus string

const (
	DocumentStatusActive  DocumentStatus = "active"
	DocumentStatusDeleted DocumentStatus = "deleted"
)

// KnowledgeDocument is an upload record, content-addressed by file_hash.
type KnowledgeDocument struct {
	ID               string         `json:"id"`
	CorpusID         string         `json:"corpus_id"`
	AppName          string         `json:"app_name"`
	FileHash         string         `json:"file_hash"` // 64-char hex (SHA-256)
	OriginalFilename string         `json:"original_filename"`
	GCSURI           string         `json:"gcs_uri"`
	ContentType      *string        `json:"content_type,omitempty"`
	FileSize         int64          `json:"file_size"`
	Status           DocumentStatus `json:"status"`
	Metadata         JSONMap        `json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ChunkConfig parameterizes the chunker.
type ChunkConfig struct {
	ChunkSize        int
	Overlap          int
	PreserveNewlines bool
}

// DefaultChunkConfig is applied wherever a request omits its chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: 1000, Overlap: 200, PreserveNewlines: false}
}

// PipelineStageName enumerates the ingestion pipeline stages, in order.
type PipelineStageName string

const (
	StageFetch   PipelineStageName = "fetch"
	StageExtract PipelineStageName = "extract"
	StageDelete  PipelineStageName = "delete"
	StageChunk   PipelineStageName = "chunk"
	StageEmbed   PipelineStageName = "embed"
	StagePersist PipelineStageName = "persist"
)

// PipelineStageStatus is the per-stage status recorded in a PipelineRun.
type PipelineStageStatus string

const (
	StageStatusPending   PipelineStageStatus = "pending"
	StageStatusRunning   PipelineStageStatus = "running"
	StageStatusSkipped   PipelineStageStatus = "skipped"
	StageStatusCompleted PipelineStageStatus = "completed"
	StageStatusFailed    PipelineStageStatus = "failed"
)

// StageRecord captures one stage's execution within a PipelineRun.
type StageRecord struct {
	Name        PipelineStageName   `json:"name"`
	Status      PipelineStageStatus `json:"status"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	DurationMs  *int64              `json:"duration_ms,omitempty"`
	Output      JSONMap             `json:"output,omitempty"`
	ErrorType   string              `json:"error_type,omitempty"`
	ErrorMsg    string              `json:"error_message,omitempty"`
}

// RunStatus is the overall PipelineRun/GraphRun lifecycle status.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRunPayload is the JSON payload of a PipelineRun, holding the
// operation parameters and the per-stage tracking records.
type PipelineRunPayload struct {
	Operation   string                              `json:"operation"` // ingest_text, ingest_url, replace_source, sync_source, rebuild_source
	CorpusID    string                              `json:"corpus_id"`
	SourceURI   *string                             `json:"source_uri,omitempty"`
	SourceText  *string                             `json:"source_text,omitempty"`
	SourceURL   *string                             `json:"source_url,omitempty"`
	ChunkConfig *ChunkConfig                        `json:"chunk_config,omitempty"`
	Metadata    JSONMap                             `json:"metadata,omitempty"`
	Stages      map[PipelineStageName]*StageRecord  `json:"stages"`
	Counts      map[string]int                      `json:"counts,omitempty"`
}

// PipelineRun is a persisted record of one ingestion operation.
type PipelineRun struct {
	ID             string    `json:"id"`
	AppName        string    `json:"app_name"`
	RunID          string    `json:"run_id"`
	Status         RunStatus `json:"status"`
	Payload        JSONMap   `json:"payload"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
