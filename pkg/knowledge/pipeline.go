package knowledge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
	"github.com/negentropy-ai/engine/pkg/storage"
)

// Ingestion operations.
const (
	OpIngestText    = "ingest_text"
	OpIngestURL     = "ingest_url"
	OpReplaceSource = "replace_source"
	OpSyncSource    = "sync_source"
	OpRebuildSource = "rebuild_source"
)

// IngestRequest is the input to Pipeline.Run, covering every operation in
// the ingestion table.
type IngestRequest struct {
	AppName        string
	CorpusID       string
	RunID          string // caller-supplied idempotent run identifier; generated if empty
	IdempotencyKey *string
	Operation      string
	Text           *string
	URL            *string
	SourceURI      *string
	ChunkConfig    models.ChunkConfig
	Metadata       models.JSONMap
}

// Pipeline is the ingestion-pipeline orchestrator: runs fetch, extract,
// delete, chunk, embed, persist in order, recording each stage's progress
// into a PipelineRun row so a crash mid-run leaves an inspectable trail.
type Pipeline struct {
	pool      *storage.Pool
	runs      *storage.PipelineRunStore
	knowledge *storage.KnowledgeStore
	embedder  provider.EmbeddingProvider
	fetcher   Fetcher
	log       *slog.Logger
}

func NewPipeline(pool *storage.Pool, embedder provider.EmbeddingProvider, fetcher Fetcher, log *slog.Logger) *Pipeline {
	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}
	return &Pipeline{
		pool:      pool,
		runs:      storage.NewPipelineRunStore(),
		knowledge: storage.NewKnowledgeStore(),
		embedder:  embedder,
		fetcher:   fetcher,
		log:       log,
	}
}

// Run executes req synchronously end to end, persisting stage transitions as
// it goes. On idempotency-key replay it returns the stored prior outcome
// instead of repeating effects.
func (p *Pipeline) Run(ctx context.Context, req IngestRequest) (*models.PipelineRun, error) {
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := p.runs.FindByIdempotencyKey(ctx, p.pool.Pool, req.AppName, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = newID()
	}

	chunkCfg := req.ChunkConfig
	payload := models.PipelineRunPayload{
		Operation:   req.Operation,
		CorpusID:    req.CorpusID,
		SourceURI:   req.SourceURI,
		SourceText:  req.Text,
		SourceURL:   req.URL,
		ChunkConfig: &chunkCfg,
		Metadata:    req.Metadata,
		Stages:      initialStages(req.Operation, p.embedder != nil),
	}
	payloadMap, err := payloadToMap(payload)
	if err != nil {
		return nil, err
	}

	run := &models.PipelineRun{
		ID: newID(), AppName: req.AppName, RunID: runID, Status: models.RunStatusRunning,
		Payload: payloadMap, IdempotencyKey: req.IdempotencyKey, Version: 1,
	}
	if err := p.runs.Insert(ctx, p.pool.Pool, run); err != nil {
		return nil, err
	}

	p.execute(ctx, run, &payload, req)
	return run, nil
}

// execute runs the stage sequence against an already-persisted run,
// persisting status synchronously on each transition (crash recovery:
// per-stage progress must be durable before moving on).
func (p *Pipeline) execute(ctx context.Context, run *models.PipelineRun, payload *models.PipelineRunPayload, req IngestRequest) {
	var text string
	var sourceURI *string = req.SourceURI
	if sourceURI == nil && req.URL != nil {
		sourceURI = req.URL
	}

	if stage := payload.Stages[models.StageFetch]; stage.Status != models.StageStatusSkipped && (req.URL != nil || req.Text == nil) {
		body, contentType, err := p.runFetchStage(ctx, stage, req)
		if err != nil {
			p.fail(ctx, run, payload, models.StageFetch, err)
			return
		}
		extracted, err := p.runExtractStage(ctx, payload.Stages[models.StageExtract], body, contentType)
		if err != nil {
			p.fail(ctx, run, payload, models.StageExtract, err)
			return
		}
		text = extracted
	} else if req.Text != nil {
		text = *req.Text
		p.skip(payload, models.StageFetch)
		p.skip(payload, models.StageExtract)
	}

	if stage := payload.Stages[models.StageDelete]; stage.Status != models.StageStatusSkipped {
		if err := p.runDeleteStage(ctx, stage, req.CorpusID, sourceURI); err != nil {
			p.fail(ctx, run, payload, models.StageDelete, err)
			return
		}
	}

	chunks, err := p.runChunkStage(ctx, payload.Stages[models.StageChunk], text, req.ChunkConfig)
	if err != nil {
		p.fail(ctx, run, payload, models.StageChunk, err)
		return
	}

	var embeddings [][]float32
	if stage := payload.Stages[models.StageEmbed]; stage.Status != models.StageStatusSkipped {
		embeddings, err = p.runEmbedStage(ctx, stage, chunks)
		if err != nil {
			p.fail(ctx, run, payload, models.StageEmbed, err)
			return
		}
	}

	count, err := p.runPersistStage(ctx, payload.Stages[models.StagePersist], req, chunks, embeddings, sourceURI)
	if err != nil {
		p.fail(ctx, run, payload, models.StagePersist, err)
		return
	}

	payload.Counts = map[string]int{"chunks_persisted": count}
	p.complete(ctx, run, payload)
}

func (p *Pipeline) runFetchStage(ctx context.Context, stage *models.StageRecord, req IngestRequest) ([]byte, string, error) {
	start(stage)
	if req.URL == nil {
		finishFailed(stage, apperrors.NewValidationError("url", "required for this operation"))
		return nil, "", apperrors.NewValidationError("url", "required for this operation")
	}
	body, contentType, err := p.fetcher.Fetch(ctx, *req.URL)
	if err != nil {
		finishFailed(stage, err)
		return nil, "", err
	}
	finishOK(stage, models.JSONMap{"bytes_fetched": len(body), "content_type": contentType})
	return body, contentType, nil
}

func (p *Pipeline) runExtractStage(ctx context.Context, stage *models.StageRecord, body []byte, contentType string) (string, error) {
	start(stage)
	text, err := ExtractText(body, contentType)
	if err != nil {
		finishFailed(stage, err)
		return "", err
	}
	finishOK(stage, models.JSONMap{"chars_extracted": len(text)})
	return text, nil
}

func (p *Pipeline) runDeleteStage(ctx context.Context, stage *models.StageRecord, corpusID string, sourceURI *string) error {
	start(stage)
	if sourceURI == nil {
		finishOK(stage, models.JSONMap{"deleted": 0})
		return nil
	}
	n, err := p.knowledge.DeleteBySource(ctx, p.pool.Pool, corpusID, *sourceURI)
	if err != nil {
		finishFailed(stage, err)
		return err
	}
	finishOK(stage, models.JSONMap{"deleted": n})
	return nil
}

func (p *Pipeline) runChunkStage(ctx context.Context, stage *models.StageRecord, text string, cfg models.ChunkConfig) ([]string, error) {
	start(stage)
	if cfg.ChunkSize == 0 {
		cfg = models.DefaultChunkConfig()
	}
	chunks, err := ChunkText(text, cfg)
	if err != nil {
		finishFailed(stage, err)
		return nil, err
	}
	finishOK(stage, models.JSONMap{"chunk_count": len(chunks)})
	return chunks, nil
}

func (p *Pipeline) runEmbedStage(ctx context.Context, stage *models.StageRecord, chunks []string) ([][]float32, error) {
	start(stage)
	if len(chunks) == 0 {
		finishOK(stage, models.JSONMap{"embedded": 0})
		return nil, nil
	}
	vecs, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		finishFailed(stage, apperrors.NewInfrastructureError("embedding-failed", err))
		return nil, apperrors.NewInfrastructureError("embedding-failed", err)
	}
	finishOK(stage, models.JSONMap{"embedded": len(vecs)})
	return vecs, nil
}

func (p *Pipeline) runPersistStage(ctx context.Context, stage *models.StageRecord, req IngestRequest, chunks []string, embeddings [][]float32, sourceURI *string) (int, error) {
	start(stage)
	meta := req.Metadata
	if meta == nil {
		meta = models.JSONMap{}
	}

	insertErr := p.persistChunks(ctx, req.CorpusID, req.AppName, chunks, embeddings, sourceURI, meta)
	if insertErr != nil {
		finishFailed(stage, insertErr)
		return 0, insertErr
	}
	finishOK(stage, models.JSONMap{"persisted": len(chunks)})
	return len(chunks), nil
}

// persistChunks inserts every chunk in one transaction: the "never persist
// a partial batch" guarantee (a failure here must leave zero
// Knowledge rows, not some prefix of them).
func (p *Pipeline) persistChunks(ctx context.Context, corpusID, appName string, chunks []string, embeddings [][]float32, sourceURI *string, meta models.JSONMap) error {
	return storage.WithTx(ctx, p.pool.Pool, func(tx pgx.Tx) error {
		for i, content := range chunks {
			var emb []float32
			if i < len(embeddings) {
				emb = embeddings[i]
			}
			k := &models.Knowledge{
				ID: newID(), CorpusID: corpusID, AppName: appName, Content: content,
				Embedding: emb, SourceURI: sourceURI, ChunkIndex: i, Metadata: meta,
			}
			if err := p.knowledge.Insert(ctx, tx, k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Pipeline) fail(ctx context.Context, run *models.PipelineRun, payload *models.PipelineRunPayload, stageName models.PipelineStageName, cause error) {
	if p.log != nil {
		p.log.Error("pipeline stage failed", "run_id", run.RunID, "stage", stageName, "error", cause)
	}
	p.persistStatus(ctx, run, payload, models.RunStatusFailed)
}

func (p *Pipeline) complete(ctx context.Context, run *models.PipelineRun, payload *models.PipelineRunPayload) {
	p.persistStatus(ctx, run, payload, models.RunStatusCompleted)
}

func (p *Pipeline) persistStatus(ctx context.Context, run *models.PipelineRun, payload *models.PipelineRunPayload, status models.RunStatus) {
	payloadMap, err := payloadToMap(*payload)
	if err != nil {
		if p.log != nil {
			p.log.Error("marshal pipeline payload failed", "run_id", run.RunID, "error", err)
		}
		return
	}
	if err := p.runs.UpdateStatus(ctx, p.pool.Pool, run.ID, run.Version, status, payloadMap); err != nil {
		if p.log != nil {
			p.log.Error("persist pipeline status failed", "run_id", run.RunID, "error", err)
		}
		return
	}
	run.Status = status
	run.Payload = payloadMap
	run.Version++
}

func initialStages(operation string, hasEmbedder bool) map[models.PipelineStageName]*models.StageRecord {
	skipFetch := operation == OpIngestText
	skipDelete := operation == OpIngestText
	stages := map[models.PipelineStageName]*models.StageRecord{
		models.StageFetch:   {Name: models.StageFetch, Status: statusFor(skipFetch)},
		models.StageExtract: {Name: models.StageExtract, Status: statusFor(skipFetch)},
		models.StageDelete:  {Name: models.StageDelete, Status: statusFor(skipDelete)},
		models.StageChunk:   {Name: models.StageChunk, Status: models.StageStatusPending},
		models.StageEmbed:   {Name: models.StageEmbed, Status: statusFor(!hasEmbedder)},
		models.StagePersist: {Name: models.StagePersist, Status: models.StageStatusPending},
	}
	return stages
}

func statusFor(skip bool) models.PipelineStageStatus {
	if skip {
		return models.StageStatusSkipped
	}
	return models.StageStatusPending
}

func (p *Pipeline) skip(payload *models.PipelineRunPayload, name models.PipelineStageName) {
	payload.Stages[name].Status = models.StageStatusSkipped
}

func start(stage *models.StageRecord) {
	now := time.Now()
	stage.Status = models.StageStatusRunning
	stage.StartedAt = &now
}

func finishOK(stage *models.StageRecord, output models.JSONMap) {
	now := time.Now()
	stage.Status = models.StageStatusCompleted
	stage.CompletedAt = &now
	if stage.StartedAt != nil {
		d := now.Sub(*stage.StartedAt).Milliseconds()
		stage.DurationMs = &d
	}
	stage.Output = output
}

func finishFailed(stage *models.StageRecord, err error) {
	now := time.Now()
	stage.Status = models.StageStatusFailed
	stage.CompletedAt = &now
	if stage.StartedAt != nil {
		d := now.Sub(*stage.StartedAt).Milliseconds()
		stage.DurationMs = &d
	}
	stage.ErrorMsg = err.Error()
	stage.ErrorType = apperrors.Code(err)
}

func payloadToMap(p models.PipelineRunPayload) (models.JSONMap, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m models.JSONMap
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
