package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/storage"
)

// ErrNoRunsAvailable signals an empty queue to the poll loop, distinct from a
// real processing error so the worker can back off quietly.
var ErrNoRunsAvailable = errors.New("no pipeline runs available")

// PipelineWorkerPool runs a bounded set of goroutines that claim queued
// PipelineRuns (status=pending) and drive them to completion or failure —
// the async counterpart to Pipeline.Run's synchronous path, for ingestion
// requests enqueued ahead of execution (modeled on the session queue's
// worker pool).
type PipelineWorkerPool struct {
	pool         *storage.Pool
	runs         *storage.PipelineRunStore
	pipeline     *Pipeline
	workerCount  int
	pollInterval time.Duration
	log          *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPipelineWorkerPool(pool *storage.Pool, pipeline *Pipeline, workerCount int, pollInterval time.Duration, log *slog.Logger) *PipelineWorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &PipelineWorkerPool{
		pool: pool, runs: storage.NewPipelineRunStore(), pipeline: pipeline,
		workerCount: workerCount, pollInterval: pollInterval, log: log,
		stopCh: make(chan struct{}),
	}
}

// Start spawns the worker goroutines. Safe to call once.
func (w *PipelineWorkerPool) Start(ctx context.Context) {
	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop signals every worker to stop and waits for in-flight runs to finish.
func (w *PipelineWorkerPool) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *PipelineWorkerPool) run(ctx context.Context, id int) {
	defer w.wg.Done()
	log := w.log
	if log != nil {
		log = log.With("worker", id)
	}

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoRunsAvailable) {
					w.sleep(w.jitteredInterval())
					continue
				}
				if log != nil {
					log.Error("pipeline worker error", "error", err)
				}
				w.sleep(time.Second)
			}
		}
	}
}

func (w *PipelineWorkerPool) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *PipelineWorkerPool) jitteredInterval() time.Duration {
	base := w.pollInterval
	jitter := base / 4
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// pollAndProcess claims the next pending run (if any) and drives it through
// the pipeline's stage sequence.
func (w *PipelineWorkerPool) pollAndProcess(ctx context.Context) error {
	run, err := w.claim(ctx)
	if err != nil {
		return err
	}
	if run == nil {
		return ErrNoRunsAvailable
	}

	payload, err := mapToPayload(run.Payload)
	if err != nil {
		return err
	}

	req := IngestRequest{
		AppName: run.AppName, CorpusID: payload.CorpusID, RunID: run.RunID,
		IdempotencyKey: run.IdempotencyKey, Operation: payload.Operation, SourceURI: payload.SourceURI,
		Text: payload.SourceText, URL: payload.SourceURL, Metadata: payload.Metadata,
	}
	if payload.ChunkConfig != nil {
		req.ChunkConfig = *payload.ChunkConfig
	}
	w.pipeline.execute(ctx, run, &payload, req)
	return nil
}

func (w *PipelineWorkerPool) claim(ctx context.Context) (*models.PipelineRun, error) {
	var run *models.PipelineRun
	err := storage.WithTx(ctx, w.pool.Pool, func(tx pgx.Tx) error {
		claimed, err := w.runs.ClaimNextPending(ctx, tx)
		if err != nil {
			return err
		}
		run = claimed
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

func mapToPayload(m models.JSONMap) (models.PipelineRunPayload, error) {
	var p models.PipelineRunPayload
	b, err := json.Marshal(m)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	if p.Stages == nil {
		p.Stages = map[models.PipelineStageName]*models.StageRecord{}
	}
	return p, nil
}
