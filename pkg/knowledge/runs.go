package knowledge

import (
	"context"
	"errors"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/storage"
)

func isNotFound(err error) bool { return errors.Is(err, apperrors.ErrNotFound) }

// Runs serves pipeline/graph run observability and upsert (dashboard,
// pipelines, and graph endpoints). Pipeline and graph runs share the same
// idempotency-key and optimistic-version shape.
type Runs struct {
	pool     *storage.Pool
	pipeline *storage.PipelineRunStore
	graph    *storage.GraphRunStore
}

func NewRuns(pool *storage.Pool) *Runs {
	return &Runs{
		pool:     pool,
		pipeline: storage.NewPipelineRunStore(),
		graph:    storage.NewGraphRunStore(),
	}
}

// RunUpsertRequest creates or updates a run record. ExpectedVersion, when
// set, must match the stored version or the update fails with
// version-conflict.
type RunUpsertRequest struct {
	AppName         string
	RunID           string
	Status          models.RunStatus
	Payload         models.JSONMap
	IdempotencyKey  *string
	ExpectedVersion *int
}

func (r *Runs) ListPipelineRuns(ctx context.Context, appName string, limit int) ([]*models.PipelineRun, error) {
	return r.pipeline.List(ctx, r.pool.Pool, appName, limit)
}

func (r *Runs) GetPipelineRun(ctx context.Context, appName, runID string) (*models.PipelineRun, error) {
	return r.pipeline.Get(ctx, r.pool.Pool, appName, runID)
}

func (r *Runs) ListGraphRuns(ctx context.Context, appName string, limit int) ([]*models.PipelineRun, error) {
	return r.graph.List(ctx, r.pool.Pool, appName, limit)
}

func (r *Runs) GetGraphRun(ctx context.Context, appName, runID string) (*models.PipelineRun, error) {
	return r.graph.Get(ctx, r.pool.Pool, appName, runID)
}

// runDAL is the shared surface of PipelineRunStore and GraphRunStore the
// upsert path needs.
type runDAL interface {
	FindByIdempotencyKey(ctx context.Context, db storage.DBTX, appName, idempotencyKey string) (*models.PipelineRun, error)
	Get(ctx context.Context, db storage.DBTX, appName, runID string) (*models.PipelineRun, error)
	Insert(ctx context.Context, db storage.DBTX, p *models.PipelineRun) error
	UpdateStatus(ctx context.Context, db storage.DBTX, id string, expectedVersion int, status models.RunStatus, payload models.JSONMap) error
}

// UpsertPipelineRun records an externally driven pipeline run's progress.
func (r *Runs) UpsertPipelineRun(ctx context.Context, req RunUpsertRequest) (*models.PipelineRun, error) {
	return r.upsert(ctx, r.pipeline, req)
}

// UpsertGraphRun is the graph-run counterpart.
func (r *Runs) UpsertGraphRun(ctx context.Context, req RunUpsertRequest) (*models.PipelineRun, error) {
	return r.upsert(ctx, r.graph, req)
}

func (r *Runs) upsert(ctx context.Context, dal runDAL, req RunUpsertRequest) (*models.PipelineRun, error) {
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := dal.FindByIdempotencyKey(ctx, r.pool.Pool, req.AppName, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	payload := req.Payload
	if payload == nil {
		payload = models.JSONMap{}
	}

	existing, err := dal.Get(ctx, r.pool.Pool, req.AppName, req.RunID)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		run := &models.PipelineRun{
			ID: newID(), AppName: req.AppName, RunID: req.RunID, Status: req.Status,
			Payload: payload, IdempotencyKey: req.IdempotencyKey, Version: 1,
		}
		if err := dal.Insert(ctx, r.pool.Pool, run); err != nil {
			return nil, err
		}
		return run, nil
	}

	expected := existing.Version
	if req.ExpectedVersion != nil {
		expected = *req.ExpectedVersion
	}
	if err := dal.UpdateStatus(ctx, r.pool.Pool, existing.ID, expected, req.Status, payload); err != nil {
		return nil, err
	}
	return dal.Get(ctx, r.pool.Pool, req.AppName, req.RunID)
}

// DashboardSummary aggregates run counts by status for the observability
// dashboard.
type DashboardSummary struct {
	PipelineRuns map[models.RunStatus]int `json:"pipeline_runs"`
	GraphRuns    map[models.RunStatus]int `json:"graph_runs"`
	RecentRuns   []*models.PipelineRun    `json:"recent_runs"`
}

const dashboardWindow = 200

// Dashboard summarizes recent run activity for appName.
func (r *Runs) Dashboard(ctx context.Context, appName string) (*DashboardSummary, error) {
	pipeline, err := r.pipeline.List(ctx, r.pool.Pool, appName, dashboardWindow)
	if err != nil {
		return nil, err
	}
	graph, err := r.graph.List(ctx, r.pool.Pool, appName, dashboardWindow)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		PipelineRuns: countByStatus(pipeline),
		GraphRuns:    countByStatus(graph),
	}
	if len(pipeline) > 10 {
		summary.RecentRuns = pipeline[:10]
	} else {
		summary.RecentRuns = pipeline
	}
	return summary, nil
}

func countByStatus(runs []*models.PipelineRun) map[models.RunStatus]int {
	out := make(map[models.RunStatus]int, 4)
	for _, r := range runs {
		out[r.Status]++
	}
	return out
}
