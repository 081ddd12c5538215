package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// PipelineRunStore is the hand-written SQL DAL for ingestion pipeline runs.
type PipelineRunStore struct{}

func NewPipelineRunStore() *PipelineRunStore { return &PipelineRunStore{} }

const pipelineRunColumns = "id, app_name, run_id, status, payload, idempotency_key, version, created_at, updated_at"

func scanPipelineRun(row pgx.Row) (*models.PipelineRun, error) {
	var p models.PipelineRun
	if err := row.Scan(&p.ID, &p.AppName, &p.RunID, &p.Status, jsonColumn(&p.Payload),
		&p.IdempotencyKey, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan pipeline run", err)
	}
	return &p, nil
}

// FindByIdempotencyKey returns an existing run recorded under the same
// (app_name, idempotency_key), letting callers short-circuit a retried
// ingestion request instead of re-running it.
func (s *PipelineRunStore) FindByIdempotencyKey(ctx context.Context, db DBTX, appName, idempotencyKey string) (*models.PipelineRun, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	row := db.QueryRow(ctx, `
		SELECT `+pipelineRunColumns+` FROM pipeline_runs WHERE app_name=$1 AND idempotency_key=$2
	`, appName, idempotencyKey)
	p, err := scanPipelineRun(row)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *PipelineRunStore) Insert(ctx context.Context, db DBTX, p *models.PipelineRun) error {
	payload, err := jsonValue(p.Payload)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO pipeline_runs (id, app_name, run_id, status, payload, idempotency_key, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, p.ID, p.AppName, p.RunID, p.Status, payload, p.IdempotencyKey, p.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return apperrors.NewDatabaseError("insert pipeline run", err)
	}
	return nil
}

func (s *PipelineRunStore) Get(ctx context.Context, db DBTX, appName, runID string) (*models.PipelineRun, error) {
	row := db.QueryRow(ctx, `SELECT `+pipelineRunColumns+` FROM pipeline_runs WHERE app_name=$1 AND run_id=$2`, appName, runID)
	return scanPipelineRun(row)
}

// GetForUpdate locks the run row, used while a worker advances stage state
// so concurrent status reads never observe a torn write.
func (s *PipelineRunStore) GetForUpdate(ctx context.Context, tx pgx.Tx, appName, runID string) (*models.PipelineRun, error) {
	row := tx.QueryRow(ctx, `SELECT `+pipelineRunColumns+` FROM pipeline_runs WHERE app_name=$1 AND run_id=$2 FOR UPDATE`, appName, runID)
	return scanPipelineRun(row)
}

// UpdateStatus writes a new status/payload, enforcing optimistic concurrency
// against expectedVersion and bumping the stored version by one.
func (s *PipelineRunStore) UpdateStatus(ctx context.Context, db DBTX, id string, expectedVersion int, status models.RunStatus, payload models.JSONMap) error {
	val, err := jsonValue(payload)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
		UPDATE pipeline_runs SET status=$1, payload=$2, version=version+1, updated_at=now()
		WHERE id=$3 AND version=$4
	`, status, val, id, expectedVersion)
	if err != nil {
		return apperrors.NewDatabaseError("update pipeline run status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrVersionConflict
	}
	return nil
}

// ClaimNextPending locks and claims the oldest pending run across all apps
// using FOR UPDATE SKIP LOCKED, so multiple pipeline workers never grab the
// same run (modeled on the queue worker's session-claim pattern).
func (s *PipelineRunStore) ClaimNextPending(ctx context.Context, tx pgx.Tx) (*models.PipelineRun, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+pipelineRunColumns+` FROM pipeline_runs
		WHERE status=$1 ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED
	`, models.RunStatusPending)
	p, err := scanPipelineRun(row)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.UpdateStatus(ctx, tx, p.ID, p.Version, models.RunStatusRunning, p.Payload); err != nil {
		return nil, err
	}
	p.Status = models.RunStatusRunning
	p.Version++
	return p, nil
}

func (s *PipelineRunStore) List(ctx context.Context, db DBTX, appName string, limit int) ([]*models.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(ctx, `
		SELECT `+pipelineRunColumns+` FROM pipeline_runs WHERE app_name=$1 ORDER BY created_at DESC LIMIT $2
	`, appName, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list pipeline runs", err)
	}
	defer rows.Close()
	var out []*models.PipelineRun
	for rows.Next() {
		p, err := scanPipelineRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GraphRunStore is the analogous DAL for agent-graph execution runs, sharing
// the same idempotency/versioning shape as pipeline runs.
type GraphRunStore struct{}

func NewGraphRunStore() *GraphRunStore { return &GraphRunStore{} }

const graphRunColumns = "id, app_name, run_id, status, payload, idempotency_key, version, created_at, updated_at"

func scanGraphRun(row pgx.Row) (*models.PipelineRun, error) {
	var p models.PipelineRun
	if err := row.Scan(&p.ID, &p.AppName, &p.RunID, &p.Status, jsonColumn(&p.Payload),
		&p.IdempotencyKey, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan graph run", err)
	}
	return &p, nil
}

func (s *GraphRunStore) FindByIdempotencyKey(ctx context.Context, db DBTX, appName, idempotencyKey string) (*models.PipelineRun, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	row := db.QueryRow(ctx, `SELECT `+graphRunColumns+` FROM graph_runs WHERE app_name=$1 AND idempotency_key=$2`, appName, idempotencyKey)
	p, err := scanGraphRun(row)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *GraphRunStore) Insert(ctx context.Context, db DBTX, p *models.PipelineRun) error {
	payload, err := jsonValue(p.Payload)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO graph_runs (id, app_name, run_id, status, payload, idempotency_key, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, p.ID, p.AppName, p.RunID, p.Status, payload, p.IdempotencyKey, p.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return apperrors.NewDatabaseError("insert graph run", err)
	}
	return nil
}

func (s *GraphRunStore) Get(ctx context.Context, db DBTX, appName, runID string) (*models.PipelineRun, error) {
	row := db.QueryRow(ctx, `SELECT `+graphRunColumns+` FROM graph_runs WHERE app_name=$1 AND run_id=$2`, appName, runID)
	return scanGraphRun(row)
}

func (s *GraphRunStore) List(ctx context.Context, db DBTX, appName string, limit int) ([]*models.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(ctx, `
		SELECT `+graphRunColumns+` FROM graph_runs WHERE app_name=$1 ORDER BY created_at DESC LIMIT $2
	`, appName, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list graph runs", err)
	}
	defer rows.Close()
	var out []*models.PipelineRun
	for rows.Next() {
		p, err := scanGraphRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *GraphRunStore) UpdateStatus(ctx context.Context, db DBTX, id string, expectedVersion int, status models.RunStatus, payload models.JSONMap) error {
	val, err := jsonValue(payload)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
		UPDATE graph_runs SET status=$1, payload=$2, version=version+1, updated_at=now()
		WHERE id=$3 AND version=$4
	`, status, val, id, expectedVersion)
	if err != nil {
		return apperrors.NewDatabaseError("update graph run status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrVersionConflict
	}
	return nil
}
