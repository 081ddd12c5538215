package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// ThreadStore is the hand-written SQL DAL for threads.
type ThreadStore struct{}

func NewThreadStore() *ThreadStore { return &ThreadStore{} }

func scanThread(row pgx.Row) (*models.Thread, error) {
	var t models.Thread
	if err := row.Scan(
		&t.ID, &t.AppName, &t.UserID,
		jsonColumn(&t.State), jsonColumn(&t.Metadata),
		&t.Version, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan thread", err)
	}
	return &t, nil
}

const threadColumns = "id, app_name, user_id, state, metadata, version, created_at, updated_at"

// Insert creates a new thread row.
func (s *ThreadStore) Insert(ctx context.Context, db DBTX, t *models.Thread) error {
	state, err := jsonValue(t.State)
	if err != nil {
		return err
	}
	meta, err := jsonValue(t.Metadata)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO threads (id, app_name, user_id, state, metadata, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, t.ID, t.AppName, t.UserID, state, meta, t.Version)
	if err != nil {
		return apperrors.NewDatabaseError("insert thread", err)
	}
	return nil
}

// Get fetches a thread by (app_name, user_id, id).
func (s *ThreadStore) Get(ctx context.Context, db DBTX, appName, userID, id string) (*models.Thread, error) {
	row := db.QueryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE app_name=$1 AND user_id=$2 AND id=$3`,
		appName, userID, id)
	return scanThread(row)
}

// GetByID fetches a thread by primary id only (used once the app/user scope
// is already established by the caller, e.g. inside an append transaction).
func (s *ThreadStore) GetByID(ctx context.Context, db DBTX, id string) (*models.Thread, error) {
	row := db.QueryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE id=$1`, id)
	return scanThread(row)
}

// GetForUpdate locks the thread row for the duration of the caller's
// transaction, serializing concurrent AppendEvent calls on the same thread.
func (s *ThreadStore) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*models.Thread, error) {
	row := tx.QueryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE id=$1 FOR UPDATE`, id)
	return scanThread(row)
}

// List returns threads matching filters, most recently created first.
func (s *ThreadStore) List(ctx context.Context, db DBTX, f models.ThreadFilters) ([]*models.Thread, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(ctx, `
		SELECT `+threadColumns+` FROM threads
		WHERE app_name=$1 AND user_id=$2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, f.AppName, f.UserID, limit, f.Offset)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list threads", err)
	}
	defer rows.Close()

	var out []*models.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateState overwrites state/metadata/version and bumps updated_at.
func (s *ThreadStore) UpdateState(ctx context.Context, db DBTX, t *models.Thread) error {
	state, err := jsonValue(t.State)
	if err != nil {
		return err
	}
	meta, err := jsonValue(t.Metadata)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
		UPDATE threads SET state=$1, metadata=$2, version=version+1, updated_at=now()
		WHERE id=$3
	`, state, meta, t.ID)
	if err != nil {
		return apperrors.NewDatabaseError("update thread state", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// PatchTitle sets metadata.title without touching the rest of metadata,
// used by the out-of-transaction title-generation follow-up.
func (s *ThreadStore) PatchTitle(ctx context.Context, db DBTX, id, title string) error {
	tag, err := db.Exec(ctx, `
		UPDATE threads SET metadata = jsonb_set(metadata, '{title}', to_jsonb($1::text), true), updated_at = now()
		WHERE id=$2
	`, title, id)
	if err != nil {
		return apperrors.NewDatabaseError("patch thread title", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a thread; cascades to events via FK.
func (s *ThreadStore) Delete(ctx context.Context, db DBTX, appName, userID, id string) error {
	tag, err := db.Exec(ctx, `DELETE FROM threads WHERE app_name=$1 AND user_id=$2 AND id=$3`, appName, userID, id)
	if err != nil {
		return apperrors.NewDatabaseError("delete thread", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
