package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// FactStore is the hand-written SQL DAL for semantic facts.
type FactStore struct{}

func NewFactStore() *FactStore { return &FactStore{} }

const factColumns = "id, thread_id, user_id, app_name, fact_type, key, value, embedding, confidence, valid_from, valid_until, created_at"

func scanFact(row pgx.Row) (*models.Fact, error) {
	var f models.Fact
	var emb Vector
	if err := row.Scan(&f.ID, &f.ThreadID, &f.UserID, &f.AppName, &f.FactType, &f.Key,
		jsonColumn(&f.Value), &emb, &f.Confidence, &f.ValidFrom, &f.ValidUntil, &f.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan fact", err)
	}
	f.Embedding = emb.ToFloat32()
	return &f, nil
}

// FindByKey looks up the unique (user_id, app_name, fact_type, key) row, if any.
func (s *FactStore) FindByKey(ctx context.Context, db DBTX, userID, appName, factType, key string) (*models.Fact, error) {
	row := db.QueryRow(ctx, `
		SELECT `+factColumns+` FROM facts WHERE user_id=$1 AND app_name=$2 AND fact_type=$3 AND key=$4
	`, userID, appName, factType, key)
	f, err := scanFact(row)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return f, err
}

// Upsert inserts a new fact or overwrites value/confidence/embedding/valid_until
// on the existing row for the unique key.
func (s *FactStore) Upsert(ctx context.Context, db DBTX, f *models.Fact) error {
	val, err := jsonValue(f.Value)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO facts (id, thread_id, user_id, app_name, fact_type, key, value, embedding, confidence, valid_from, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (user_id, app_name, fact_type, key) DO UPDATE SET
			value = $7, embedding = $8, confidence = $9, valid_until = $11
	`, f.ID, f.ThreadID, f.UserID, f.AppName, f.FactType, f.Key, val, FromFloat32(f.Embedding), f.Confidence, f.ValidFrom, f.ValidUntil)
	if err != nil {
		return apperrors.NewDatabaseError("upsert fact", err)
	}
	return nil
}

// ListEffective returns facts for (userID, appName) effective at `at`,
// i.e. not yet expired.
func (s *FactStore) ListEffective(ctx context.Context, db DBTX, userID, appName string, at time.Time) ([]*models.Fact, error) {
	rows, err := db.Query(ctx, `
		SELECT `+factColumns+` FROM facts
		WHERE user_id=$1 AND app_name=$2 AND valid_from <= $3 AND (valid_until IS NULL OR valid_until > $3)
		ORDER BY created_at DESC
	`, userID, appName, at)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list effective facts", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

// SearchByVector returns facts nearest to query by cosine distance, among
// rows with a non-null embedding.
func (s *FactStore) SearchByVector(ctx context.Context, db DBTX, userID, appName string, query Vector, topK int) ([]*models.Fact, error) {
	rows, err := db.Query(ctx, `
		SELECT `+factColumns+` FROM facts
		WHERE user_id=$1 AND app_name=$2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $3
		LIMIT $4
	`, userID, appName, query, topK)
	if err != nil {
		return nil, apperrors.NewDatabaseError("vector search facts", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

// SearchByKeySubstring returns facts whose key contains query
// (case-insensitive), newest first.
func (s *FactStore) SearchByKeySubstring(ctx context.Context, db DBTX, userID, appName, query string, limit int) ([]*models.Fact, error) {
	rows, err := db.Query(ctx, `
		SELECT `+factColumns+` FROM facts
		WHERE user_id=$1 AND app_name=$2 AND key ILIKE '%' || $3 || '%'
		ORDER BY created_at DESC
		LIMIT $4
	`, userID, appName, query, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("substring search facts", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

func scanFactRows(rows pgx.Rows) ([]*models.Fact, error) {
	var out []*models.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteByThread deletes all facts sharing (userID, appName, threadID) — used
// by governance's "delete" action when the target memory had a thread_id.
func (s *FactStore) DeleteByThread(ctx context.Context, db DBTX, userID, appName, threadID string) error {
	_, err := db.Exec(ctx, `DELETE FROM facts WHERE user_id=$1 AND app_name=$2 AND thread_id=$3`, userID, appName, threadID)
	if err != nil {
		return apperrors.NewDatabaseError("delete facts by thread", err)
	}
	return nil
}

// AnonymizeByThread sets value={anonymized:true} and clears embedding for
// every fact sharing (userID, appName, threadID) — governance's "anonymize"
// action.
func (s *FactStore) AnonymizeByThread(ctx context.Context, db DBTX, userID, appName, threadID string) error {
	_, err := db.Exec(ctx, `
		UPDATE facts SET value='{"anonymized": true}', embedding=NULL
		WHERE user_id=$1 AND app_name=$2 AND thread_id=$3
	`, userID, appName, threadID)
	if err != nil {
		return apperrors.NewDatabaseError("anonymize facts by thread", err)
	}
	return nil
}
