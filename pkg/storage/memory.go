package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// MemoryStore is the hand-written SQL DAL for episodic memories.
type MemoryStore struct{}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

const memoryColumns = "id, thread_id, user_id, app_name, memory_type, content, embedding, metadata, retention_score, access_count, last_accessed_at, created_at, updated_at"

func scanMemory(row pgx.Row) (*models.Memory, error) {
	var m models.Memory
	var emb Vector
	if err := row.Scan(&m.ID, &m.ThreadID, &m.UserID, &m.AppName, &m.MemoryType, &m.Content,
		&emb, jsonColumn(&m.Metadata), &m.RetentionScore, &m.AccessCount, &m.LastAccessedAt,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan memory", err)
	}
	m.Embedding = emb.ToFloat32()
	return &m, nil
}

// Insert creates a new memory row.
func (s *MemoryStore) Insert(ctx context.Context, db DBTX, m *models.Memory) error {
	meta, err := jsonValue(m.Metadata)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO memories (id, thread_id, user_id, app_name, memory_type, content, embedding, metadata,
			retention_score, access_count, last_accessed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now(), now())
	`, m.ID, m.ThreadID, m.UserID, m.AppName, m.MemoryType, m.Content, FromFloat32(m.Embedding), meta,
		m.RetentionScore, m.AccessCount)
	if err != nil {
		return apperrors.NewDatabaseError("insert memory", err)
	}
	return nil
}

// Get fetches a memory by id.
func (s *MemoryStore) Get(ctx context.Context, db DBTX, id string) (*models.Memory, error) {
	row := db.QueryRow(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id=$1`, id)
	return scanMemory(row)
}

// GetForUpdate locks the memory row for the duration of the caller's
// transaction, serializing concurrent governance decisions on the same
// memory the way thread rows serialize concurrent appends.
func (s *MemoryStore) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*models.Memory, error) {
	row := tx.QueryRow(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id=$1 FOR UPDATE`, id)
	return scanMemory(row)
}

// SearchByVector returns the topK memories nearest to query by cosine
// distance, excluding rows with a null embedding.
func (s *MemoryStore) SearchByVector(ctx context.Context, db DBTX, appName, userID string, query Vector, topK int) ([]*models.Memory, error) {
	rows, err := db.Query(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE app_name=$1 AND user_id=$2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $3
		LIMIT $4
	`, appName, userID, query, topK)
	if err != nil {
		return nil, apperrors.NewDatabaseError("vector search memories", err)
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}

// SearchBySubstring returns memories whose content contains query
// (case-insensitive), most recent first. Used when no embedding function is
// configured.
func (s *MemoryStore) SearchBySubstring(ctx context.Context, db DBTX, appName, userID, query string, limit int) ([]*models.Memory, error) {
	rows, err := db.Query(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE app_name=$1 AND user_id=$2 AND content ILIKE '%' || $3 || '%'
		ORDER BY created_at DESC
		LIMIT $4
	`, appName, userID, query, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("substring search memories", err)
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}

func scanMemoryRows(rows pgx.Rows) ([]*models.Memory, error) {
	var out []*models.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a memory row by id.
func (s *MemoryStore) Delete(ctx context.Context, db DBTX, id string) error {
	tag, err := db.Exec(ctx, `DELETE FROM memories WHERE id=$1`, id)
	if err != nil {
		return apperrors.NewDatabaseError("delete memory", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Anonymize clears content/metadata/embedding for a memory.
func (s *MemoryStore) Anonymize(ctx context.Context, db DBTX, id string) error {
	tag, err := db.Exec(ctx, `
		UPDATE memories SET content='[ANONYMIZED]', metadata='{}', embedding=NULL, updated_at=now()
		WHERE id=$1
	`, id)
	if err != nil {
		return apperrors.NewDatabaseError("anonymize memory", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
