package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// CorpusStore is the hand-written SQL DAL for corpora.
type CorpusStore struct{}

func NewCorpusStore() *CorpusStore { return &CorpusStore{} }

const corpusColumns = "id, app_name, name, description, config, created_at, updated_at"

func scanCorpus(row pgx.Row) (*models.Corpus, error) {
	var c models.Corpus
	if err := row.Scan(&c.ID, &c.AppName, &c.Name, &c.Description, jsonColumn(&c.Config), &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan corpus", err)
	}
	return &c, nil
}

func (s *CorpusStore) Insert(ctx context.Context, db DBTX, c *models.Corpus) error {
	cfg, err := jsonValue(c.Config)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO corpora (id, app_name, name, description, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, c.ID, c.AppName, c.Name, c.Description, cfg)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return apperrors.NewDatabaseError("insert corpus", err)
	}
	return nil
}

func (s *CorpusStore) Get(ctx context.Context, db DBTX, appName, id string) (*models.Corpus, error) {
	row := db.QueryRow(ctx, `SELECT `+corpusColumns+` FROM corpora WHERE app_name=$1 AND id=$2`, appName, id)
	return scanCorpus(row)
}

func (s *CorpusStore) GetByName(ctx context.Context, db DBTX, appName, name string) (*models.Corpus, error) {
	row := db.QueryRow(ctx, `SELECT `+corpusColumns+` FROM corpora WHERE app_name=$1 AND name=$2`, appName, name)
	return scanCorpus(row)
}

func (s *CorpusStore) List(ctx context.Context, db DBTX, appName string) ([]*models.Corpus, error) {
	rows, err := db.Query(ctx, `SELECT `+corpusColumns+` FROM corpora WHERE app_name=$1 ORDER BY created_at DESC`, appName)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list corpora", err)
	}
	defer rows.Close()
	var out []*models.Corpus
	for rows.Next() {
		c, err := scanCorpus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update overwrites the mutable corpus fields (name, description, config).
func (s *CorpusStore) Update(ctx context.Context, db DBTX, c *models.Corpus) error {
	cfg, err := jsonValue(c.Config)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
		UPDATE corpora SET name=$1, description=$2, config=$3, updated_at=now()
		WHERE app_name=$4 AND id=$5
	`, c.Name, c.Description, cfg, c.AppName, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return apperrors.NewDatabaseError("update corpus", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *CorpusStore) Delete(ctx context.Context, db DBTX, appName, id string) error {
	tag, err := db.Exec(ctx, `DELETE FROM corpora WHERE app_name=$1 AND id=$2`, appName, id)
	if err != nil {
		return apperrors.NewDatabaseError("delete corpus", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// KnowledgeStore is the hand-written SQL DAL for ingested chunks.
type KnowledgeStore struct{}

func NewKnowledgeStore() *KnowledgeStore { return &KnowledgeStore{} }

const knowledgeColumns = "id, corpus_id, app_name, content, embedding, source_uri, chunk_index, metadata, created_at, updated_at"

func scanKnowledge(row pgx.Row) (*models.Knowledge, error) {
	var k models.Knowledge
	var emb Vector
	if err := row.Scan(&k.ID, &k.CorpusID, &k.AppName, &k.Content, &emb, &k.SourceURI,
		&k.ChunkIndex, jsonColumn(&k.Metadata), &k.CreatedAt, &k.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan knowledge chunk", err)
	}
	k.Embedding = emb.ToFloat32()
	return &k, nil
}

func (s *KnowledgeStore) Insert(ctx context.Context, db DBTX, k *models.Knowledge) error {
	meta, err := jsonValue(k.Metadata)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO knowledge (id, corpus_id, app_name, content, embedding, source_uri, chunk_index, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`, k.ID, k.CorpusID, k.AppName, k.Content, FromFloat32(k.Embedding), k.SourceURI, k.ChunkIndex, meta)
	if err != nil {
		return apperrors.NewDatabaseError("insert knowledge chunk", err)
	}
	return nil
}

func (s *KnowledgeStore) Get(ctx context.Context, db DBTX, id string) (*models.Knowledge, error) {
	row := db.QueryRow(ctx, `SELECT `+knowledgeColumns+` FROM knowledge WHERE id=$1`, id)
	return scanKnowledge(row)
}

// DeleteBySource removes every chunk under corpusID whose source_uri matches,
// used by replace_source/delete-then-rechunk operations.
func (s *KnowledgeStore) DeleteBySource(ctx context.Context, db DBTX, corpusID, sourceURI string) (int64, error) {
	tag, err := db.Exec(ctx, `DELETE FROM knowledge WHERE corpus_id=$1 AND source_uri=$2`, corpusID, sourceURI)
	if err != nil {
		return 0, apperrors.NewDatabaseError("delete knowledge by source", err)
	}
	return tag.RowsAffected(), nil
}

func (s *KnowledgeStore) DeleteByCorpus(ctx context.Context, db DBTX, corpusID string) (int64, error) {
	tag, err := db.Exec(ctx, `DELETE FROM knowledge WHERE corpus_id=$1`, corpusID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("delete knowledge by corpus", err)
	}
	return tag.RowsAffected(), nil
}

// SearchSemantic ranks chunks in corpusID by cosine distance to query,
// optionally constrained by a jsonb-containment metadata filter.
func (s *KnowledgeStore) SearchSemantic(ctx context.Context, db DBTX, corpusID string, query Vector, filter models.JSONMap, limit int) ([]*models.SearchResult, error) {
	args := []any{corpusID, query}
	where := "corpus_id=$1 AND embedding IS NOT NULL"
	if len(filter) > 0 {
		f, err := jsonValue(filter)
		if err != nil {
			return nil, err
		}
		args = append(args, f)
		where += " AND metadata @> $3"
	}
	args = append(args, limit)
	limitParam := len(args)
	rows, err := db.Query(ctx, `
		SELECT `+knowledgeColumns+`, 1 - (embedding <=> $2) AS score
		FROM knowledge WHERE `+where+`
		ORDER BY embedding <=> $2
		LIMIT $`+itoa(limitParam), args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("semantic search knowledge", err)
	}
	defer rows.Close()
	return scanSearchResults(rows, func(r *models.SearchResult) { r.CombinedScore = r.SemanticScore }, true)
}

// SearchKeyword ranks chunks by Postgres full-text rank against query
// (the keyword-search side of hybrid retrieval).
func (s *KnowledgeStore) SearchKeyword(ctx context.Context, db DBTX, corpusID, query string, filter models.JSONMap, limit int) ([]*models.SearchResult, error) {
	args := []any{corpusID, query}
	where := "corpus_id=$1 AND search_vector @@ plainto_tsquery('english', $2)"
	if len(filter) > 0 {
		f, err := jsonValue(filter)
		if err != nil {
			return nil, err
		}
		args = append(args, f)
		where += " AND metadata @> $3"
	}
	args = append(args, limit)
	limitParam := len(args)
	rows, err := db.Query(ctx, `
		SELECT `+knowledgeColumns+`, ts_rank(search_vector, plainto_tsquery('english', $2)) AS score
		FROM knowledge WHERE `+where+`
		ORDER BY score DESC
		LIMIT $`+itoa(limitParam), args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("keyword search knowledge", err)
	}
	defer rows.Close()
	return scanSearchResults(rows, func(r *models.SearchResult) { r.CombinedScore = r.KeywordScore }, false)
}

func scanSearchResults(rows pgx.Rows, setCombined func(*models.SearchResult), semantic bool) ([]*models.SearchResult, error) {
	var out []*models.SearchResult
	for rows.Next() {
		var k models.Knowledge
		var emb Vector
		var score float64
		if err := rows.Scan(&k.ID, &k.CorpusID, &k.AppName, &k.Content, &emb, &k.SourceURI,
			&k.ChunkIndex, jsonColumn(&k.Metadata), &k.CreatedAt, &k.UpdatedAt, &score); err != nil {
			return nil, apperrors.NewDatabaseError("scan search result", err)
		}
		k.Embedding = emb.ToFloat32()
		r := &models.SearchResult{Knowledge: &k}
		if semantic {
			r.SemanticScore = score
		} else {
			r.KeywordScore = score
		}
		setCombined(r)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListChunks returns a page of chunks in corpusID, newest first, optionally
// filtered to one source_uri — backs the paginated chunk-listing endpoint.
func (s *KnowledgeStore) ListChunks(ctx context.Context, db DBTX, corpusID string, sourceURI *string, limit, offset int) ([]*models.Knowledge, error) {
	if limit <= 0 {
		limit = 50
	}
	args := []any{corpusID}
	where := "corpus_id=$1"
	if sourceURI != nil {
		args = append(args, *sourceURI)
		where += " AND source_uri=$2"
	}
	args = append(args, limit, offset)
	rows, err := db.Query(ctx, `
		SELECT `+knowledgeColumns+` FROM knowledge WHERE `+where+`
		ORDER BY chunk_index ASC LIMIT $`+itoa(len(args)-1)+` OFFSET $`+itoa(len(args)), args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list knowledge chunks", err)
	}
	defer rows.Close()
	var out []*models.Knowledge
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && containsPgCode(err, "23505")
}
