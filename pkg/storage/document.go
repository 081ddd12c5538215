package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// KnowledgeDocumentStore is the hand-written SQL DAL for uploaded-document
// records, content-addressed by file_hash for upload dedup.
type KnowledgeDocumentStore struct{}

func NewKnowledgeDocumentStore() *KnowledgeDocumentStore { return &KnowledgeDocumentStore{} }

const documentColumns = "id, corpus_id, app_name, file_hash, original_filename, gcs_uri, content_type, file_size, status, metadata, created_at, updated_at"

func scanDocument(row pgx.Row) (*models.KnowledgeDocument, error) {
	var d models.KnowledgeDocument
	if err := row.Scan(&d.ID, &d.CorpusID, &d.AppName, &d.FileHash, &d.OriginalFilename, &d.GCSURI,
		&d.ContentType, &d.FileSize, &d.Status, jsonColumn(&d.Metadata), &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan knowledge document", err)
	}
	return &d, nil
}

// FindByHash looks up an existing document under (corpus_id, file_hash),
// whatever its status,
// letting the upload handler short-circuit a duplicate upload.
func (s *KnowledgeDocumentStore) FindByHash(ctx context.Context, db DBTX, corpusID, fileHash string) (*models.KnowledgeDocument, error) {
	row := db.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM knowledge_documents WHERE corpus_id=$1 AND file_hash=$2
	`, corpusID, fileHash)
	d, err := scanDocument(row)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

func (s *KnowledgeDocumentStore) Insert(ctx context.Context, db DBTX, d *models.KnowledgeDocument) error {
	meta, err := jsonValue(d.Metadata)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO knowledge_documents (id, corpus_id, app_name, file_hash, original_filename, gcs_uri, content_type, file_size, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
	`, d.ID, d.CorpusID, d.AppName, d.FileHash, d.OriginalFilename, d.GCSURI, d.ContentType, d.FileSize, d.Status, meta)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return apperrors.NewDatabaseError("insert knowledge document", err)
	}
	return nil
}

func (s *KnowledgeDocumentStore) Get(ctx context.Context, db DBTX, id string) (*models.KnowledgeDocument, error) {
	row := db.QueryRow(ctx, `SELECT `+documentColumns+` FROM knowledge_documents WHERE id=$1`, id)
	return scanDocument(row)
}

// MarkDeleted flips status to 'deleted' without removing the row, preserving
// the dedup ledger even after the underlying knowledge chunks are removed.
func (s *KnowledgeDocumentStore) MarkDeleted(ctx context.Context, db DBTX, id string) error {
	tag, err := db.Exec(ctx, `UPDATE knowledge_documents SET status='deleted', updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return apperrors.NewDatabaseError("mark knowledge document deleted", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *KnowledgeDocumentStore) ListByCorpus(ctx context.Context, db DBTX, corpusID string) ([]*models.KnowledgeDocument, error) {
	rows, err := db.Query(ctx, `
		SELECT `+documentColumns+` FROM knowledge_documents WHERE corpus_id=$1 ORDER BY created_at DESC
	`, corpusID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list knowledge documents", err)
	}
	defer rows.Close()
	var out []*models.KnowledgeDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
