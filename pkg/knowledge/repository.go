package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/storage"
)

func newID() string { return uuid.New().String() }

// Repository is the Knowledge Repository service: corpus CRUD, chunk
// listing, and the content-hash dedup ledger for uploaded documents.
type Repository struct {
	pool      *storage.Pool
	corpora   *storage.CorpusStore
	knowledge *storage.KnowledgeStore
	documents *storage.KnowledgeDocumentStore
}

func NewRepository(pool *storage.Pool) *Repository {
	return &Repository{
		pool:      pool,
		corpora:   storage.NewCorpusStore(),
		knowledge: storage.NewKnowledgeStore(),
		documents: storage.NewKnowledgeDocumentStore(),
	}
}

func (r *Repository) CreateCorpus(ctx context.Context, appName, name string, description *string, config models.JSONMap) (*models.Corpus, error) {
	if config == nil {
		config = models.JSONMap{}
	}
	c := &models.Corpus{ID: newID(), AppName: appName, Name: name, Description: description, Config: config}
	if err := r.corpora.Insert(ctx, r.pool.Pool, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) GetCorpus(ctx context.Context, appName, id string) (*models.Corpus, error) {
	return r.corpora.Get(ctx, r.pool.Pool, appName, id)
}

func (r *Repository) ListCorpora(ctx context.Context, appName string) ([]*models.Corpus, error) {
	return r.corpora.List(ctx, r.pool.Pool, appName)
}

// UpdateCorpus applies a partial update: nil fields keep their stored value.
func (r *Repository) UpdateCorpus(ctx context.Context, appName, id string, name, description *string, config models.JSONMap) (*models.Corpus, error) {
	c, err := r.corpora.Get(ctx, r.pool.Pool, appName, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		c.Name = *name
	}
	if description != nil {
		c.Description = description
	}
	if config != nil {
		c.Config = config
	}
	if err := r.corpora.Update(ctx, r.pool.Pool, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) DeleteCorpus(ctx context.Context, appName, id string) error {
	return r.corpora.Delete(ctx, r.pool.Pool, appName, id)
}

// ListChunks returns a page of chunks in corpusID, optionally filtered to a
// single source_uri.
func (r *Repository) ListChunks(ctx context.Context, corpusID string, sourceURI *string, limit, offset int) ([]*models.Knowledge, error) {
	return r.knowledge.ListChunks(ctx, r.pool.Pool, corpusID, sourceURI, limit, offset)
}

// UploadResult reports whether an uploaded document was newly recorded or
// already existed under the same content hash.
type UploadResult struct {
	Document *models.KnowledgeDocument
	IsNew    bool
}

// RecordUpload implements dedup-on-upload: if a document
// with the same (corpus_id, file_hash) already exists, return it unchanged;
// otherwise insert a new record at objectURI.
func (r *Repository) RecordUpload(ctx context.Context, appName, corpusID string, rawBytes []byte, originalFilename string, contentType *string, objectURI string) (*UploadResult, error) {
	hash := ContentHash(rawBytes)
	existing, err := r.documents.FindByHash(ctx, r.pool.Pool, corpusID, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &UploadResult{Document: existing, IsNew: false}, nil
	}

	doc := &models.KnowledgeDocument{
		ID: newID(), CorpusID: corpusID, AppName: appName, FileHash: hash,
		OriginalFilename: originalFilename, GCSURI: objectURI, ContentType: contentType,
		FileSize: int64(len(rawBytes)), Status: models.DocumentStatusActive, Metadata: models.JSONMap{},
	}
	if err := r.documents.Insert(ctx, r.pool.Pool, doc); err != nil {
		return nil, err
	}
	return &UploadResult{Document: doc, IsNew: true}, nil
}

// ContentHash is the SHA-256 hex digest used as the dedup key for uploads.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var unsafeObjectNameChars = regexp.MustCompile(`[^\w\x{4e00}-\x{9fff}\-.]`)

// ObjectKey builds the object-store key for an uploaded document:
// knowledge/{app_name}/{corpus_id}/{sanitized_filename}, where sanitization
// strips path separators and restricts to [\w一-鿿\-.], truncated to
// 255 characters.
func ObjectKey(appName, corpusID, filename string) string {
	sanitized := unsafeObjectNameChars.ReplaceAllString(filename, "_")
	if r := []rune(sanitized); len(r) > 255 {
		sanitized = string(r[:255])
	}
	return strings.Join([]string{"knowledge", appName, corpusID, sanitized}, "/")
}
