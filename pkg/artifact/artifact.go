// Package artifact implements the Artifact Store component: a pluggable blob
// store for opaque binary artifacts, with an in-memory backend and an
// object-store backend selected by the Service Factories.
package artifact

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// Store is the blob contract consumed by the agent-framework hooks. Payloads
// are opaque; the engine only tracks size, content type, and a URI.
type Store interface {
	Put(ctx context.Context, appName, name string, data []byte, contentType string) (*models.Artifact, error)
	Get(ctx context.Context, appName, name string) ([]byte, *models.Artifact, error)
	Delete(ctx context.Context, appName, name string) error
}

// MemoryStore is the in-process backend (NE_ARTIFACT_BACKEND=memory).
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string]memoryBlob
}

type memoryBlob struct {
	data []byte
	meta models.Artifact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memoryBlob)}
}

func blobKey(appName, name string) string { return appName + "/" + name }

func (s *MemoryStore) Put(_ context.Context, appName, name string, data []byte, contentType string) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	meta := models.Artifact{
		ID:          uuid.New().String(),
		AppName:     appName,
		ContentType: contentType,
		Size:        int64(len(data)),
		URI:         "memory://" + blobKey(appName, name),
		CreatedAt:   time.Now(),
	}
	s.blobs[blobKey(appName, name)] = memoryBlob{data: stored, meta: meta}
	out := meta
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, appName, name string) ([]byte, *models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[blobKey(appName, name)]
	if !ok {
		return nil, nil, apperrors.ErrNotFound
	}
	data := make([]byte, len(b.data))
	copy(data, b.data)
	meta := b.meta
	return data, &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, appName, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := blobKey(appName, name)
	if _, ok := s.blobs[k]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.blobs, k)
	return nil
}
