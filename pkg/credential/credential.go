// Package credential implements the Credential Store component: per
// (app,user,key) upsert of a JSON payload the engine treats as opaque.
package credential

import (
	"context"
	"sync"
	"time"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/storage"
)

// Service is the credential contract consumed by the agent-framework hooks.
type Service interface {
	Upsert(ctx context.Context, req models.UpsertCredentialRequest) (*models.Credential, error)
	Get(ctx context.Context, appName, userID, key string) (*models.Credential, error)
	Delete(ctx context.Context, appName, userID, key string) error
}

// DatabaseService persists credentials through the DAL.
type DatabaseService struct {
	pool  *storage.Pool
	store *storage.CredentialStore
}

func NewDatabaseService(pool *storage.Pool) *DatabaseService {
	return &DatabaseService{pool: pool, store: storage.NewCredentialStore()}
}

func (s *DatabaseService) Upsert(ctx context.Context, req models.UpsertCredentialRequest) (*models.Credential, error) {
	data := req.CredentialData
	if data == nil {
		data = models.JSONMap{}
	}
	c := &models.Credential{
		AppName: req.AppName, UserID: req.UserID, CredentialKey: req.CredentialKey,
		CredentialData: data,
	}
	if err := s.store.Upsert(ctx, s.pool.Pool, c); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, s.pool.Pool, req.AppName, req.UserID, req.CredentialKey)
}

func (s *DatabaseService) Get(ctx context.Context, appName, userID, key string) (*models.Credential, error) {
	return s.store.Get(ctx, s.pool.Pool, appName, userID, key)
}

func (s *DatabaseService) Delete(ctx context.Context, appName, userID, key string) error {
	return s.store.Delete(ctx, s.pool.Pool, appName, userID, key)
}

// MemoryService is the in-process backend (NE_CREDENTIAL_BACKEND=memory),
// for tests and single-process development.
type MemoryService struct {
	mu    sync.Mutex
	creds map[string]*models.Credential
}

func NewMemoryService() *MemoryService {
	return &MemoryService{creds: make(map[string]*models.Credential)}
}

func credKey(appName, userID, key string) string {
	return appName + "|" + userID + "|" + key
}

func (s *MemoryService) Upsert(_ context.Context, req models.UpsertCredentialRequest) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := req.CredentialData
	if data == nil {
		data = models.JSONMap{}
	}
	c := &models.Credential{
		AppName: req.AppName, UserID: req.UserID, CredentialKey: req.CredentialKey,
		CredentialData: data.Clone(), UpdatedAt: time.Now(),
	}
	s.creds[credKey(req.AppName, req.UserID, req.CredentialKey)] = c
	return cloneCredential(c), nil
}

func (s *MemoryService) Get(_ context.Context, appName, userID, key string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[credKey(appName, userID, key)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneCredential(c), nil
}

func (s *MemoryService) Delete(_ context.Context, appName, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := credKey(appName, userID, key)
	if _, ok := s.creds[k]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.creds, k)
	return nil
}

func cloneCredential(c *models.Credential) *models.Credential {
	out := *c
	out.CredentialData = c.CredentialData.Clone()
	return &out
}
