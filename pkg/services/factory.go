// Package services wires the engine's backend-selectable services behind
// configuration-driven factories: each factory reads its backend
// string, constructs the matching implementation, and memoizes it as a
// process-wide singleton. Passing an explicit backend override bypasses the
// cache; Reset* entry points clear singletons and exist for tests only.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/negentropy-ai/engine/pkg/artifact"
	"github.com/negentropy-ai/engine/pkg/config"
	"github.com/negentropy-ai/engine/pkg/credential"
	"github.com/negentropy-ai/engine/pkg/knowledge"
	"github.com/negentropy-ai/engine/pkg/memory"
	"github.com/negentropy-ai/engine/pkg/provider"
	"github.com/negentropy-ai/engine/pkg/session"
	"github.com/negentropy-ai/engine/pkg/storage"
	"github.com/negentropy-ai/engine/pkg/summarizer"
)

// Factory holds the shared dependencies every service is built from and the
// memoized singletons. One Factory lives for the process's lifetime.
type Factory struct {
	cfg      *config.Config
	pool     *storage.Pool
	log      *slog.Logger
	llm      provider.LLMProvider
	embedder provider.EmbeddingProvider
	reranker knowledge.Reranker

	mu          sync.Mutex
	tempCache   session.TempCache
	sessions    session.Store
	credentials credential.Service
	artifacts   artifact.Store
	memories    *memory.Memories
	facts       *memory.Facts
	governance  *memory.Governance
	repository  *knowledge.Repository
	pipeline    *knowledge.Pipeline
	engine      *knowledge.Engine
	runs        *knowledge.Runs
	titles      session.TitleGenerator
}

// New builds a Factory. pool may be nil only when every selected backend is
// "memory"; llm/embedder/reranker may be nil when the deployment has no such
// provider (dependent features degrade per their specs).
func New(cfg *config.Config, pool *storage.Pool, log *slog.Logger, llm provider.LLMProvider, embedder provider.EmbeddingProvider, reranker knowledge.Reranker) *Factory {
	return &Factory{cfg: cfg, pool: pool, log: log, llm: llm, embedder: embedder, reranker: reranker}
}

func (f *Factory) requirePool(service string) error {
	if f.pool == nil {
		return fmt.Errorf("%s requires a database pool but none is configured", service)
	}
	return nil
}

// TempCache returns the temp: state cache, selected by NE_SESSION_TEMP_CACHE.
func (f *Factory) TempCache() session.TempCache {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tempCache == nil {
		if f.cfg.Services.TempCacheBackend == "redis" {
			f.tempCache = session.NewRedisTempCache(f.cfg.Services.RedisAddr)
		} else {
			f.tempCache = session.NewLocalTempCache()
		}
	}
	return f.tempCache
}

// TitleGenerator returns the title summarizer, or nil when no LLM provider
// is configured (title generation then silently no-ops).
func (f *Factory) TitleGenerator() session.TitleGenerator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.titles == nil && f.llm != nil {
		f.titles = summarizer.New(f.llm, f.cfg.LLM.Model)
	}
	return f.titles
}

// SessionStore returns the session store for the configured backend, or for
// override[0] when given (overridden results are never cached).
func (f *Factory) SessionStore(override ...config.Backend) (session.Store, error) {
	if len(override) > 0 {
		return f.buildSessionStore(override[0])
	}
	f.mu.Lock()
	cached := f.sessions
	f.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	built, err := f.buildSessionStore(f.cfg.Services.SessionBackend)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = built
	}
	return f.sessions, nil
}

func (f *Factory) buildSessionStore(backend config.Backend) (session.Store, error) {
	temp := f.TempCache()
	titles := f.TitleGenerator()
	switch backend {
	case config.BackendMemory:
		return session.NewMemoryStore(temp, titles, f.log), nil
	case config.BackendDatabase, config.BackendCloud:
		if err := f.requirePool("session store"); err != nil {
			return nil, err
		}
		return session.NewDatabaseStore(f.pool, temp, titles, f.log), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

// ResetSessionStore clears the memoized session store. Tests only.
func (f *Factory) ResetSessionStore() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = nil
}

// CredentialService returns the credential service for the configured
// backend, or for override[0] (never cached).
func (f *Factory) CredentialService(override ...config.Backend) (credential.Service, error) {
	if len(override) > 0 {
		return f.buildCredentialService(override[0])
	}
	f.mu.Lock()
	cached := f.credentials
	f.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	built, err := f.buildCredentialService(f.cfg.Services.CredentialBackend)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credentials == nil {
		f.credentials = built
	}
	return f.credentials, nil
}

func (f *Factory) buildCredentialService(backend config.Backend) (credential.Service, error) {
	switch backend {
	case config.BackendMemory:
		return credential.NewMemoryService(), nil
	case config.BackendDatabase, config.BackendCloud:
		if err := f.requirePool("credential service"); err != nil {
			return nil, err
		}
		return credential.NewDatabaseService(f.pool), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", backend)
	}
}

// ResetCredentialService clears the memoized credential service. Tests only.
func (f *Factory) ResetCredentialService() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials = nil
}

// ArtifactStore returns the artifact store for the configured backend, or
// for override[0] (never cached).
func (f *Factory) ArtifactStore(override ...config.Backend) (artifact.Store, error) {
	if len(override) > 0 {
		return f.buildArtifactStore(override[0])
	}
	f.mu.Lock()
	cached := f.artifacts
	f.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	built, err := f.buildArtifactStore(f.cfg.Services.ArtifactBackend)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.artifacts == nil {
		f.artifacts = built
	}
	return f.artifacts, nil
}

func (f *Factory) buildArtifactStore(backend config.Backend) (artifact.Store, error) {
	switch backend {
	case config.BackendMemory, config.BackendDatabase:
		return artifact.NewMemoryStore(), nil
	case config.BackendCloud:
		if f.cfg.Services.S3Bucket == "" {
			return nil, fmt.Errorf("cloud artifact backend requires NE_S3_BUCKET")
		}
		return artifact.NewS3Store(context.Background(), f.cfg.Services.S3Bucket, f.cfg.Services.S3Region)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", backend)
	}
}

// ResetArtifactStore clears the memoized artifact store. Tests only.
func (f *Factory) ResetArtifactStore() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts = nil
}

// Memories returns the episodic-memory service.
func (f *Factory) Memories() (*memory.Memories, error) {
	if err := f.requirePool("memory store"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memories == nil {
		f.memories = memory.NewMemories(f.pool, f.embedder, f.log)
	}
	return f.memories, nil
}

// Facts returns the semantic-fact service.
func (f *Factory) Facts() (*memory.Facts, error) {
	if err := f.requirePool("fact store"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.facts == nil {
		f.facts = memory.NewFacts(f.pool, f.embedder, f.log)
	}
	return f.facts, nil
}

// Consolidator returns a consolidator bound to the memory service.
func (f *Factory) Consolidator() (*memory.Consolidator, error) {
	mems, err := f.Memories()
	if err != nil {
		return nil, err
	}
	return memory.NewConsolidator(mems, f.embedder, f.log), nil
}

// Governance returns the governance audit service.
func (f *Factory) Governance() (*memory.Governance, error) {
	if err := f.requirePool("governance service"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.governance == nil {
		f.governance = memory.NewGovernance(f.pool, f.log)
	}
	return f.governance, nil
}

// Repository returns the knowledge repository.
func (f *Factory) Repository() (*knowledge.Repository, error) {
	if err := f.requirePool("knowledge repository"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repository == nil {
		f.repository = knowledge.NewRepository(f.pool)
	}
	return f.repository, nil
}

// Pipeline returns the ingestion pipeline.
func (f *Factory) Pipeline() (*knowledge.Pipeline, error) {
	if err := f.requirePool("ingestion pipeline"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pipeline == nil {
		f.pipeline = knowledge.NewPipeline(f.pool, f.embedder, nil, f.log)
	}
	return f.pipeline, nil
}

// Engine returns the retrieval engine.
func (f *Factory) Engine() (*knowledge.Engine, error) {
	if err := f.requirePool("retrieval engine"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.engine == nil {
		f.engine = knowledge.NewEngine(f.pool, f.embedder, f.reranker)
	}
	return f.engine, nil
}

// Runs returns the pipeline/graph run observability service.
func (f *Factory) Runs() (*knowledge.Runs, error) {
	if err := f.requirePool("run observability"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = knowledge.NewRuns(f.pool)
	}
	return f.runs, nil
}
