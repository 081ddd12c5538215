package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Services: config.ServicesConfig{
			SessionBackend:    config.BackendMemory,
			MemoryBackend:     config.BackendMemory,
			CredentialBackend: config.BackendMemory,
			ArtifactBackend:   config.BackendMemory,
			TempCacheBackend:  config.BackendMemory,
		},
	}
}

func TestFactory_MemoizesSessionStore(t *testing.T) {
	f := New(memoryConfig(), nil, nil, nil, nil, nil)

	first, err := f.SessionStore()
	require.NoError(t, err)
	second, err := f.SessionStore()
	require.NoError(t, err)
	assert.Same(t, first, second, "factory must return the process-wide singleton")
}

func TestFactory_OverrideBypassesCache(t *testing.T) {
	f := New(memoryConfig(), nil, nil, nil, nil, nil)

	cached, err := f.SessionStore()
	require.NoError(t, err)
	overridden, err := f.SessionStore(config.BackendMemory)
	require.NoError(t, err)
	assert.NotSame(t, cached, overridden, "explicit backend override is never cached")

	again, err := f.SessionStore()
	require.NoError(t, err)
	assert.Same(t, cached, again, "override must not replace the singleton")
}

func TestFactory_ResetClearsSingleton(t *testing.T) {
	f := New(memoryConfig(), nil, nil, nil, nil, nil)

	first, err := f.SessionStore()
	require.NoError(t, err)
	f.ResetSessionStore()
	second, err := f.SessionStore()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestFactory_DatabaseBackendWithoutPoolFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Services.SessionBackend = config.BackendDatabase
	f := New(cfg, nil, nil, nil, nil, nil)

	_, err := f.SessionStore()
	require.Error(t, err)
}

func TestFactory_UnknownBackendFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Services.CredentialBackend = config.Backend("bogus")
	f := New(cfg, nil, nil, nil, nil, nil)

	_, err := f.CredentialService()
	require.Error(t, err)
}

func TestFactory_CredentialAndArtifactMemoization(t *testing.T) {
	f := New(memoryConfig(), nil, nil, nil, nil, nil)

	c1, err := f.CredentialService()
	require.NoError(t, err)
	c2, err := f.CredentialService()
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	a1, err := f.ArtifactStore()
	require.NoError(t, err)
	a2, err := f.ArtifactStore()
	require.NoError(t, err)
	assert.Same(t, a1, a2)
}
