package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDotenv(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad_DotfilePrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NE_ENV", "testing")
	// Clear vars we assert on so a leaked prior value can't mask precedence bugs.
	t.Setenv("NE_DATABASE_URL", "")
	os.Unsetenv("NE_DATABASE_URL")

	writeDotenv(t, dir, ".env", "NE_DATABASE_URL=base\n")
	writeDotenv(t, dir, ".env.local", "NE_DATABASE_URL=local\n")
	writeDotenv(t, dir, ".env.testing", "NE_DATABASE_URL=testing\n")
	writeDotenv(t, dir, ".env.testing.local", "NE_DATABASE_URL=testing-local\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, EnvTesting, cfg.Env)
	assert.Equal(t, "testing-local", cfg.Database.URL)
}

func TestLoad_MissingDotfilesDoNotFail(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NE_ENV", "development")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.NotEmpty(t, cfg.Database.URL, "a default URL is always present")
}

func TestDatabaseConfig_Defaults(t *testing.T) {
	for _, k := range []string{"NE_DATABASE_POOL_SIZE", "NE_DATABASE_MAX_OVERFLOW", "NE_DATABASE_CONN_MAX_LIFETIME"} {
		os.Unsetenv(k)
	}
	cfg := loadDatabaseConfig()
	assert.Equal(t, 5, cfg.PoolSize)
	assert.Equal(t, 10, cfg.MaxOverflow)
}

func TestGetEnvInt_InvalidFallsBackToDefault(t *testing.T) {
	t.Setenv("NE_TEST_INT", "not-a-number")
	assert.Equal(t, 42, getEnvInt("NE_TEST_INT", 42))
}

func TestGetEnvList_SplitsAndTrims(t *testing.T) {
	t.Setenv("NE_TEST_LIST", "stdio, file ,cloud")
	assert.Equal(t, []string{"stdio", "file", "cloud"}, getEnvList("NE_TEST_LIST", nil))
}
