// Package config loads the engine's environment-variable configuration:
// a dotenv precedence chain feeding orthogonal config groups.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Env is the deployment environment selector (NE_ENV).
type Env string

const (
	EnvDevelopment Env = "development"
	EnvTesting     Env = "testing"
	EnvStaging     Env = "staging"
	EnvProduction  Env = "production"
)

// Config aggregates every orthogonal configuration group.
type Config struct {
	Env      Env
	Database DatabaseConfig
	LLM      LLMConfig
	Services ServicesConfig
	Logging  LoggingConfig
	Tracing  TracingConfig
	Auth     AuthConfig
}

// Load reads NE_ENV, applies the dotfile precedence chain, then builds a
// Config from the resulting process environment. dir is the directory
// holding the .env* files (defaults to the working directory).
//
// Precedence (lowest to highest, later files win on conflicting keys):
//
//	.env < .env.local < .env.{env} < .env.{env}.local
//
// A missing file is tolerated: each load failure is logged at warn and
// skipped, never fatal.
func Load(dir string) (*Config, error) {
	env := Env(getEnv("NE_ENV", string(EnvDevelopment)))

	// godotenv.Load never overwrites a key that is already set, so the
	// most specific file is loaded first and each later, more general file
	// only fills the keys still missing.
	candidates := []string{
		fmt.Sprintf(".env.%s.local", env),
		fmt.Sprintf(".env.%s", env),
		".env.local",
		".env",
	}
	for _, name := range candidates {
		path := name
		if dir != "" {
			path = dir + string(os.PathSeparator) + name
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("could not load dotenv file, continuing", "path", path, "error", err)
			continue
		}
		slog.Info("loaded dotenv file", "path", path)
	}

	cfg := &Config{
		Env:      env,
		Database: loadDatabaseConfig(),
		LLM:      loadLLMConfig(),
		Services: loadServicesConfig(),
		Logging:  loadLoggingConfig(),
		Tracing:  loadTracingConfig(),
		Auth:     loadAuthConfig(),
	}

	// Optional declarative overlay for deployments that mount a yaml file
	// next to the dotenv.
	filePath := getEnv("NE_CONFIG_FILE", "")
	if filePath == "" && dir != "" {
		filePath = dir + string(os.PathSeparator) + "negentropy.yaml"
	}
	if filePath != "" {
		if err := ApplyFile(cfg, filePath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid int env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid bool env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}
