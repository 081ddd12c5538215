package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// FileConfig is the optional negentropy.yaml overlay. Deployments that pin
// settings in a mounted file (rather than per-process env) use it; any field
// left empty keeps the env-derived value.
type FileConfig struct {
	Database *DatabaseFileConfig `yaml:"database"`
	LLM      *LLMFileConfig      `yaml:"llm"`
	Services *ServicesFileConfig `yaml:"services"`
	Logging  *LoggingFileConfig  `yaml:"logging"`
	Tracing  *TracingFileConfig  `yaml:"tracing"`
}

type DatabaseFileConfig struct {
	URL             string `yaml:"url,omitempty"`
	PoolSize        int    `yaml:"pool_size,omitempty"`
	MaxOverflow     int    `yaml:"max_overflow,omitempty"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime,omitempty"` // parsed to time.Duration
}

type LLMFileConfig struct {
	Provider        string  `yaml:"provider,omitempty"`
	Model           string  `yaml:"model,omitempty"`
	Temperature     float64 `yaml:"temperature,omitempty"`
	MaxTokens       int     `yaml:"max_tokens,omitempty"`
	ReasoningEffort string  `yaml:"reasoning_effort,omitempty"`
	GRPCAddr        string  `yaml:"grpc_addr,omitempty"`
}

type ServicesFileConfig struct {
	SessionBackend    string `yaml:"session_backend,omitempty"`
	MemoryBackend     string `yaml:"memory_backend,omitempty"`
	CredentialBackend string `yaml:"credential_backend,omitempty"`
	ArtifactBackend   string `yaml:"artifact_backend,omitempty"`
	TempCacheBackend  string `yaml:"temp_cache_backend,omitempty"`
	RedisAddr         string `yaml:"redis_addr,omitempty"`
	S3Bucket          string `yaml:"s3_bucket,omitempty"`
	S3Region          string `yaml:"s3_region,omitempty"`
}

type LoggingFileConfig struct {
	Level  string   `yaml:"level,omitempty"`
	Sinks  []string `yaml:"sinks,omitempty"`
	Format string   `yaml:"format,omitempty"`
	File   string   `yaml:"file,omitempty"`
}

type TracingFileConfig struct {
	ServiceName   string `yaml:"service_name,omitempty"`
	OTLPEndpoint  string `yaml:"otlp_endpoint,omitempty"`
	BatchSize     int    `yaml:"batch_size,omitempty"`
	FlushInterval string `yaml:"flush_interval,omitempty"`
	NATSURL       string `yaml:"nats_url,omitempty"`
}

// ApplyFile overlays the YAML file at path onto cfg: non-zero file fields
// win over env-derived values, everything else is untouched. A missing file
// is not an error (the overlay is optional).
func ApplyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Database != nil {
		overlay := DatabaseConfig{
			URL:         fc.Database.URL,
			PoolSize:    fc.Database.PoolSize,
			MaxOverflow: fc.Database.MaxOverflow,
		}
		if fc.Database.ConnMaxLifetime != "" {
			d, err := time.ParseDuration(fc.Database.ConnMaxLifetime)
			if err != nil {
				return fmt.Errorf("parse database.conn_max_lifetime: %w", err)
			}
			overlay.ConnMaxLifetime = d
		}
		if err := mergo.Merge(&cfg.Database, overlay, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge database config: %w", err)
		}
	}
	if fc.LLM != nil {
		overlay := LLMConfig{
			Provider: fc.LLM.Provider, Model: fc.LLM.Model,
			Temperature: fc.LLM.Temperature, MaxTokens: fc.LLM.MaxTokens,
			ReasoningEffort: fc.LLM.ReasoningEffort, GRPCAddr: fc.LLM.GRPCAddr,
		}
		if err := mergo.Merge(&cfg.LLM, overlay, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge llm config: %w", err)
		}
	}
	if fc.Services != nil {
		overlay := ServicesConfig{
			SessionBackend:    Backend(fc.Services.SessionBackend),
			MemoryBackend:     Backend(fc.Services.MemoryBackend),
			CredentialBackend: Backend(fc.Services.CredentialBackend),
			ArtifactBackend:   Backend(fc.Services.ArtifactBackend),
			TempCacheBackend:  Backend(fc.Services.TempCacheBackend),
			RedisAddr:         fc.Services.RedisAddr,
			S3Bucket:          fc.Services.S3Bucket,
			S3Region:          fc.Services.S3Region,
		}
		if err := mergo.Merge(&cfg.Services, overlay, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge services config: %w", err)
		}
	}
	if fc.Logging != nil {
		overlay := LoggingConfig{
			Level: fc.Logging.Level, Sinks: fc.Logging.Sinks,
			Format: LogFormat(fc.Logging.Format), File: fc.Logging.File,
		}
		if err := mergo.Merge(&cfg.Logging, overlay, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge logging config: %w", err)
		}
	}
	if fc.Tracing != nil {
		overlay := TracingConfig{
			ServiceName:  fc.Tracing.ServiceName,
			OTLPEndpoint: fc.Tracing.OTLPEndpoint,
			BatchSize:    fc.Tracing.BatchSize,
			NATSURL:      fc.Tracing.NATSURL,
		}
		if fc.Tracing.FlushInterval != "" {
			d, err := time.ParseDuration(fc.Tracing.FlushInterval)
			if err != nil {
				return fmt.Errorf("parse tracing.flush_interval: %w", err)
			}
			overlay.FlushInterval = d
		}
		if err := mergo.Merge(&cfg.Tracing, overlay, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge tracing config: %w", err)
		}
	}
	return nil
}
