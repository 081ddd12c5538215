package config

// Backend selects the storage implementation a service factory constructs.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendDatabase Backend = "database"
	BackendCloud    Backend = "cloud"
)

// ServicesConfig selects the backend for each pluggable service.
type ServicesConfig struct {
	SessionBackend    Backend
	MemoryBackend     Backend
	CredentialBackend Backend
	ArtifactBackend   Backend
	// TempCacheBackend selects the temp: state cache implementation:
	// "memory" (process-local map) or "redis" (cross-pod).
	TempCacheBackend Backend
	RedisAddr        string
	S3Bucket         string
	S3Region         string
}

func loadServicesConfig() ServicesConfig {
	return ServicesConfig{
		SessionBackend:    Backend(getEnv("NE_SESSION_BACKEND", string(BackendDatabase))),
		MemoryBackend:     Backend(getEnv("NE_MEMORY_BACKEND", string(BackendDatabase))),
		CredentialBackend: Backend(getEnv("NE_CREDENTIAL_BACKEND", string(BackendDatabase))),
		ArtifactBackend:   Backend(getEnv("NE_ARTIFACT_BACKEND", string(BackendMemory))),
		TempCacheBackend:  Backend(getEnv("NE_SESSION_TEMP_CACHE", string(BackendMemory))),
		RedisAddr:         getEnv("NE_REDIS_ADDR", "localhost:6379"),
		S3Bucket:          getEnv("NE_S3_BUCKET", ""),
		S3Region:          getEnv("NE_S3_REGION", "us-east-1"),
	}
}
