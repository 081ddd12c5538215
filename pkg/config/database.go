package config

import "time"

// DatabaseConfig groups database connection and pool settings.
type DatabaseConfig struct {
	URL             string
	PoolSize        int
	MaxOverflow     int
	ConnMaxLifetime time.Duration
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("NE_DATABASE_URL", "postgres://localhost:5432/negentropy?sslmode=disable"),
		PoolSize:        getEnvInt("NE_DATABASE_POOL_SIZE", 5),
		MaxOverflow:     getEnvInt("NE_DATABASE_MAX_OVERFLOW", 10),
		ConnMaxLifetime: getEnvDuration("NE_DATABASE_CONN_MAX_LIFETIME", time.Hour),
	}
}
