package config

import "time"

// TracingConfig groups span-export settings.
type TracingConfig struct {
	ServiceName     string
	OTLPEndpoint    string
	EnableDBExport  bool
	EnableConsole   bool
	BatchSize       int
	FlushInterval   time.Duration
	QueueCapacity   int
	NATSURL         string // optional inter-pod span transport over NATS
}

func loadTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    getEnv("NE_TRACING_SERVICE_NAME", "negentropy-engine"),
		OTLPEndpoint:   getEnv("NE_TRACING_OTLP_ENDPOINT", ""),
		EnableDBExport: getEnvBool("NE_TRACING_DB_EXPORT", true),
		EnableConsole:  getEnvBool("NE_TRACING_CONSOLE_EXPORT", false),
		BatchSize:      getEnvInt("NE_TRACING_BATCH_SIZE", 512),
		FlushInterval:  getEnvDuration("NE_TRACING_FLUSH_INTERVAL", 5*time.Second),
		QueueCapacity:  getEnvInt("NE_TRACING_QUEUE_CAPACITY", 4096),
		NATSURL:        getEnv("NE_TRACING_NATS_URL", ""),
	}
}
