package config

// LogFormat selects the slog handler rendering.
type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// LoggingConfig groups logging level/sinks/format.
type LoggingConfig struct {
	Level  string
	Sinks  []string // comma list: stdio, file, cloud
	Format LogFormat
	File   string
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("NE_LOG_LEVEL", "info"),
		Sinks:  getEnvList("NE_LOG_SINKS", []string{"stdio"}),
		Format: LogFormat(getEnv("NE_LOG_FORMAT", string(LogFormatConsole))),
		File:   getEnv("NE_LOG_FILE", ""),
	}
}
