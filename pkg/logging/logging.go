// Package logging builds the process-wide slog.Logger from the logging
// config group, fanning out to the configured sinks.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/negentropy-ai/engine/pkg/config"
)

// Build constructs a slog.Logger for the given LoggingConfig. Multiple sinks
// fan out through a slog.Handler that writes to each in turn; a single sink
// writes directly. "cloud" is backed by the zap adapter in zapslog.go.
func Build(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var handlers []slog.Handler
	for _, sink := range cfg.Sinks {
		switch sink {
		case "stdio":
			handlers = append(handlers, newHandler(os.Stdout, cfg.Format, level))
		case "file":
			if cfg.File == "" {
				return nil, fmt.Errorf("logging sink %q requires NE_LOG_FILE", sink)
			}
			f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %q: %w", cfg.File, err)
			}
			handlers = append(handlers, newHandler(f, cfg.Format, level))
		case "cloud":
			h, err := newZapHandler(level)
			if err != nil {
				return nil, fmt.Errorf("build cloud log sink: %w", err)
			}
			handlers = append(handlers, h)
		default:
			return nil, fmt.Errorf("unknown logging sink %q", sink)
		}
	}
	if len(handlers) == 0 {
		handlers = append(handlers, newHandler(os.Stdout, cfg.Format, level))
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = &fanoutHandler{handlers: handlers}
	}
	return slog.New(h), nil
}

func newHandler(w io.Writer, format config.LogFormat, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
