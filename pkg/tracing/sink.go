package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/storage"
)

// DBSink writes span batches into the trace_spans table through the DAL's
// batched insert path.
type DBSink struct {
	pool  *storage.Pool
	store *storage.SpanStore
}

func NewDBSink(pool *storage.Pool) *DBSink {
	return &DBSink{pool: pool, store: storage.NewSpanStore()}
}

func (s *DBSink) Name() string { return "database" }

func (s *DBSink) Export(ctx context.Context, spans []*models.Span) error {
	return s.store.InsertBatch(ctx, s.pool.Pool, spans)
}

// ConsoleSink logs one line per span, used in development
// (NE_TRACING_CONSOLE_EXPORT=true).
type ConsoleSink struct {
	log *slog.Logger
}

func NewConsoleSink(log *slog.Logger) *ConsoleSink { return &ConsoleSink{log: log} }

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Export(_ context.Context, spans []*models.Span) error {
	for _, sp := range spans {
		args := []any{"trace_id", sp.TraceID, "span_id", sp.SpanID, "operation", sp.OperationName, "status", sp.StatusCode}
		if sp.DurationNs != nil {
			args = append(args, "duration", time.Duration(*sp.DurationNs))
		}
		s.log.Info("span", args...)
	}
	return nil
}

// OTLPSink posts finished spans to an OTLP-compatible collector endpoint.
// The telemetry wire format is an external collaborator's concern; this
// sink only honors the span-attribute contract and ships the spans as JSON.
type OTLPSink struct {
	endpoint    string
	serviceName string
	client      *http.Client
}

func NewOTLPSink(endpoint, serviceName string) *OTLPSink {
	return &OTLPSink{
		endpoint:    endpoint,
		serviceName: serviceName,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *OTLPSink) Name() string { return "otlp" }

func (s *OTLPSink) Export(ctx context.Context, spans []*models.Span) error {
	body, err := json.Marshal(map[string]any{
		"service": s.serviceName,
		"spans":   spans,
	})
	if err != nil {
		return fmt.Errorf("marshal span batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build otlp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post span batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("otlp collector returned status %d", resp.StatusCode)
	}
	return nil
}
