package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// SpanStore is the hand-written SQL DAL for persisted trace spans. Writes go
// through one pgx.Batch so the bounded exporter queue can flush hundreds of
// spans in one round trip.
type SpanStore struct{}

func NewSpanStore() *SpanStore { return &SpanStore{} }

// InsertBatch writes all spans in one batched request. The batch runs in one
// implicit transaction, so a failing span discards the whole batch; the
// error is returned for the exporter to log, and the next batch is unaffected.
func (s *SpanStore) InsertBatch(ctx context.Context, pool *pgxpool.Pool, spans []*models.Span) error {
	if len(spans) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sp := range spans {
		attrs, err := json.Marshal(sp.Attributes)
		if err != nil {
			return apperrors.NewDatabaseError("encode span attributes", err)
		}
		events, err := json.Marshal(sp.Events)
		if err != nil {
			return apperrors.NewDatabaseError("encode span events", err)
		}
		batch.Queue(`
			INSERT INTO trace_spans (trace_id, span_id, parent_span_id, operation_name, span_kind,
				attributes, events, start_time, end_time, duration_ns, status_code, status_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (trace_id, span_id) DO UPDATE SET
				attributes=$6, events=$7, end_time=$9, duration_ns=$10, status_code=$11, status_message=$12
		`, sp.TraceID, sp.SpanID, sp.ParentSpanID, sp.OperationName, sp.SpanKind,
			attrs, events, sp.StartTime, sp.EndTime, sp.DurationNs, sp.StatusCode, sp.StatusMessage)
	}
	br := pool.SendBatch(ctx, batch)
	defer br.Close()
	for range spans {
		if _, err := br.Exec(); err != nil {
			return apperrors.NewDatabaseError("batch insert spans", err)
		}
	}
	return nil
}

const spanColumns = "trace_id, span_id, parent_span_id, operation_name, span_kind, attributes, events, start_time, end_time, duration_ns, status_code, status_message"

func scanSpan(rows pgx.Rows) (*models.Span, error) {
	var sp models.Span
	var attrs, events []byte
	if err := rows.Scan(&sp.TraceID, &sp.SpanID, &sp.ParentSpanID, &sp.OperationName, &sp.SpanKind,
		&attrs, &events, &sp.StartTime, &sp.EndTime, &sp.DurationNs, &sp.StatusCode, &sp.StatusMessage); err != nil {
		return nil, apperrors.NewDatabaseError("scan span", err)
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &sp.Attributes); err != nil {
			return nil, apperrors.NewDatabaseError("decode span attributes", err)
		}
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &sp.Events); err != nil {
			return nil, apperrors.NewDatabaseError("decode span events", err)
		}
	}
	return &sp, nil
}

// ListByTrace returns every span recorded for traceID, start-time order.
func (s *SpanStore) ListByTrace(ctx context.Context, db DBTX, traceID string) ([]*models.Span, error) {
	rows, err := db.Query(ctx, `SELECT `+spanColumns+` FROM trace_spans WHERE trace_id=$1 ORDER BY start_time ASC`, traceID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list spans", err)
	}
	defer rows.Close()
	var out []*models.Span
	for rows.Next() {
		sp, err := scanSpan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}
