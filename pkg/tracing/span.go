package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/negentropy-ai/engine/pkg/models"
)

func newTraceID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func newSpanID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

type activeSpanKey struct{}

// ActiveSpan is a span under construction. End enqueues it for export; all
// mutation must happen before End.
type ActiveSpan struct {
	span   *models.Span
	tracer *Tracer
	ended  bool
}

// Tracer creates spans and hands finished ones to the exporter. A nil
// exporter turns every span into a no-op, so instrumented code needs no
// "is tracing on" branches.
type Tracer struct {
	exporter *Exporter
}

func NewTracer(exporter *Exporter) *Tracer {
	return &Tracer{exporter: exporter}
}

// Start opens a span as a child of the active span in ctx (same trace id), or
// as a new root. The RequestContext's session.id and user.id are stamped on
// at creation.
func (t *Tracer) Start(ctx context.Context, operation string, kind models.SpanKind) (context.Context, *ActiveSpan) {
	sp := &models.Span{
		TraceID:       newTraceID(),
		SpanID:        newSpanID(),
		OperationName: operation,
		SpanKind:      kind,
		Attributes:    models.JSONMap{},
		StartTime:     time.Now(),
		StatusCode:    models.SpanStatusUnset,
	}
	if parent, ok := ctx.Value(activeSpanKey{}).(*ActiveSpan); ok && parent != nil {
		sp.TraceID = parent.span.TraceID
		parentID := parent.span.SpanID
		sp.ParentSpanID = &parentID
	}
	if rc, ok := RequestContextFrom(ctx); ok {
		if rc.SessionID != "" {
			sp.Attributes[models.AttrSessionID] = rc.SessionID
		}
		if rc.UserID != "" {
			sp.Attributes[models.AttrUserID] = rc.UserID
		}
	}

	as := &ActiveSpan{span: sp, tracer: t}
	return context.WithValue(ctx, activeSpanKey{}, as), as
}

// SetAttribute sets one span attribute.
func (s *ActiveSpan) SetAttribute(key string, value any) {
	if s == nil || s.ended {
		return
	}
	s.span.Attributes[key] = value
}

// AddEvent appends a timestamped event to the span.
func (s *ActiveSpan) AddEvent(name string, attrs models.JSONMap) {
	if s == nil || s.ended {
		return
	}
	s.span.Events = append(s.span.Events, models.SpanEvent{Name: name, Time: time.Now(), Attributes: attrs})
}

// TraceID exposes the span's trace id for request logging.
func (s *ActiveSpan) TraceID() string {
	if s == nil {
		return ""
	}
	return s.span.TraceID
}

// End closes the span with ok/error status and enqueues it for export.
// Idempotent: a second End is a no-op.
func (s *ActiveSpan) End(err error) {
	if s == nil || s.ended {
		return
	}
	s.ended = true

	now := time.Now()
	s.span.EndTime = &now
	d := now.Sub(s.span.StartTime).Nanoseconds()
	s.span.DurationNs = &d
	if err != nil {
		s.span.StatusCode = models.SpanStatusError
		msg := err.Error()
		s.span.StatusMessage = &msg
	} else {
		s.span.StatusCode = models.SpanStatusOK
	}

	if s.tracer != nil && s.tracer.exporter != nil {
		s.tracer.exporter.Enqueue(s.span)
	}
}
