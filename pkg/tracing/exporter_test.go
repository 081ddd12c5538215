package tracing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]*models.Span
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Export(_ context.Context, spans []*models.Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]*models.Span, len(spans))
	copy(batch, spans)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *captureSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func span(op string) *models.Span {
	return &models.Span{
		TraceID: newTraceID(), SpanID: newSpanID(), OperationName: op,
		SpanKind: models.SpanKindInternal, StartTime: time.Now(), StatusCode: models.SpanStatusOK,
	}
}

func TestExporter_FlushesOnBatchSize(t *testing.T) {
	sink := &captureSink{}
	e := NewExporter(ExporterOptions{BatchSize: 3, FlushInterval: time.Hour, QueueCapacity: 16}, []Sink{sink}, nil)
	e.Start()
	defer e.Stop()

	for i := 0; i < 3; i++ {
		e.Enqueue(span(fmt.Sprintf("op-%d", i)))
	}
	require.Eventually(t, func() bool { return sink.total() == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestExporter_StopFlushesRemainder(t *testing.T) {
	sink := &captureSink{}
	e := NewExporter(ExporterOptions{BatchSize: 100, FlushInterval: time.Hour, QueueCapacity: 16}, []Sink{sink}, nil)
	e.Start()

	e.Enqueue(span("a"))
	e.Enqueue(span("b"))
	e.Stop()

	assert.Equal(t, 2, sink.total())
}

func TestExporter_DropsOldestOnOverflow(t *testing.T) {
	sink := &captureSink{}
	e := NewExporter(ExporterOptions{BatchSize: 100, FlushInterval: time.Hour, QueueCapacity: 2}, []Sink{sink}, nil)

	e.Enqueue(span("first"))
	e.Enqueue(span("second"))
	e.Enqueue(span("third")) // overflows: "first" is dropped

	assert.Equal(t, int64(1), e.Dropped())

	e.Start()
	e.Stop()
	require.Equal(t, 2, sink.total())
	ops := []string{sink.batches[0][0].OperationName, sink.batches[0][1].OperationName}
	assert.Equal(t, []string{"second", "third"}, ops)
}

func TestTracer_ChildSpanSharesTraceID(t *testing.T) {
	tr := NewTracer(nil)
	ctx, parent := tr.Start(context.Background(), "parent", models.SpanKindServer)
	_, child := tr.Start(ctx, "child", models.SpanKindInternal)

	assert.Equal(t, parent.span.TraceID, child.span.TraceID)
	require.NotNil(t, child.span.ParentSpanID)
	assert.Equal(t, parent.span.SpanID, *child.span.ParentSpanID)
}

func TestTracer_InjectsRequestContextIdentity(t *testing.T) {
	tr := NewTracer(nil)
	ctx := WithRequestContext(context.Background(), RequestContext{SessionID: "s1", UserID: "u1"})
	_, sp := tr.Start(ctx, "op", models.SpanKindInternal)

	assert.Equal(t, "s1", sp.span.Attributes[models.AttrSessionID])
	assert.Equal(t, "u1", sp.span.Attributes[models.AttrUserID])
}

func TestActiveSpan_EndRecordsStatusAndDuration(t *testing.T) {
	sink := &captureSink{}
	e := NewExporter(ExporterOptions{BatchSize: 1, FlushInterval: time.Hour, QueueCapacity: 4}, []Sink{sink}, nil)
	e.Start()
	defer e.Stop()
	tr := NewTracer(e)

	_, sp := tr.Start(context.Background(), "op", models.SpanKindClient)
	sp.End(assert.AnError)
	sp.End(nil) // second End is a no-op

	require.Eventually(t, func() bool { return sink.total() == 1 }, 2*time.Second, 5*time.Millisecond)
	got := sink.batches[0][0]
	assert.Equal(t, models.SpanStatusError, got.StatusCode)
	require.NotNil(t, got.DurationNs)
	assert.GreaterOrEqual(t, *got.DurationNs, int64(0))
}
