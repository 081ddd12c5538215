package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
)

type chunkedLLM struct {
	chunks []provider.ChatChunk
}

func (l *chunkedLLM) StreamChat(context.Context, provider.ChatRequest) (<-chan provider.ChatChunk, error) {
	out := make(chan provider.ChatChunk, len(l.chunks))
	for _, c := range l.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (l *chunkedLLM) Close() error { return nil }

func TestTracedLLM_AnnotatesSpanWithUsageAndCost(t *testing.T) {
	sink := &captureSink{}
	e := NewExporter(ExporterOptions{BatchSize: 1, FlushInterval: time.Hour, QueueCapacity: 4}, []Sink{sink}, nil)
	e.Start()
	defer e.Stop()

	llm := NewTracedLLM(&chunkedLLM{chunks: []provider.ChatChunk{
		{Content: "hel"},
		{Content: "lo", Usage: &provider.Usage{PromptTokens: 1_000_000, CompletionTokens: 0}, Done: true},
	}}, NewTracer(e), TableCost(testPrices))

	stream, err := llm.StreamChat(context.Background(), provider.ChatRequest{Model: "gpt-4o"})
	require.NoError(t, err)

	var text string
	for chunk := range stream {
		text += chunk.Content
	}
	assert.Equal(t, "hello", text)

	require.Eventually(t, func() bool { return sink.total() == 1 }, 2*time.Second, 5*time.Millisecond)
	span := sink.batches[0][0]
	assert.Equal(t, "llm.chat", span.OperationName)
	assert.Equal(t, models.SpanStatusOK, span.StatusCode)
	assert.Equal(t, "gpt-4o", span.Attributes[models.AttrRequestModel])
	assert.InDelta(t, 2.50, span.Attributes[models.AttrUsageCost].(float64), 1e-9)
}
