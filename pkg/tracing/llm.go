package tracing

import (
	"context"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
)

// TracedLLM wraps an LLMProvider so every chat call runs inside a client
// span carrying the model, token usage, and derived cost attributes. The
// wrapped stream is passed through unchanged; annotation happens when the
// final usage chunk arrives.
type TracedLLM struct {
	inner  provider.LLMProvider
	tracer *Tracer
	costOf CostFunc
}

func NewTracedLLM(inner provider.LLMProvider, tracer *Tracer, costOf CostFunc) *TracedLLM {
	return &TracedLLM{inner: inner, tracer: tracer, costOf: costOf}
}

func (t *TracedLLM) StreamChat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatChunk, error) {
	spanCtx, span := t.tracer.Start(ctx, "llm.chat", models.SpanKindClient)

	inner, err := t.inner.StreamChat(spanCtx, req)
	if err != nil {
		AnnotateLLMSpan(span, LLMCallMeta{Model: req.Model}, t.costOf)
		span.End(err)
		return nil, err
	}

	out := make(chan provider.ChatChunk)
	go func() {
		defer close(out)
		meta := LLMCallMeta{Model: req.Model}
		var streamErr error
		for chunk := range inner {
			if chunk.Err != nil {
				streamErr = chunk.Err
			}
			if chunk.Usage != nil {
				meta.Usage = *chunk.Usage
			}
			out <- chunk
		}
		AnnotateLLMSpan(span, meta, t.costOf)
		span.End(streamErr)
	}()
	return out, nil
}

func (t *TracedLLM) Close() error { return t.inner.Close() }
