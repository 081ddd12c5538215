package provider

import (
	"context"
	"errors"
	"time"

	"github.com/negentropy-ai/engine/pkg/apperrors"
)

// RetryConfig bounds an outbound provider call: each attempt runs under
// Timeout, failures back off exponentially (Base * 2^attempt), and after
// MaxRetries additional attempts the last error surfaces as an
// infrastructure error.
type RetryConfig struct {
	MaxRetries int
	Base       time.Duration
	Timeout    time.Duration
	// Kind names the failing concern in the surfaced error, e.g.
	// "embedding-failed", "content-fetch-failed".
	Kind string
}

// DefaultRetryConfig returns the defaults: 3 retries, 1s base backoff.
// Timeout is left to the caller (10s embedding/rerank, 30s LLM).
func DefaultRetryConfig(kind string, timeout time.Duration) RetryConfig {
	return RetryConfig{MaxRetries: 3, Base: time.Second, Timeout: timeout, Kind: kind}
}

// Retry runs fn under cfg. Context cancellation propagates immediately and is
// never wrapped: a caller-initiated cancel is not a provider failure.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	base := cfg.Base
	if base <= 0 {
		base = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := base * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}

	kind := cfg.Kind
	if kind == "" {
		kind = "infrastructure-error"
	}
	return apperrors.NewInfrastructureError(kind, lastErr)
}

// RetryingEmbedder wraps an EmbeddingProvider with the retry policy.
type RetryingEmbedder struct {
	inner EmbeddingProvider
	cfg   RetryConfig
}

// NewRetryingEmbedder wraps inner with the default embedding policy
// (10s per-attempt timeout) unless cfg overrides it.
func NewRetryingEmbedder(inner EmbeddingProvider, cfg *RetryConfig) *RetryingEmbedder {
	c := DefaultRetryConfig("embedding-failed", 10*time.Second)
	if cfg != nil {
		c = *cfg
	}
	return &RetryingEmbedder{inner: inner, cfg: c}
}

func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := Retry(ctx, r.cfg, func(ctx context.Context) error {
		vec, err := r.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = vec
		return nil
	})
	return out, err
}

func (r *RetryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := Retry(ctx, r.cfg, func(ctx context.Context) error {
		vecs, err := r.inner.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vecs) != len(texts) {
			return errors.New("embedding batch returned partial result")
		}
		out = vecs
		return nil
	})
	return out, err
}

// RetryingReranker wraps a RerankProvider with the retry policy.
type RetryingReranker struct {
	inner RerankProvider
	cfg   RetryConfig
}

func NewRetryingReranker(inner RerankProvider, cfg *RetryConfig) *RetryingReranker {
	c := DefaultRetryConfig("search-error", 10*time.Second)
	if cfg != nil {
		c = *cfg
	}
	return &RetryingReranker{inner: inner, cfg: c}
}

func (r *RetryingReranker) Rerank(ctx context.Context, query string, documents []RerankCandidate, topN int, model string) ([]RerankResult, error) {
	var out []RerankResult
	err := Retry(ctx, r.cfg, func(ctx context.Context) error {
		res, err := r.inner.Rerank(ctx, query, documents, topN, model)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}
