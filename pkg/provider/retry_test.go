package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/apperrors"
)

func fastRetryConfig(kind string, maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, Base: time.Millisecond, Timeout: time.Second, Kind: kind}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig("embedding-failed", 3), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustionSurfacesInfrastructureError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig("embedding-failed", 2), func(context.Context) error {
		attempts++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
	assert.Equal(t, "EMBEDDING_FAILED", apperrors.Code(err))
}

func TestRetry_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Retry(ctx, fastRetryConfig("embedding-failed", 5), func(context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

type countingEmbedder struct {
	failures int
	calls    int
	dim      int
}

func (e *countingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, errors.New("unavailable")
	}
	return make([]float32, e.dim), nil
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, errors.New("unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

func TestRetryingEmbedder_RecoversAfterTransientFailures(t *testing.T) {
	inner := &countingEmbedder{failures: 2, dim: 4}
	cfg := fastRetryConfig("embedding-failed", 3)
	emb := NewRetryingEmbedder(inner, &cfg)

	vec, err := emb.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingEmbedder_BatchNeverReturnsPartial(t *testing.T) {
	cfg := fastRetryConfig("embedding-failed", 0)
	emb := NewRetryingEmbedder(&partialBatchEmbedder{}, &cfg)

	_, err := emb.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Equal(t, "EMBEDDING_FAILED", apperrors.Code(err))
}

type partialBatchEmbedder struct{}

func (partialBatchEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0}, nil
}

func (partialBatchEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return [][]float32{{0}}, nil
}
