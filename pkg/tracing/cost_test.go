package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
)

var testPrices = map[string]ModelPrice{
	"gpt-4o": {InputPerMTok: 2.50, OutputPerMTok: 10.00},
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "gpt-4o", NormalizeModel("openai/GPT-4o"))
	assert.Equal(t, "gpt-4o", NormalizeModel("  gpt-4o "))
	assert.Equal(t, "claude-sonnet", NormalizeModel("anthropic/claude-sonnet"))
}

func TestTableCost(t *testing.T) {
	costOf := TableCost(testPrices)

	usd, ok := costOf("openai/gpt-4o", 1_000_000, 1_000_000)
	require.True(t, ok)
	assert.InDelta(t, 12.50, usd, 1e-9)

	_, ok = costOf("unknown-model", 100, 100)
	assert.False(t, ok)
}

func newTestSpan() *ActiveSpan {
	tr := NewTracer(nil)
	_, sp := tr.Start(context.Background(), "llm.call", models.SpanKindClient)
	return sp
}

func TestAnnotateLLMSpan_ExplicitResponseCostWins(t *testing.T) {
	sp := newTestSpan()
	explicit := 0.42
	providerCost := 0.10
	AnnotateLLMSpan(sp, LLMCallMeta{
		Model:        "openai/gpt-4o",
		Usage:        provider.Usage{PromptTokens: 10, CompletionTokens: 5},
		ResponseCost: &explicit,
		ProviderCost: &providerCost,
	}, TableCost(testPrices))

	assert.Equal(t, "gpt-4o", sp.span.Attributes[models.AttrRequestModel])
	assert.Equal(t, 0.42, sp.span.Attributes[models.AttrUsageCost])
	assert.Equal(t, models.JSONMap{"total": 0.42}, sp.span.Attributes[models.AttrLangfuseCostDtl])
}

func TestAnnotateLLMSpan_FallsBackToProviderThenTable(t *testing.T) {
	sp := newTestSpan()
	providerCost := 0.10
	AnnotateLLMSpan(sp, LLMCallMeta{
		Model:        "gpt-4o",
		ProviderCost: &providerCost,
	}, TableCost(testPrices))
	assert.Equal(t, 0.10, sp.span.Attributes[models.AttrUsageCost])

	sp2 := newTestSpan()
	AnnotateLLMSpan(sp2, LLMCallMeta{
		Model: "gpt-4o",
		Usage: provider.Usage{PromptTokens: 1_000_000},
	}, TableCost(testPrices))
	assert.InDelta(t, 2.50, sp2.span.Attributes[models.AttrUsageCost].(float64), 1e-9)
}

func TestAnnotateLLMSpan_UnknownModelOmitsCost(t *testing.T) {
	sp := newTestSpan()
	AnnotateLLMSpan(sp, LLMCallMeta{Model: "mystery"}, TableCost(testPrices))

	_, hasCost := sp.span.Attributes[models.AttrUsageCost]
	assert.False(t, hasCost)
	assert.Equal(t, "mystery", sp.span.Attributes[models.AttrRequestModel])
}
