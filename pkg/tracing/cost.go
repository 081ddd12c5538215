package tracing

import (
	"strings"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
)

// CostFunc estimates the USD cost of one LLM call. ok=false means the model
// is unknown and no cost attribute should be written. Kept pluggable so the
// price table's maintenance lives outside the engine core.
type CostFunc func(model string, promptTokens, completionTokens int) (usd float64, ok bool)

// ModelPrice is a per-million-token USD price pair.
type ModelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// TableCost builds a CostFunc over a local price table keyed by normalized
// model name.
func TableCost(table map[string]ModelPrice) CostFunc {
	return func(model string, promptTokens, completionTokens int) (float64, bool) {
		price, ok := table[NormalizeModel(model)]
		if !ok {
			return 0, false
		}
		cost := float64(promptTokens)/1e6*price.InputPerMTok +
			float64(completionTokens)/1e6*price.OutputPerMTok
		return cost, true
	}
}

// NormalizeModel lowercases the model name and strips a provider prefix
// ("openai/gpt-4o" -> "gpt-4o") so table lookups and the
// gen_ai.request.model attribute agree regardless of how the caller spelled
// the model.
func NormalizeModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndexByte(m, '/'); i >= 0 {
		m = m[i+1:]
	}
	return m
}

// LLMCallMeta carries everything known about one finished LLM call for cost
// attribution. ResponseCost is an explicit cost reported in the response;
// ProviderCost is a provider-computed breakdown total. Priority on the span:
// ResponseCost, then ProviderCost, then the local table.
type LLMCallMeta struct {
	Model        string
	Usage        provider.Usage
	ResponseCost *float64
	ProviderCost *float64
}

// AnnotateLLMSpan decorates an LLM-call span with the attributes:
// normalized model name, USD cost when derivable, and the langfuse
// cost-details object.
func AnnotateLLMSpan(span *ActiveSpan, meta LLMCallMeta, costOf CostFunc) {
	if span == nil {
		return
	}
	span.SetAttribute(models.AttrRequestModel, NormalizeModel(meta.Model))
	span.SetAttribute("gen_ai.usage.prompt_tokens", meta.Usage.PromptTokens)
	span.SetAttribute("gen_ai.usage.completion_tokens", meta.Usage.CompletionTokens)

	cost, ok := resolveCost(meta, costOf)
	if !ok {
		return
	}
	span.SetAttribute(models.AttrUsageCost, cost)
	span.SetAttribute(models.AttrLangfuseCostDtl, models.JSONMap{"total": cost})
}

func resolveCost(meta LLMCallMeta, costOf CostFunc) (float64, bool) {
	switch {
	case meta.ResponseCost != nil:
		return *meta.ResponseCost, true
	case meta.ProviderCost != nil:
		return *meta.ProviderCost, true
	case costOf != nil:
		return costOf(meta.Model, meta.Usage.PromptTokens, meta.Usage.CompletionTokens)
	default:
		return 0, false
	}
}
