// Package provider defines the external-collaborator contracts the engine
// calls out to: an LLM chat-completion service, an embedding service, and a
// rerank service. The engine core never imports a
// concrete provider; it depends on these interfaces, and cmd/negentropy
// passes the chosen implementation to the Service Factories in pkg/services.
package provider

import "context"

// ChatRole mirrors a conversation turn's speaker.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
	RoleTool      ChatRole = "tool"
)

// ChatMessage is one turn of conversation history sent to the LLM provider.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// Usage exposes the token counts needed for cost attribution.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatChunk is one piece of a streaming chat completion. Exactly one of
// Content or Err is meaningful; Usage and Done are only set on the final
// chunk.
type ChatChunk struct {
	Content string
	Usage   *Usage
	Done    bool
	Err     error
}

// ChatRequest is the input to LLMProvider.StreamChat.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// LLMProvider is the streaming chat-completion contract: sequential
// content chunks, with a final usage object for cost attribution.
type LLMProvider interface {
	StreamChat(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error)
	Close() error
}

// EmbeddingProvider is the embedding contract: embed(text) -> vector,
// plus a batch variant. Implementations must not return partial results —
// a batch call either returns len(texts) vectors or an error.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// RerankCandidate is one document passed to RerankProvider.Rerank.
type RerankCandidate struct {
	Index int
	Text  string
}

// RerankResult is one scored candidate returned by RerankProvider.Rerank,
// referencing the candidate's original Index.
type RerankResult struct {
	Index          int
	RelevanceScore float64
}

// RerankProvider is the rerank contract:
// rerank(query, documents, top_n, model) -> list<{index, relevance_score}>.
type RerankProvider interface {
	Rerank(ctx context.Context, query string, documents []RerankCandidate, topN int, model string) ([]RerankResult, error)
}
