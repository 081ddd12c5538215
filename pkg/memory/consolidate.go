package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
)

// Consolidator implements the 7-step consolidation algorithm: turn a
// session's event history into a single episodic Memory.
type Consolidator struct {
	memories *Memories
	embedder provider.EmbeddingProvider
	log      *slog.Logger
}

func NewConsolidator(memories *Memories, embedder provider.EmbeddingProvider, log *slog.Logger) *Consolidator {
	return &Consolidator{memories: memories, embedder: embedder, log: log}
}

// Consolidate runs the algorithm against events (already in sequence order,
// per step 1). Returns nil, nil when there is nothing to consolidate (step 5).
func (c *Consolidator) Consolidate(ctx context.Context, appName, userID string, events []*models.Event) (*models.Memory, error) {
	var lines []string
	for _, e := range events {
		if e.Author != models.AuthorUser && e.Author != models.AuthorAgent {
			continue
		}
		lines = append(lines, e.Content.TextParts()...)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	combined := strings.Join(lines, "\n")

	var embedding []float32
	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, combined)
		if err != nil {
			c.log.Warn("consolidation embedding failed", "app_name", appName, "user_id", userID, "error", err)
		} else {
			embedding = vec
		}
	}

	var threadID *string
	if events[0].ThreadID != "" {
		id := events[0].ThreadID
		threadID = &id
	}

	return c.memories.CreateMemory(ctx, models.CreateMemoryRequest{
		ThreadID: threadID, UserID: userID, AppName: appName,
		MemoryType: "episodic", Content: combined, Embedding: embedding,
		Metadata: models.JSONMap{"source": "session", "event_count": len(events)},
	})
}
