package memory

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
	testdb "github.com/negentropy-ai/engine/test/database"
)

func textEvent(author models.Author, text string) *models.Event {
	return &models.Event{
		ID: newID(), Author: author, EventType: "message",
		Content: models.NewTextContent(text),
	}
}

func TestConsolidate_JoinsUserAndAgentTurns(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	c := NewConsolidator(mems, nil, slog.Default())

	events := []*models.Event{
		textEvent(models.AuthorUser, "what's the weather"),
		textEvent(models.AuthorTool, "tool-call-noise"),
		textEvent(models.AuthorAgent, "it's sunny"),
	}

	mem, err := c.Consolidate(context.Background(), "app1", "u1", events)
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.Equal(t, "what's the weather\nit's sunny", mem.Content, "tool events are excluded from consolidated text")
	assert.Equal(t, "episodic", mem.MemoryType)
	assert.Equal(t, 3, mem.Metadata["event_count"])
}

func TestConsolidate_EmptyEventsReturnsNil(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	c := NewConsolidator(mems, nil, slog.Default())

	mem, err := c.Consolidate(context.Background(), "app1", "u1", nil)
	require.NoError(t, err)
	assert.Nil(t, mem)
}

func TestConsolidate_OnlyToolEventsReturnsNil(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	c := NewConsolidator(mems, nil, slog.Default())

	events := []*models.Event{textEvent(models.AuthorTool, "noise")}
	mem, err := c.Consolidate(context.Background(), "app1", "u1", events)
	require.NoError(t, err)
	assert.Nil(t, mem)
}
