package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
)

func TestChunkText_Empty(t *testing.T) {
	chunks, err := ChunkText("", models.DefaultChunkConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkText_WhitespaceOnly(t *testing.T) {
	chunks, err := ChunkText("   \n\t  ", models.DefaultChunkConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkText_RejectsNegativeOverlap(t *testing.T) {
	_, err := ChunkText("hello", models.ChunkConfig{ChunkSize: 10, Overlap: -1})
	require.Error(t, err)
}

func TestChunkText_ClampsOverlapToChunkSizeMinusOne(t *testing.T) {
	text := strings.Repeat("a", 20)
	chunks, err := ChunkText(text, models.ChunkConfig{ChunkSize: 5, Overlap: 100})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 5)
	}
}

func TestChunkText_DeterministicAndWithinSize(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50)
	cfg := models.ChunkConfig{ChunkSize: 30, Overlap: 5}

	first, err := ChunkText(text, cfg)
	require.NoError(t, err)
	second, err := ChunkText(text, cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second, "chunking is deterministic for identical input")

	for _, c := range first {
		assert.LessOrEqual(t, len([]rune(c)), cfg.ChunkSize)
	}
}

func TestChunkText_FlattensNewlinesUnlessPreserved(t *testing.T) {
	text := "line one\nline two\nline three"
	flattened, err := ChunkText(text, models.ChunkConfig{ChunkSize: 1000, Overlap: 0, PreserveNewlines: false})
	require.NoError(t, err)
	require.Len(t, flattened, 1)
	assert.NotContains(t, flattened[0], "\n")

	preserved, err := ChunkText(text, models.ChunkConfig{ChunkSize: 1000, Overlap: 0, PreserveNewlines: true})
	require.NoError(t, err)
	require.Len(t, preserved, 1)
	assert.Contains(t, preserved[0], "\n")
}

func TestChunkText_CoversWholeInput(t *testing.T) {
	text := strings.Repeat("word ", 40)
	cfg := models.ChunkConfig{ChunkSize: 20, Overlap: 4}
	chunks, err := ChunkText(text, cfg)
	require.NoError(t, err)

	var total int
	for _, c := range chunks {
		total += len(c)
	}
	assert.GreaterOrEqual(t, total, len(strings.TrimSpace(text)))
}
