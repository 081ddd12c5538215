package summarizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
)

type scriptedLLM struct {
	chunks []string
	err    error
	seen   provider.ChatRequest
}

func (s *scriptedLLM) StreamChat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatChunk, error) {
	s.seen = req
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan provider.ChatChunk, len(s.chunks)+1)
	for _, c := range s.chunks {
		out <- provider.ChatChunk{Content: c}
	}
	out <- provider.ChatChunk{Done: true}
	close(out)
	return out, nil
}

func (s *scriptedLLM) Close() error { return nil }

func TestGenerateTitle_CollectsStreamedChunks(t *testing.T) {
	llm := &scriptedLLM{chunks: []string{"Weather ", "small talk"}}
	s := New(llm, "default")

	title, err := s.GenerateTitle(context.Background(), []*models.Event{
		{Author: models.AuthorUser, Content: models.NewTextContent("what's the weather")},
		{Author: models.AuthorAgent, Content: models.NewTextContent("it's sunny")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Weather small talk", title)
	require.Len(t, llm.seen.Messages, 2)
	assert.Contains(t, llm.seen.Messages[1].Content, "user: what's the weather")
	assert.Contains(t, llm.seen.Messages[1].Content, "agent: it's sunny")
}

func TestGenerateTitle_ExcludesToolEvents(t *testing.T) {
	llm := &scriptedLLM{chunks: []string{"Title"}}
	s := New(llm, "default")

	_, err := s.GenerateTitle(context.Background(), []*models.Event{
		{Author: models.AuthorUser, Content: models.NewTextContent("hi")},
		{Author: models.AuthorTool, Content: models.NewTextContent("tool noise")},
	})
	require.NoError(t, err)
	assert.NotContains(t, llm.seen.Messages[1].Content, "tool noise")
}

func TestGenerateTitle_EmptyTranscriptSkipsLLM(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("should not be called")}
	s := New(llm, "default")

	title, err := s.GenerateTitle(context.Background(), []*models.Event{
		{Author: models.AuthorTool, Content: models.NewTextContent("noise")},
	})
	require.NoError(t, err)
	assert.Empty(t, title)
}

func TestGenerateTitle_ProviderErrorSurfaces(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("provider down")}
	s := New(llm, "default")

	_, err := s.GenerateTitle(context.Background(), []*models.Event{
		{Author: models.AuthorUser, Content: models.NewTextContent("hi")},
	})
	require.Error(t, err)
}

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`"Weather small talk."`, "Weather small talk"},
		{"First line\nsecond line", "First line"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanTitle(tc.in))
	}
}

func TestCleanTitle_CapsLengthOnWordBoundary(t *testing.T) {
	long := "word " // 5 chars, repeated
	var in string
	for len(in) < 200 {
		in += long
	}
	got := CleanTitle(in)
	assert.LessOrEqual(t, len(got), 80)
	assert.False(t, got[len(got)-1] == ' ')
}
