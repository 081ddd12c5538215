// Package summarizer generates a short conversation title from a thread's
// first exchanges. It implements session.TitleGenerator and is the only
// engine-core consumer of the streaming LLM contract besides tracing.
package summarizer

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/provider"
)

const (
	maxTitleLen      = 80
	maxPromptEvents  = 6
	maxEventExcerpt  = 400
	llmCallTimeout   = 30 * time.Second
)

const systemPrompt = "Write a short title (at most eight words) summarizing the conversation below. " +
	"Reply with the title only: no quotes, no trailing punctuation."

// TitleSummarizer asks the LLM for a one-line title covering the thread's
// recent events. Failures surface to the caller, which logs and drops them —
// title generation never blocks or fails an append.
type TitleSummarizer struct {
	llm   provider.LLMProvider
	model string
}

func New(llm provider.LLMProvider, model string) *TitleSummarizer {
	return &TitleSummarizer{llm: llm, model: model}
}

// GenerateTitle streams a completion over the first user+agent exchanges and
// collects it into a single cleaned line.
func (s *TitleSummarizer) GenerateTitle(ctx context.Context, events []*models.Event) (string, error) {
	transcript := buildTranscript(events)
	if transcript == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	chunks, err := s.llm.StreamChat(ctx, provider.ChatRequest{
		Model: s.model,
		Messages: []provider.ChatMessage{
			{Role: provider.RoleSystem, Content: systemPrompt},
			{Role: provider.RoleUser, Content: transcript},
		},
		MaxTokens: 64,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		b.WriteString(chunk.Content)
	}
	return CleanTitle(b.String()), nil
}

// buildTranscript renders the first non-tool events as "author: text" lines,
// capped so the prompt stays small regardless of event size.
func buildTranscript(events []*models.Event) string {
	var lines []string
	for _, e := range events {
		if e.Author == models.AuthorTool {
			continue
		}
		text := strings.Join(e.Content.TextParts(), " ")
		if text == "" {
			continue
		}
		if len(text) > maxEventExcerpt {
			text = text[:maxEventExcerpt]
		}
		lines = append(lines, string(e.Author)+": "+text)
		if len(lines) >= maxPromptEvents {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// CleanTitle normalizes an LLM completion into a storable title: one line,
// surrounding quotes and trailing punctuation stripped, length-capped.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, `"'`)
	title = strings.TrimRightFunc(title, func(r rune) bool {
		return unicode.IsPunct(r) && r != ')' && r != ']'
	})
	title = strings.TrimSpace(title)
	if len(title) > maxTitleLen {
		cut := title[:maxTitleLen]
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
		title = cut
	}
	return title
}
