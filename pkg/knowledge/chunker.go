package knowledge

import (
	"strings"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// ChunkText implements the chunking algorithm: slide a window of
// cfg.ChunkSize over the stripped text, stepping by max(1, ChunkSize-Overlap),
// then flatten newlines and strip each sliced piece, dropping empties.
// Windowing happens over the un-flattened text so chunk boundaries do not
// shift when a two-character "\r\n" collapses to one space. Deterministic:
// the same (text, cfg) always produces the same chunks.
func ChunkText(text string, cfg models.ChunkConfig) ([]string, error) {
	if cfg.Overlap < 0 {
		return nil, apperrors.NewValidationError("overlap", "must be >= 0")
	}
	if cfg.ChunkSize <= 0 {
		return nil, apperrors.NewValidationError("chunk_size", "must be > 0")
	}
	overlap := cfg.Overlap
	if overlap >= cfg.ChunkSize {
		overlap = cfg.ChunkSize - 1
	}
	step := cfg.ChunkSize - overlap
	if step < 1 {
		step = 1
	}

	runes := []rune(strings.TrimSpace(text))

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[start:end])
		if !cfg.PreserveNewlines {
			piece = flattenLines(piece)
		}
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out, nil
}

// flattenLines joins a piece's lines with single spaces, treating "\r\n",
// "\r", and "\n" all as line breaks.
func flattenLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Join(strings.Split(s, "\n"), " ")
}
