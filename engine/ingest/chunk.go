package ingest

import (
	"fmt"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
)

// DefaultChunkCount is the fixed division target for page bodies.
const DefaultChunkCount = 100

// SplitChunks divides text into at most count contiguous, non-overlapping
// pieces of ceil(len/count) runes each. Short texts yield fewer, smaller
// pieces: a 5-rune body with count 100 produces five 1-rune chunks.
// Concatenating the result always reconstructs text exactly.
func SplitChunks(text string, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("chunk: %w: count %d", domain.ErrInvalidChunkCount, count)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	size := (len(runes) + count - 1) / count
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
