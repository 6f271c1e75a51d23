package ingest

import (
	"fmt"

	"github.com/google/uuid"
)

// ChunkID derives the deterministic store identifier for a (sourceURL,
// chunkIndex) pair: a v5 UUID over a NUL-delimited key. NUL cannot occur in
// a URL, so the encoding is injective — no URL can collide with another by
// being its literal string prefix. Chunk ownership is carried in the record
// payload (source_url), not recovered from the identifier.
func ChunkID(sourceURL string, chunkIndex int) string {
	key := fmt.Sprintf("%s\x00%d", sourceURL, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
