package semantic

// VectorRecord is one chunk to persist: deterministic ID, embedding, and
// the payload fields retrieval reads back.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // source_url, body, head, chunk_index
}

// SearchResult is a single nearest-neighbour hit, in store order.
type SearchResult struct {
	ID         string            `json:"id"`
	Score      float32           `json:"score"`
	Body       string            `json:"body"`
	SourceURL  string            `json:"source_url"`
	Head       string            `json:"head"`
	ChunkIndex int               `json:"chunk_index"`
	Meta       map[string]string `json:"meta,omitempty"`
}
