package ingest

import "github.com/SiteSageAI/sitesage-mvp/engine/domain"

// ChunkedDoc is a fetched page split into embeddable chunks.
type ChunkedDoc struct {
	Page   domain.Page
	Chunks []domain.Chunk
}

// EmbeddedDoc is a chunked page with one embedding per chunk.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}

// Stats summarizes one ingest run for logging and metrics. InternalLinks
// carries the page's internal link set so callers can follow them without
// refetching.
type Stats struct {
	Chunks        int
	Inserted      int
	Skipped       int
	InternalLinks []string
}

// chunksFromPage builds the chunk records for a page body. The page's title
// and meta travel with every chunk as head metadata.
func chunksFromPage(page domain.Page, count int) ([]domain.Chunk, error) {
	pieces, err := SplitChunks(page.Body, count)
	if err != nil {
		return nil, err
	}
	head := page.Title
	if page.Meta != "" {
		if head != "" {
			head += " "
		}
		head += page.Meta
	}
	chunks := make([]domain.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = domain.Chunk{
			SourceURL: page.URL,
			Index:     i,
			Text:      text,
			Meta:      head,
		}
	}
	return chunks, nil
}
