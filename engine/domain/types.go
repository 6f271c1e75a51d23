// Package domain defines the core types and error taxonomy shared by the
// SiteSage ingestion and retrieval pipelines. It acts as the validation gate
// at pipeline entry points.
package domain

// Page is the extracted content of one fetched URL.
type Page struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Meta          string   `json:"meta"`
	Body          string   `json:"body"`
	InternalLinks []string `json:"internal_links"`
	ExternalLinks []string `json:"external_links"`
}

// Chunk is one fixed-size slice of a page body, ready for embedding.
type Chunk struct {
	SourceURL string `json:"source_url"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Meta      string `json:"meta"`
}

// IngestRequest is the message carried on the ingest subject.
// Depth > 0 allows the worker to follow internal links that many hops.
type IngestRequest struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}
