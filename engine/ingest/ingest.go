// Package ingest implements the ingestion pipeline: purge prior records for
// a URL, fetch the page, split it into chunks, embed each chunk, and upsert
// the results into the vector store with a dedup guard.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
	"github.com/SiteSageAI/sitesage-mvp/engine/semantic"
	"github.com/SiteSageAI/sitesage-mvp/pkg/fn"
)

// PageFetcher retrieves and extracts a page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Page, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore is the vector store surface ingestion needs.
type ChunkStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
	DeleteBySourceURL(ctx context.Context, sourceURL string) error
}

// LinkRecorder persists the page link graph. Optional.
type LinkRecorder interface {
	SavePage(ctx context.Context, page domain.Page) error
	SaveLinks(ctx context.Context, fromURL string, targets []string) error
}

// Deps holds the collaborators of the ingestion service. All handles are
// created once at process start and injected here.
type Deps struct {
	Fetcher  PageFetcher
	Embedder Embedder
	Store    ChunkStore
	Graph    LinkRecorder // nil disables link-graph recording
	Logger   *slog.Logger
}

// Options configures pipeline behaviour.
type Options struct {
	// ChunkCount is the fixed division target per page body.
	ChunkCount int
	// EmbedWorkers bounds concurrent embedding calls per page.
	EmbedWorkers int
}

// DefaultOptions returns the ingestion defaults.
func DefaultOptions() Options {
	return Options{ChunkCount: DefaultChunkCount, EmbedWorkers: 4}
}

// Service runs the ingestion pipeline.
type Service struct {
	deps   Deps
	opts   Options
	locks  *keyedMutex
	logger *slog.Logger
}

// New creates an ingestion Service.
func New(deps Deps, opts Options) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.ChunkCount <= 0 {
		opts.ChunkCount = DefaultChunkCount
	}
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = DefaultOptions().EmbedWorkers
	}
	return &Service{deps: deps, opts: opts, locks: newKeyedMutex(), logger: log}
}

// Ingest runs the full pipeline for one URL: purge, fetch, chunk, embed,
// upsert. Ingests of the same URL are serialized; an empty page body is a
// logged early exit, not an error. Chunks committed before a failure stay
// committed.
func (s *Service) Ingest(ctx context.Context, url string) (Stats, error) {
	if err := domain.ValidateURL(url); err != nil {
		return Stats{}, err
	}

	s.locks.Lock(url)
	defer s.locks.Unlock(url)

	start := time.Now()
	s.logger.Info("ingest start", "url", url)

	// Full replace: prior records for this URL go first, so a shrunken
	// page never leaves stale trailing chunks behind.
	if err := s.deps.Store.DeleteBySourceURL(ctx, url); err != nil {
		return Stats{}, fmt.Errorf("ingest purge %s: %w: %w", url, domain.ErrStoreFailed, err)
	}

	pipeline := fn.Then(fn.Then(s.fetchStage(), s.chunkStage()), s.embedStage())
	result := pipeline(ctx, url)
	if result.IsErr() {
		_, err := result.Unwrap()
		if errors.Is(err, domain.ErrEmptyBody) {
			s.logger.Error("ingest: empty body, skipping", "url", url)
			return Stats{}, nil
		}
		s.logger.Error("ingest: pipeline failed", "url", url, "error", err)
		return Stats{}, err
	}

	doc, _ := result.Unwrap()
	stats, err := s.storeChunks(ctx, doc)
	stats.InternalLinks = doc.Page.InternalLinks
	if err != nil {
		s.logger.Error("ingest: store failed", "url", url, "error", err)
		return stats, err
	}

	s.recordLinks(ctx, doc.Page)

	s.logger.Info("ingest done",
		"url", url,
		"chunks", stats.Chunks,
		"inserted", stats.Inserted,
		"skipped", stats.Skipped,
		"duration", time.Since(start),
	)
	return stats, nil
}

// fetchStage retrieves the page and rejects empty bodies.
func (s *Service) fetchStage() fn.Stage[string, domain.Page] {
	return fn.TracedStage("ingest.fetch", func(ctx context.Context, url string) fn.Result[domain.Page] {
		page, err := s.deps.Fetcher.Fetch(ctx, url)
		if err != nil {
			return fn.Err[domain.Page](err)
		}
		if page.Body == "" {
			return fn.Errf[domain.Page]("fetch %s: %w", url, domain.ErrEmptyBody)
		}
		return fn.Ok(page)
	})
}

// chunkStage splits the body by fixed division.
func (s *Service) chunkStage() fn.Stage[domain.Page, ChunkedDoc] {
	return fn.TracedStage("ingest.chunk", func(_ context.Context, page domain.Page) fn.Result[ChunkedDoc] {
		chunks, err := chunksFromPage(page, s.opts.ChunkCount)
		if err != nil {
			return fn.Err[ChunkedDoc](err)
		}
		return fn.Ok(ChunkedDoc{Page: page, Chunks: chunks})
	})
}

// embedStage embeds every chunk, order preserved. Chunks are independent,
// so embedding runs under a bounded worker pool; upserts stay sequential.
func (s *Service) embedStage() fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return fn.TracedStage("ingest.embed", func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		results := fn.ParMapResult(doc.Chunks, s.opts.EmbedWorkers, func(c domain.Chunk) fn.Result[[]float32] {
			vec, err := s.deps.Embedder.Embed(ctx, c.Text)
			if err != nil {
				return fn.Err[[]float32](fmt.Errorf("embed chunk %d of %s: %w: %w", c.Index, c.SourceURL, domain.ErrEmbeddingFailed, err))
			}
			return fn.Ok(vec)
		})
		collected := fn.Collect(results)
		if collected.IsErr() {
			_, err := collected.Unwrap()
			return fn.Err[EmbeddedDoc](err)
		}
		embeddings, _ := collected.Unwrap()
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	})
}

// storeChunks upserts each chunk in index order through the dedup guard.
// A failure stops the loop; earlier chunks are not rolled back.
func (s *Service) storeChunks(ctx context.Context, doc EmbeddedDoc) (Stats, error) {
	stats := Stats{Chunks: len(doc.Chunks)}
	for i, chunk := range doc.Chunks {
		inserted, err := s.UpsertChunk(ctx, chunk, doc.Embeddings[i])
		if err != nil {
			return stats, err
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Skipped++
		}
	}
	return stats, nil
}

// UpsertChunk inserts one chunk unless a record with its identifier already
// exists. It reports whether an insert happened. The existence check is only
// atomic with the insert because ingests of a URL are serialized.
func (s *Service) UpsertChunk(ctx context.Context, chunk domain.Chunk, embedding []float32) (bool, error) {
	id := ChunkID(chunk.SourceURL, chunk.Index)

	exists, err := s.deps.Store.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("ingest exists %s: %w: %w", id, domain.ErrStoreFailed, err)
	}
	if exists {
		s.logger.Info("ingest: chunk already exists", "url", chunk.SourceURL, "index", chunk.Index)
		return false, nil
	}

	record := semantic.VectorRecord{
		ID:        id,
		Embedding: embedding,
		Payload: map[string]any{
			"source_url":  chunk.SourceURL,
			"body":        chunk.Text,
			"head":        chunk.Meta,
			"chunk_index": chunk.Index,
		},
	}
	if err := s.deps.Store.Upsert(ctx, []semantic.VectorRecord{record}); err != nil {
		return false, fmt.Errorf("ingest upsert %s: %w: %w", id, domain.ErrStoreFailed, err)
	}
	return true, nil
}

// recordLinks writes the page and its internal links to the link graph.
// Graph failures are logged and skipped; the vector store is the source of
// truth and is already committed by now.
func (s *Service) recordLinks(ctx context.Context, page domain.Page) {
	if s.deps.Graph == nil {
		return
	}
	if err := s.deps.Graph.SavePage(ctx, page); err != nil {
		s.logger.Warn("ingest: link graph save page failed", "url", page.URL, "error", err)
		return
	}
	if err := s.deps.Graph.SaveLinks(ctx, page.URL, page.InternalLinks); err != nil {
		s.logger.Warn("ingest: link graph save links failed", "url", page.URL, "error", err)
	}
}
