// Package rag orchestrates question answering: embed the question, search
// the vector store for the nearest chunks, compose a grounded prompt, and
// call the generative model.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
	"github.com/SiteSageAI/sitesage-mvp/engine/semantic"
	"github.com/SiteSageAI/sitesage-mvp/pkg/ollama"
)

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the vector store surface retrieval needs.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
}

// Generator produces a completion from chat messages.
type Generator interface {
	Generate(ctx context.Context, messages []ollama.Message) (string, error)
}

// RelatedFinder surfaces link-graph neighbours of a page. Optional.
type RelatedFinder interface {
	RelatedPages(ctx context.Context, pageURL string, limit int) ([]string, error)
}

// Options configures the retrieval pipeline.
type Options struct {
	// TopK is how many nearest chunks ground the answer.
	TopK int
	// SystemPrompt establishes the assistant's role.
	SystemPrompt string
	// RelatedLimit caps link-graph enrichment per answer.
	RelatedLimit int
}

// DefaultOptions returns the retrieval defaults.
func DefaultOptions() Options {
	return Options{
		TopK:         3,
		SystemPrompt: defaultSystemPrompt,
		RelatedLimit: 5,
	}
}

const defaultSystemPrompt = `You are a support agent for the indexed website.
Answer the user's question using ONLY the supplied page context. If the
context does not contain the answer, say so. Mention the source URLs you
relied on.`

// Service is the retrieval orchestration service.
type Service struct {
	embed   Embedder
	search  Searcher
	gen     Generator
	related RelatedFinder
	opts    Options
	logger  *slog.Logger
}

// New creates a retrieval Service. related may be nil.
func New(embed Embedder, search Searcher, gen Generator, related RelatedFinder, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Service{embed: embed, search: search, gen: gen, related: related, opts: opts, logger: logger}
}

// Answer is the response of the retrieval pipeline.
type Answer struct {
	Text        string   `json:"text"`
	PrimaryURL  string   `json:"primary_url"`
	Sources     []Source `json:"sources"`
	RelatedURLs []string `json:"related_urls,omitempty"`
}

// Source is one retrieved chunk backing the answer.
type Source struct {
	URL        string  `json:"url"`
	Body       string  `json:"body"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// Ask runs the retrieval pipeline for one question. An empty store is not
// an error: the generator is invoked with empty context and the primary URL
// stays empty.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}
	s.logger.Info("rag: question", "len", len(question))

	vec, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rag embed: %w: %w", domain.ErrRetrievalFailed, err)
	}

	results, err := s.search.Search(ctx, vec, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag search: %w: %w", domain.ErrRetrievalFailed, err)
	}
	s.logger.Info("rag: search done", "results", len(results))

	// Whitespace-only chunks carry no grounding; drop them but keep the
	// store's ranking for the rest.
	grounded := results[:0:0]
	for _, r := range results {
		if strings.TrimSpace(r.Body) != "" {
			grounded = append(grounded, r)
		}
	}

	messages := []ollama.Message{
		{Role: "system", Content: s.opts.SystemPrompt},
		{Role: "user", Content: composeUserMessage(question, grounded)},
	}
	text, err := s.gen.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("rag generate: %w: %w", domain.ErrGenerationFailed, err)
	}

	answer := &Answer{Text: text}
	if len(grounded) > 0 {
		answer.PrimaryURL = grounded[0].SourceURL
		answer.Sources = make([]Source, len(grounded))
		for i, r := range grounded {
			answer.Sources[i] = Source{
				URL:        r.SourceURL,
				Body:       r.Body,
				ChunkIndex: r.ChunkIndex,
				Score:      r.Score,
			}
		}
		answer.RelatedURLs = s.enrichRelated(ctx, answer.PrimaryURL)
	}
	return answer, nil
}

// composeUserMessage embeds the question, the retrieved URLs, and the
// retrieved bodies, comma-joined in retrieval order.
func composeUserMessage(question string, results []semantic.SearchResult) string {
	urls := make([]string, len(results))
	bodies := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.SourceURL
		bodies[i] = r.Body
	}
	return fmt.Sprintf("Question: %s\n\nSource URLs: %s\n\nContext: %s",
		question, strings.Join(urls, ", "), strings.Join(bodies, ", "))
}

// enrichRelated asks the link graph for neighbours of the primary source.
// Failures are logged and skipped; the answer stands without them.
func (s *Service) enrichRelated(ctx context.Context, pageURL string) []string {
	if s.related == nil {
		return nil
	}
	urls, err := s.related.RelatedPages(ctx, pageURL, s.opts.RelatedLimit)
	if err != nil {
		s.logger.Warn("rag: related pages lookup failed, continuing without", "url", pageURL, "error", err)
		return nil
	}
	return urls
}
