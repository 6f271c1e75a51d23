package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
	"github.com/SiteSageAI/sitesage-mvp/engine/semantic"
	"github.com/SiteSageAI/sitesage-mvp/pkg/ollama"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakeSearcher struct {
	results []semantic.SearchResult
	err     error
	gotTopK int
}

func (f *fakeSearcher) Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error) {
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGenerator struct {
	reply    string
	err      error
	messages []ollama.Message
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []ollama.Message) (string, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeRelated struct {
	urls []string
	err  error
}

func (f *fakeRelated) RelatedPages(ctx context.Context, pageURL string, limit int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.urls, nil
}

func projectResults() []semantic.SearchResult {
	return []semantic.SearchResult{
		{ID: "c1", Score: 0.92, SourceURL: "https://a.example/projects", Body: "Project A is a widget tracker", ChunkIndex: 0},
		{ID: "c2", Score: 0.81, SourceURL: "https://a.example/projects/b", Body: "Project B is a gadget planner", ChunkIndex: 2},
	}
}

func TestAskComposesGroundedPrompt(t *testing.T) {
	emb := &fakeEmbedder{}
	srch := &fakeSearcher{results: projectResults()}
	gen := &fakeGenerator{reply: "He built Project A and Project B."}
	svc := New(emb, srch, gen, nil, DefaultOptions(), nil)

	ans, err := svc.Ask(context.Background(), "List all his projects?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "He built Project A and Project B." {
		t.Fatalf("unexpected answer text: %q", ans.Text)
	}
	if ans.PrimaryURL != "https://a.example/projects" {
		t.Fatalf("primary url: got %q", ans.PrimaryURL)
	}
	if srch.gotTopK != 3 {
		t.Fatalf("topK: got %d, want 3", srch.gotTopK)
	}

	if len(gen.messages) != 2 {
		t.Fatalf("expected system + user message, got %d", len(gen.messages))
	}
	if gen.messages[0].Role != "system" || !strings.Contains(gen.messages[0].Content, "support agent") {
		t.Fatalf("unexpected system message: %+v", gen.messages[0])
	}
	user := gen.messages[1].Content
	if !strings.Contains(user, "List all his projects?") {
		t.Fatalf("user message missing question: %q", user)
	}
	if !strings.Contains(user, "https://a.example/projects, https://a.example/projects/b") {
		t.Fatalf("user message missing comma-joined urls: %q", user)
	}
	if !strings.Contains(user, "Project A is a widget tracker, Project B is a gadget planner") {
		t.Fatalf("user message missing comma-joined bodies: %q", user)
	}
}

func TestAskReturnsSourcesInRetrievalOrder(t *testing.T) {
	svc := New(&fakeEmbedder{}, &fakeSearcher{results: projectResults()}, &fakeGenerator{reply: "ok"}, nil, DefaultOptions(), nil)

	ans, err := svc.Ask(context.Background(), "projects?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(ans.Sources))
	}
	if ans.Sources[0].URL != "https://a.example/projects" || ans.Sources[1].ChunkIndex != 2 {
		t.Fatalf("sources out of order: %+v", ans.Sources)
	}
}

func TestAskFiltersBlankBodies(t *testing.T) {
	results := []semantic.SearchResult{
		{ID: "blank", Score: 0.99, SourceURL: "https://a.example/empty", Body: "   \n\t"},
		{ID: "c1", Score: 0.90, SourceURL: "https://a.example/projects", Body: "Project A is a widget tracker"},
	}
	gen := &fakeGenerator{reply: "ok"}
	svc := New(&fakeEmbedder{}, &fakeSearcher{results: results}, gen, nil, DefaultOptions(), nil)

	ans, err := svc.Ask(context.Background(), "projects?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	// The blank top hit is dropped; the next real hit becomes primary.
	if ans.PrimaryURL != "https://a.example/projects" {
		t.Fatalf("primary url: got %q", ans.PrimaryURL)
	}
	if strings.Contains(gen.messages[1].Content, "a.example/empty") {
		t.Fatalf("blank source leaked into prompt: %q", gen.messages[1].Content)
	}
}

func TestAskEmptyStoreStillGenerates(t *testing.T) {
	gen := &fakeGenerator{reply: "I don't have enough context to answer."}
	svc := New(&fakeEmbedder{}, &fakeSearcher{}, gen, nil, DefaultOptions(), nil)

	ans, err := svc.Ask(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls: got %d, want 1", gen.calls)
	}
	if ans.PrimaryURL != "" {
		t.Fatalf("expected empty primary url, got %q", ans.PrimaryURL)
	}
	if len(ans.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(ans.Sources))
	}
	if ans.Text == "" {
		t.Fatal("expected generated text")
	}
}

func TestAskInvalidQuestion(t *testing.T) {
	svc := New(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, nil, DefaultOptions(), nil)
	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Ask(context.Background(), q); !errors.Is(err, domain.ErrInvalidQuestion) {
			t.Fatalf("question %q: expected ErrInvalidQuestion, got %v", q, err)
		}
	}
}

func TestAskEmbedFailure(t *testing.T) {
	boom := errors.New("embedder down")
	svc := New(&fakeEmbedder{err: boom}, &fakeSearcher{}, &fakeGenerator{}, nil, DefaultOptions(), nil)

	_, err := svc.Ask(context.Background(), "q?")
	if !errors.Is(err, domain.ErrRetrievalFailed) {
		t.Fatalf("expected ErrRetrievalFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestAskSearchFailure(t *testing.T) {
	svc := New(&fakeEmbedder{}, &fakeSearcher{err: errors.New("qdrant down")}, &fakeGenerator{}, nil, DefaultOptions(), nil)

	_, err := svc.Ask(context.Background(), "q?")
	if !errors.Is(err, domain.ErrRetrievalFailed) {
		t.Fatalf("expected ErrRetrievalFailed, got %v", err)
	}
}

func TestAskGenerateFailure(t *testing.T) {
	svc := New(&fakeEmbedder{}, &fakeSearcher{results: projectResults()}, &fakeGenerator{err: errors.New("model down")}, nil, DefaultOptions(), nil)

	_, err := svc.Ask(context.Background(), "q?")
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestAskRelatedEnrichment(t *testing.T) {
	rel := &fakeRelated{urls: []string{"https://a.example/faq", "https://a.example/pricing"}}
	svc := New(&fakeEmbedder{}, &fakeSearcher{results: projectResults()}, &fakeGenerator{reply: "ok"}, rel, DefaultOptions(), nil)

	ans, err := svc.Ask(context.Background(), "projects?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.RelatedURLs) != 2 {
		t.Fatalf("related urls: got %v", ans.RelatedURLs)
	}
}

func TestAskRelatedFailureIsNonFatal(t *testing.T) {
	rel := &fakeRelated{err: errors.New("neo4j down")}
	svc := New(&fakeEmbedder{}, &fakeSearcher{results: projectResults()}, &fakeGenerator{reply: "ok"}, rel, DefaultOptions(), nil)

	ans, err := svc.Ask(context.Background(), "projects?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.RelatedURLs) != 0 {
		t.Fatalf("expected no related urls, got %v", ans.RelatedURLs)
	}
}
