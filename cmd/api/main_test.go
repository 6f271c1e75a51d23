package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SiteSageAI/sitesage-mvp/engine/rag"
	"github.com/SiteSageAI/sitesage-mvp/engine/semantic"
	"github.com/SiteSageAI/sitesage-mvp/pkg/ollama"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2}, nil
}

type stubSearcher struct{ results []semantic.SearchResult }

func (s stubSearcher) Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error) {
	return s.results, nil
}

type stubGenerator struct{ reply string }

func (s stubGenerator) Generate(ctx context.Context, messages []ollama.Message) (string, error) {
	return s.reply, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRagService() *rag.Service {
	results := []semantic.SearchResult{
		{SourceURL: "https://a.example/docs", Body: "Install with the one-line script"},
	}
	return rag.New(stubEmbedder{}, stubSearcher{results: results}, stubGenerator{reply: "Run the script."}, nil, rag.DefaultOptions(), nil)
}

func TestHandleAsk(t *testing.T) {
	h := handleAsk(testRagService(), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"how do I install?"}`))
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var resp AskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Run the script." {
		t.Fatalf("answer: got %q", resp.Answer)
	}
	if resp.PrimaryURL != "https://a.example/docs" {
		t.Fatalf("primary url: got %q", resp.PrimaryURL)
	}
}

func TestHandleAskRejectsBlankQuestion(t *testing.T) {
	h := handleAsk(testRagService(), testLogger())

	for _, body := range []string{`{"question":""}`, `{"question":"  "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: got status %d", body, rec.Code)
		}
	}
}

type fakePublisher struct {
	subjects []string
	payloads []any
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, v any) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, v)
	return nil
}

func TestHandleIngestEnqueues(t *testing.T) {
	pub := &fakePublisher{}
	h := handleIngestWith(pub, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"url":"https://a.example/docs","depth":1}`))
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "engine.ingest" {
		t.Fatalf("subjects: got %v", pub.subjects)
	}
}

func TestHandleIngestRejectsBadURL(t *testing.T) {
	pub := &fakePublisher{}
	h := handleIngestWith(pub, testLogger())

	for _, body := range []string{`{"url":""}`, `{"url":"ftp://x"}`, `{"url":"/relative"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: got status %d", body, rec.Code)
		}
	}
	if len(pub.subjects) != 0 {
		t.Fatalf("nothing should be enqueued, got %v", pub.subjects)
	}
}

func TestHandleIngestQueueDown(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	h := handleIngestWith(pub, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"url":"https://a.example"}`))
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body: %s", rec.Body.String())
	}
}
