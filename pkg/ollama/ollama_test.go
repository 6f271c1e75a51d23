package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbedClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "nomic-embed-text")
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "m")
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestChatClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "the answer"}})
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "llama3.1:8b", 0.3)
	got, err := c.Generate(context.Background(), []Message{
		{Role: "system", Content: "you are helpful"},
		{Role: "user", Content: "question"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "the answer" {
		t.Fatalf("unexpected completion %q", got)
	}
}

func TestChatClientBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "m", 0)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		c.Generate(ctx, []Message{{Role: "user", Content: "q"}})
	}
	// Breaker now rejects without reaching the server.
	srv.Close()
	if _, err := c.Generate(ctx, []Message{{Role: "user", Content: "q"}}); err == nil {
		t.Fatal("expected breaker rejection")
	}
}
