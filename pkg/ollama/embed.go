// Package ollama provides embedding and chat-completion clients backed by
// the Ollama HTTP API. Both clients share a circuit breaker policy since
// they usually target the same instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SiteSageAI/sitesage-mvp/pkg/resilience"
)

// EmbedClient turns text into a fixed-length vector via /api/embeddings.
type EmbedClient struct {
	baseURL string
	model   string
	client  *http.Client
	breaker *resilience.Breaker
}

// NewEmbedClient creates an embedding client for the given Ollama base URL.
func NewEmbedClient(baseURL, model string) *EmbedClient {
	return &EmbedClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		body, _ := json.Marshal(embedRequest{Model: c.model, Prompt: text})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("ollama embed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("ollama embed: status %d", resp.StatusCode)
		}

		var result embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("ollama embed decode: %w", err)
		}

		out = make([]float32, len(result.Embedding))
		for i, v := range result.Embedding {
			out[i] = float32(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
