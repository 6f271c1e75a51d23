package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SiteSageAI/sitesage-mvp/pkg/resilience"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient produces completions via /api/chat (non-streaming).
type ChatClient struct {
	baseURL     string
	model       string
	temperature float32
	client      *http.Client
	breaker     *resilience.Breaker
}

// NewChatClient creates a chat client for the given Ollama base URL.
func NewChatClient(baseURL, model string, temperature float32) *ChatClient {
	return &ChatClient{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		client:      &http.Client{},
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Generate sends the messages and returns the completion text.
func (c *ChatClient) Generate(ctx context.Context, messages []Message) (string, error) {
	var out string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		body, _ := json.Marshal(chatRequest{
			Model:    c.model,
			Messages: messages,
			Stream:   false,
			Options:  map[string]any{"temperature": c.temperature},
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("ollama chat: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("ollama chat: status %d", resp.StatusCode)
		}

		var result chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("ollama chat decode: %w", err)
		}
		out = result.Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
