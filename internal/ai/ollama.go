package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaClient talks to a local Ollama server for both chat and embeddings.
type OllamaClient struct {
	client *api.Client
}

func NewOllamaClient(baseURL string, timeout time.Duration) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OllamaClient{client: api.NewClient(u, &http.Client{Timeout: timeout})}, nil
}

func (c *OllamaClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	stream := false
	options := map[string]interface{}{"temperature": cfg.Temperature}
	if cfg.MaxTokens > 0 {
		options["num_predict"] = cfg.MaxTokens
	}
	req := &api.ChatRequest{
		Model:    cfg.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}

	var full strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		full.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return full.String(), nil
}

func (c *OllamaClient) EmbedBatch(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{Model: cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Heartbeat checks that the Ollama server is reachable.
func (c *OllamaClient) Heartbeat(ctx context.Context) error {
	return c.client.Heartbeat(ctx)
}
