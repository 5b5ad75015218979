package ai

import "context"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatConfig carries the per-call generation parameters.
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// EmbeddingConfig selects the embedding model for a call.
type EmbeddingConfig struct {
	Model string
}

// Completer produces a chat completion.
type Completer interface {
	Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error)
}

// Embedder maps texts to vectors, one vector per input text in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, error)
}
