package retriever

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/model"
)

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, modelName, text string) ([]float32, error)
}

type Searcher interface {
	Search(query []float32, k int) ([]model.ScoredChunk, error)
	Len() int
	EmbeddingModel() string
}

type Retriever struct {
	embedder QueryEmbedder
	index    Searcher
}

func New(embedder QueryEmbedder, index Searcher) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve embeds the question, takes the cfg.TopK nearest chunks and drops
// those scoring below cfg.SimilarityThreshold. An empty result is not an
// error; it means no relevant context exists.
func (r *Retriever) Retrieve(ctx context.Context, question string, cfg model.RuntimeConfig) ([]model.ScoredChunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", model.ErrInvalidInput)
	}
	if err := model.ValidateTopK(cfg.TopK); err != nil {
		return nil, err
	}
	if r.index.Len() == 0 {
		return []model.ScoredChunk{}, nil
	}

	// queries must share the vector space of the indexed chunks
	embeddingModel := r.index.EmbeddingModel()
	if embeddingModel == "" {
		embeddingModel = cfg.EmbeddingModel
	}
	vec, err := r.embedder.EmbedQuery(ctx, embeddingModel, question)
	if err != nil {
		return nil, fmt.Errorf("embed question failed: %w", err)
	}

	hits, err := r.index.Search(vec, cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index failed: %w", err)
	}
	out := make([]model.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.Score < cfg.SimilarityThreshold {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}
