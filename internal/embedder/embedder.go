// Package embedder turns chunk and query text into vectors. Chunk batches fan
// out with bounded concurrency; every failure surfaces as
// model.ErrEmbeddingUnavailable and no placeholder vector is ever returned.
package embedder

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"docqa/internal/ai"
	"docqa/internal/model"
)

const (
	defaultBatchSize = 10 // DashScope and similar APIs often limit batch size
	defaultWorkers   = 2
)

// Cache stores vectors keyed by model and text.
type Cache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Set(ctx context.Context, model, text string, vec []float32) error
}

type Embedder struct {
	provider  ai.Embedder
	cache     Cache
	batchSize int
	workers   int
}

type Option func(*Embedder)

func WithCache(c Cache) Option {
	return func(e *Embedder) { e.cache = c }
}

func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithWorkers sets how many batches of one ingestion may be in flight at once.
func WithWorkers(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.workers = n
		}
	}
}

func New(provider ai.Embedder, opts ...Option) *Embedder {
	e := &Embedder{
		provider:  provider,
		batchSize: defaultBatchSize,
		workers:   defaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedQuery embeds a single question. A zero vector is returned as is and
// retrieves nothing.
func (e *Embedder) EmbedQuery(ctx context.Context, modelName, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", model.ErrInvalidInput)
	}
	if vec, ok := e.cached(ctx, modelName, text); ok {
		return vec, nil
	}
	out, err := e.provider.EmbedBatch(ctx, ai.EmbeddingConfig{Model: modelName}, []string{text})
	if err != nil {
		return nil, unavailable(err)
	}
	if err := checkVectors(out, 1); err != nil {
		return nil, err
	}
	e.store(ctx, modelName, text, out[0])
	return out[0], nil
}

// EmbedChunks embeds texts in batches and returns vectors aligned with texts.
// Any batch failure aborts the whole call.
func (e *Embedder) EmbedChunks(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missing []int
	for i, t := range texts {
		if vec, ok := e.cached(ctx, modelName, t); ok {
			result[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for start := 0; start < len(missing); start += e.batchSize {
		end := start + e.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		idxs := missing[start:end]
		g.Go(func() error {
			batch := make([]string, len(idxs))
			for j, i := range idxs {
				batch[j] = texts[i]
			}
			vecs, err := e.provider.EmbedBatch(gctx, ai.EmbeddingConfig{Model: modelName}, batch)
			if err != nil {
				return unavailable(err)
			}
			if err := checkVectors(vecs, len(batch)); err != nil {
				return err
			}
			for j, v := range vecs {
				if isZero(v) {
					return fmt.Errorf("%w: zero vector for chunk %d", model.ErrEmbeddingUnavailable, idxs[j])
				}
			}
			for j, i := range idxs {
				result[i] = vecs[j]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, i := range missing {
		e.store(ctx, modelName, texts[i], result[i])
	}
	return result, nil
}

func (e *Embedder) cached(ctx context.Context, modelName, text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	vec, ok, err := e.cache.Get(ctx, modelName, text)
	if err != nil {
		log.Printf("embedding cache get failed: %v", err)
		return nil, false
	}
	return vec, ok && len(vec) > 0 && !isZero(vec)
}

func (e *Embedder) store(ctx context.Context, modelName, text string, vec []float32) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, modelName, text, vec); err != nil {
		log.Printf("embedding cache set failed: %v", err)
	}
}

func checkVectors(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: got %d vectors, want %d", model.ErrEmbeddingUnavailable, len(vecs), want)
	}
	dim := -1
	for _, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("%w: provider returned an empty vector", model.ErrEmbeddingUnavailable)
		}
		if dim >= 0 && len(v) != dim {
			return fmt.Errorf("%w: inconsistent vector dimensions %d and %d", model.ErrEmbeddingUnavailable, dim, len(v))
		}
		dim = len(v)
	}
	return nil
}

// isZero reports whether v has no nonzero component. Such a vector has no
// direction and can never be retrieved by cosine similarity.
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", model.ErrEmbeddingUnavailable, err)
}
