package ai

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter bounds the number of in-flight model calls and their start rate.
// The semaphore is FIFO, so a query waiting behind a burst of ingestion
// batches is admitted as soon as one batch finishes.
type Limiter struct {
	sem  *semaphore.Weighted
	rate *rate.Limiter
}

func NewLimiter(maxConcurrent int, requestsPerSecond float64) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = maxConcurrent
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
		rate: rate.NewLimiter(limit, burst),
	}
}

// Do runs fn once a concurrency slot and a rate token are available.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for model slot failed: %w", err)
	}
	defer l.sem.Release(1)
	if err := l.rate.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit failed: %w", err)
	}
	return fn(ctx)
}

type limitedCompleter struct {
	next    Completer
	limiter *Limiter
}

// LimitCompleter wraps c so that every call goes through l.
func LimitCompleter(c Completer, l *Limiter) Completer {
	return &limitedCompleter{next: c, limiter: l}
}

func (c *limitedCompleter) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	var out string
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.next.Complete(ctx, cfg, messages)
		return err
	})
	return out, err
}

type limitedEmbedder struct {
	next    Embedder
	limiter *Limiter
}

// LimitEmbedder wraps e so that every call goes through l.
func LimitEmbedder(e Embedder, l *Limiter) Embedder {
	return &limitedEmbedder{next: e, limiter: l}
}

func (e *limitedEmbedder) EmbedBatch(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.next.EmbedBatch(ctx, cfg, texts)
		return err
	})
	return out, err
}
