package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Backend produces an embedding for one text. llm.Embedder implementations
// satisfy it.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder wraps a Backend with batching and a degrade-to-empty mode.
type Embedder struct {
	backend Backend
	logger  *slog.Logger
}

// NewEmbedder creates an Embedder over the given backend. A nil backend
// makes every call fail (or degrade, via EmbedOrEmpty).
func NewEmbedder(b Backend) *Embedder {
	return &Embedder{backend: b, logger: slog.Default()}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.backend == nil {
		return nil, fmt.Errorf("embedding text: no embedding backend configured")
	}
	vec, err := e.backend.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedOrEmpty returns nil instead of an error when embedding fails, so
// callers can fall back to non-semantic behaviour.
func (e *Embedder) EmbedOrEmpty(ctx context.Context, text string) []float32 {
	vec, err := e.Embed(ctx, text)
	if err != nil {
		e.log().Warn("embedding unavailable", "error", err)
		return nil
	}
	return vec
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to stay under provider rate limits.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Embedder) log() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}
