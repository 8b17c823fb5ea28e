package retrieval

import (
	"context"
	"errors"
)

// ErrNoEmbedding is returned by Retrieve when the query could not be embedded.
var ErrNoEmbedding = errors.New("query embedding unavailable")

// Retriever combines embedding and vector search to find relevant records.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds text and returns the top-K most similar records in q's
// partition. It returns ErrNoEmbedding when the embedding backend fails so
// callers can fall back to text matching.
func (r *Retriever) Retrieve(ctx context.Context, q Query, text string, topK int) ([]ScoredRecord, error) {
	vec := r.embedder.EmbedOrEmpty(ctx, text)
	if len(vec) == 0 {
		return nil, ErrNoEmbedding
	}
	return r.store.Search(ctx, q, vec, topK)
}

// Forget removes the vector for a source.
func (r *Retriever) Forget(ctx context.Context, ownerID, sourceType, sourceID string) error {
	return r.store.Delete(ctx, ownerID, sourceType, sourceID)
}

// Embedder returns the underlying embedder.
func (r *Retriever) Embedder() *Embedder {
	return r.embedder
}

// Store returns the underlying vector store.
func (r *Retriever) Store() VectorStore {
	return r.store
}
