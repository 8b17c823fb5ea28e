package retrieval

import (
	"context"
	"time"
)

// Source types stored in the embeddings table.
const (
	SourceNote     = "note"
	SourceCategory = "category"
)

// VectorStore is the interface for vector storage and similarity search.
// The only implementation is SQLiteStore (brute-force cosine similarity);
// vectors are partitioned by owner and source type.
type VectorStore interface {
	// Upsert inserts records, replacing any existing record with the same
	// (owner, source type, source id).
	Upsert(ctx context.Context, records []Record) error

	// Search returns the top-K records in q's partition most similar to vector,
	// highest score first.
	Search(ctx context.Context, q Query, vector []float32, topK int) ([]ScoredRecord, error)

	// Delete removes the vector for a source. Deleting a missing vector is not an error.
	Delete(ctx context.Context, ownerID, sourceType, sourceID string) error

	// Count returns the number of vectors in q's partition.
	Count(ctx context.Context, q Query) (int, error)
}

// Query selects the partition searched by VectorStore.Search. An empty
// SourceType searches every source type of the owner.
type Query struct {
	OwnerID    string
	SourceType string
}

// Record represents a row in the vector store.
type Record struct {
	ID         string
	OwnerID    string
	SourceID   string
	SourceType string
	Label      string
	TextChunk  string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
