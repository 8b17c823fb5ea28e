package retrieval

import (
	"context"
	"errors"
	"testing"
)

func TestRetriever_RetrieveAndForget(t *testing.T) {
	vectors := map[string][]float32{
		"groceries": {1, 0},
		"milk":      {0.9, 0.1},
		"gym":       {0, 1},
	}
	backend := &mockBackend{
		embedFn: func(_ context.Context, text string) ([]float32, error) {
			return vectors[text], nil
		},
	}
	store := NewSQLiteStore(openTestDB(t))
	r := NewRetriever(NewEmbedder(backend), store)
	ctx := context.Background()

	for id, text := range map[string]string{"n1": "groceries", "n2": "gym"} {
		rec := Record{OwnerID: "u1", SourceID: id, SourceType: SourceNote, TextChunk: text, Embedding: vectors[text]}
		if err := store.Upsert(ctx, []Record{rec}); err != nil {
			t.Fatalf("Upsert %s: %v", id, err)
		}
	}

	results, err := r.Retrieve(ctx, Query{OwnerID: "u1", SourceType: SourceNote}, "milk", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 || results[0].SourceID != "n1" {
		t.Errorf("results = %+v, want n1", results)
	}

	if err := r.Forget(ctx, "u1", SourceNote, "n1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	results, err = r.Retrieve(ctx, Query{OwnerID: "u1", SourceType: SourceNote}, "milk", 1)
	if err != nil {
		t.Fatalf("Retrieve after Forget: %v", err)
	}
	if len(results) != 1 || results[0].SourceID != "n2" {
		t.Errorf("results after forget = %+v, want n2", results)
	}
}

func TestRetriever_EmbeddingFailure(t *testing.T) {
	backend := &mockBackend{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("no api key")
		},
	}
	r := NewRetriever(NewEmbedder(backend), NewSQLiteStore(openTestDB(t)))

	_, err := r.Retrieve(context.Background(), Query{OwnerID: "u1"}, "anything", 5)
	if !errors.Is(err, ErrNoEmbedding) {
		t.Errorf("err = %v, want ErrNoEmbedding", err)
	}
}
