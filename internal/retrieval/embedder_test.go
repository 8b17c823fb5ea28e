package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockBackend implements Backend for testing.
type mockBackend struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) * 0.001
	}
	return v
}

func TestEmbed_ReturnsDimension(t *testing.T) {
	mock := &mockBackend{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return makeVector(384), nil
		},
	}
	e := NewEmbedder(mock)

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 384 {
		t.Errorf("got %d dimensions, want 384", len(vec))
	}
}

func TestEmbed_BackendError(t *testing.T) {
	mock := &mockBackend{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("connection refused")
		},
	}
	e := NewEmbedder(mock)

	_, err := e.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEmbed_NilBackend(t *testing.T) {
	e := NewEmbedder(nil)

	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for nil backend")
	}
	if vec := e.EmbedOrEmpty(context.Background(), "hello"); vec != nil {
		t.Errorf("EmbedOrEmpty = %v, want nil", vec)
	}
}

func TestEmbedOrEmpty_DegradesOnError(t *testing.T) {
	mock := &mockBackend{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("rate limited")
		},
	}
	e := NewEmbedder(mock)

	if vec := e.EmbedOrEmpty(context.Background(), "hello"); vec != nil {
		t.Errorf("EmbedOrEmpty = %v, want nil", vec)
	}
}

func TestEmbedBatch_CountMatches(t *testing.T) {
	mock := &mockBackend{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return makeVector(384), nil
		},
	}
	e := NewEmbedder(mock)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Errorf("got %d vectors, want 3", len(vecs))
	}
}

func TestEmbedBatch_BackendError(t *testing.T) {
	mock := &mockBackend{
		embedFn: func(_ context.Context, text string) ([]float32, error) {
			if text == "b" {
				return nil, errors.New("embedding failed")
			}
			return makeVector(384), nil
		},
	}
	e := NewEmbedder(mock)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding failed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	mock := &mockBackend{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			t.Fatal("should not be called for empty input")
			return nil, nil
		},
	}
	e := NewEmbedder(mock)

	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v, want nil", vecs)
	}
}
