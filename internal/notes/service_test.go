package notes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kshitijshah95/ai-assistant/internal/retrieval"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// fakeBackend embeds any text mentioning "alpha" as one axis and
// everything else as another, so similarity is either 1 or 0.
type fakeBackend struct {
	mu   sync.Mutex
	fail bool
}

func (f *fakeBackend) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("backend down")
	}
	if strings.Contains(strings.ToLower(text), "alpha") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 1, 0}, nil
}

func (f *fakeBackend) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

type fixture struct {
	svc     *Service
	store   *storage.Store
	vectors *retrieval.SQLiteStore
	backend *fakeBackend
	userID  string
}

func setup(t *testing.T, semantic bool) fixture {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	u, err := store.GetOrCreateUser(context.Background(), "tester", "Tester")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	f := fixture{store: store, userID: u.ID, backend: &fakeBackend{}}
	var r *retrieval.Retriever
	if semantic {
		f.vectors = retrieval.NewSQLiteStore(store.DB())
		r = retrieval.NewRetriever(retrieval.NewEmbedder(f.backend), f.vectors)
	}
	f.svc = New(store, r, DefaultThreshold)
	return f
}

func (f fixture) vectorCount(t *testing.T, sourceType string) int {
	t.Helper()
	n, err := f.vectors.Count(context.Background(), retrieval.Query{OwnerID: f.userID, SourceType: sourceType})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestSuggestCategory(t *testing.T) {
	tests := []struct {
		content, want string
	}{
		{"Call the doctor about my knee", "Health"},
		{"Team meeting to review the budget", "Work"},
		{"Ideas for the weekend", "Personal"},
		{"Read the new Go BOOK", "Learning"},
		{"Random musings", "General"},
	}
	for _, tt := range tests {
		if got := SuggestCategory(tt.content); got != tt.want {
			t.Errorf("SuggestCategory(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestCreate_TextOnly(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "Book a doctor visit", Tags: []string{" health ", "health", ""}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.Category != "Health" {
		t.Errorf("Category = %q, want Health", n.Category)
	}
	if len(n.Tags) != 1 || n.Tags[0] != "health" {
		t.Errorf("Tags = %v", n.Tags)
	}

	explicit, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "doctor", Category: "Errands"})
	if err != nil || explicit.Category != "Errands" {
		t.Errorf("explicit category = %q, %v", explicit.Category, err)
	}

	if _, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "   "}); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("empty content err = %v", err)
	}

	results, err := f.svc.Search(ctx, f.userID, "DOCTOR", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].Similarity != 1 {
		t.Errorf("Search = %+v", results)
	}
}

func TestCreate_ReusesSimilarCategory(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "alpha launch checklist", Category: "Projects"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Category != "Projects" {
		t.Fatalf("Category = %q", first.Category)
	}
	if got := f.vectorCount(t, retrieval.SourceCategory); got != 1 {
		t.Errorf("category vectors = %d, want 1", got)
	}

	second, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "alpha retro notes, see doctor"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.Category != "Projects" {
		t.Errorf("similar note category = %q, want Projects", second.Category)
	}

	third, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "see the doctor"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if third.Category != "Health" {
		t.Errorf("dissimilar note category = %q, want Health", third.Category)
	}

	if got := f.vectorCount(t, retrieval.SourceNote); got != 3 {
		t.Errorf("note vectors = %d, want 3", got)
	}
	if got := f.vectorCount(t, retrieval.SourceCategory); got != 2 {
		t.Errorf("category vectors = %d, want 2", got)
	}
}

func TestSearch_Semantic(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	for _, c := range []string{"alpha one", "beta two", "alpha three"} {
		if _, err := f.svc.Create(ctx, f.userID, CreateInput{Content: c}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	results, err := f.svc.Search(ctx, f.userID, "alpha", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if !strings.HasPrefix(r.Content, "alpha") || r.Similarity < 0.99 {
			t.Errorf("result %+v, want an alpha note with similarity 1", r)
		}
	}
}

func TestSearch_FallsBackWhenEmbeddingFails(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "alpha plan"}); err != nil {
		t.Fatal(err)
	}
	f.backend.setFail(true)

	results, err := f.svc.Search(ctx, f.userID, "plan", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Similarity != 1 {
		t.Errorf("Search = %+v, want one text match", results)
	}
}

func TestEmbeddingFailureQueuesJob(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	f.backend.setFail(true)

	n, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "quarterly tax savings"})
	if err != nil {
		t.Fatalf("Create should not fail when embedding does: %v", err)
	}
	if n.Category != "Finance" {
		t.Errorf("Category = %q, want keyword fallback Finance", n.Category)
	}
	if _, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "another"}); err != nil {
		t.Fatal(err)
	}
	pending, err := f.store.PendingJobCount(ctx, JobEmbedNote)
	if err != nil {
		t.Fatalf("PendingJobCount: %v", err)
	}
	if pending != 2 {
		t.Errorf("pending embed jobs = %d, want 2", pending)
	}
	if got := f.vectorCount(t, retrieval.SourceNote); got != 0 {
		t.Errorf("note vectors = %d, want 0", got)
	}

	f.backend.setFail(false)
	if err := f.svc.Index(ctx, f.userID, n.ID); err != nil {
		t.Fatalf("Index: %v", err)
	}
	indexed, err := f.svc.IndexMissing(ctx, 10)
	if err != nil {
		t.Fatalf("IndexMissing: %v", err)
	}
	if indexed != 1 {
		t.Errorf("IndexMissing = %d, want 1", indexed)
	}
	if got := f.vectorCount(t, retrieval.SourceNote); got != 2 {
		t.Errorf("note vectors = %d, want 2", got)
	}
}

func TestUpdateQueuesReembedAndDeleteDropsVector(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "alpha"})
	if err != nil {
		t.Fatal(err)
	}

	tags := []string{"x"}
	if _, err := f.svc.Update(ctx, f.userID, n.ID, storage.NoteUpdate{Tags: &tags}); err != nil {
		t.Fatalf("Update tags: %v", err)
	}
	if c, _ := f.store.PendingJobCount(ctx, JobEmbedNote); c != 0 {
		t.Errorf("tag-only update queued %d jobs", c)
	}
	content := "alpha revised"
	if _, err := f.svc.Update(ctx, f.userID, n.ID, storage.NoteUpdate{Content: &content}); err != nil {
		t.Fatalf("Update content: %v", err)
	}
	if c, _ := f.store.PendingJobCount(ctx, JobEmbedNote); c != 1 {
		t.Errorf("content update queued %d jobs, want 1", c)
	}

	if err := f.svc.Delete(ctx, f.userID, n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := f.vectorCount(t, retrieval.SourceNote); got != 0 {
		t.Errorf("note vectors after delete = %d", got)
	}
	if err := f.svc.Delete(ctx, f.userID, n.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestIndexStatus(t *testing.T) {
	ctx := context.Background()

	plain := setup(t, false)
	plain.svc.Create(ctx, plain.userID, CreateInput{Content: "one"})
	plain.svc.Create(ctx, plain.userID, CreateInput{Content: "two"})
	st, err := plain.svc.IndexStatus(ctx, plain.userID)
	if err != nil {
		t.Fatalf("IndexStatus: %v", err)
	}
	if st != (IndexStatus{Notes: 2}) {
		t.Errorf("text-only status = %+v", st)
	}

	f := setup(t, true)
	f.backend.setFail(true)
	if _, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "alpha draft"}); err != nil {
		t.Fatal(err)
	}
	f.backend.setFail(false)
	if _, err := f.svc.Create(ctx, f.userID, CreateInput{Content: "alpha final"}); err != nil {
		t.Fatal(err)
	}
	st, err = f.svc.IndexStatus(ctx, f.userID)
	if err != nil {
		t.Fatalf("IndexStatus: %v", err)
	}
	if st != (IndexStatus{Notes: 2, Indexed: 1, Enabled: true}) {
		t.Errorf("semantic status = %+v", st)
	}
}
