// Package notes is the note service: categorization, embedding and
// semantic search with a text fallback.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kshitijshah95/ai-assistant/internal/retrieval"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// Background job types handled by the ingest worker.
const (
	JobEmbedNote    = "embed_note"
	JobReindexNotes = "reindex_notes"
)

const defaultSearchLimit = 10

// EmbedPayload is the payload of an embed_note job.
type EmbedPayload struct {
	UserID string `json:"user_id"`
	NoteID string `json:"note_id"`
}

// Store defines the storage operations the Service needs.
// Implemented by storage.Store.
type Store interface {
	CreateNote(ctx context.Context, n storage.Note) (storage.Note, error)
	GetNote(ctx context.Context, userID, id string) (storage.Note, error)
	UpdateNote(ctx context.Context, userID, id string, u storage.NoteUpdate) (storage.Note, error)
	DeleteNote(ctx context.Context, userID, id string) error
	ListNotes(ctx context.Context, userID string, f storage.NoteFilter) ([]storage.Note, int, error)
	SearchNotesText(ctx context.Context, userID, query string, limit int) ([]storage.Note, error)
	NoteCategories(ctx context.Context, userID string) ([]storage.CategoryCount, error)
	NotesByIDs(ctx context.Context, userID string, ids []string) ([]storage.Note, error)
	NotesWithoutVectors(ctx context.Context, limit int) ([]storage.Note, error)
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// SearchResult is a note matched by Search. Text matches carry similarity 1.
type SearchResult struct {
	ID         string   `json:"id"`
	Title      string   `json:"title,omitempty"`
	Content    string   `json:"content"`
	Category   string   `json:"category,omitempty"`
	Tags       []string `json:"tags"`
	Similarity float32  `json:"similarity"`
}

type Service struct {
	store       Store
	retriever   *retrieval.Retriever
	categorizer *Categorizer
	logger      *slog.Logger
}

// New creates a note service. A nil retriever runs it text-only: keyword
// categorization and LIKE search.
func New(store Store, r *retrieval.Retriever, threshold float32) *Service {
	var vectors retrieval.VectorStore
	if r != nil {
		vectors = r.Store()
	}
	return &Service{
		store:       store,
		retriever:   r,
		categorizer: NewCategorizer(vectors, threshold),
		logger:      slog.Default().With("component", "notes"),
	}
}

// CreateInput holds the fields accepted when creating a note. An empty
// Category is filled in by the categorizer.
type CreateInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// Create stores a note. The content is embedded once and the vector used
// both to pick a category and for later semantic search; when embedding is
// unavailable an embed_note job is queued instead.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (storage.Note, error) {
	if strings.TrimSpace(in.Content) == "" {
		return storage.Note{}, fmt.Errorf("%w: content is required", storage.ErrInvalid)
	}
	text := embedText(in.Title, in.Content)
	vec := s.embed(ctx, text)

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = s.categorizer.Suggest(ctx, userID, in.Content, vec)
	}

	n, err := s.store.CreateNote(ctx, storage.Note{
		UserID:   userID,
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
		Category: category,
		Tags:     cleanTags(in.Tags),
	})
	if err != nil {
		return storage.Note{}, err
	}

	if len(vec) == 0 {
		s.queueEmbed(ctx, n)
		return n, nil
	}
	if err := s.storeVector(ctx, n, text, vec); err != nil {
		s.logger.Warn("storing note vector failed, queueing", "note_id", n.ID, "error", err)
		s.queueEmbed(ctx, n)
	}
	if err := s.categorizer.Remember(ctx, userID, category, vec); err != nil {
		s.logger.Warn("storing category embedding failed", "category", category, "error", err)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (storage.Note, error) {
	return s.store.GetNote(ctx, userID, id)
}

// Update applies a partial update and queues a re-embed when the title or
// content changed.
func (s *Service) Update(ctx context.Context, userID, id string, u storage.NoteUpdate) (storage.Note, error) {
	if u.Content != nil && strings.TrimSpace(*u.Content) == "" {
		return storage.Note{}, fmt.Errorf("%w: content cannot be empty", storage.ErrInvalid)
	}
	if u.Tags != nil {
		tags := cleanTags(*u.Tags)
		u.Tags = &tags
	}
	n, err := s.store.UpdateNote(ctx, userID, id, u)
	if err != nil {
		return storage.Note{}, err
	}
	if u.Content != nil || u.Title != nil {
		s.queueEmbed(ctx, n)
	}
	return n, nil
}

// Delete removes the note and its vector.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteNote(ctx, userID, id); err != nil {
		return err
	}
	if s.retriever != nil {
		if err := s.retriever.Forget(ctx, userID, retrieval.SourceNote, id); err != nil {
			s.logger.Warn("deleting note vector failed", "note_id", id, "error", err)
		}
	}
	return nil
}

// List returns a page of notes newest first and the unpaged total.
func (s *Service) List(ctx context.Context, userID string, f storage.NoteFilter) ([]storage.Note, int, error) {
	return s.store.ListNotes(ctx, userID, f)
}

func (s *Service) Categories(ctx context.Context, userID string) ([]storage.CategoryCount, error) {
	return s.store.NoteCategories(ctx, userID)
}

// Search ranks notes by similarity to query. When the query cannot be
// embedded, or nothing is indexed yet, it falls back to a case-insensitive
// text match.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", storage.ErrInvalid)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	if s.retriever != nil {
		results, err := s.semanticSearch(ctx, userID, query, limit)
		switch {
		case err == nil && len(results) > 0:
			return results, nil
		case err != nil && !errors.Is(err, retrieval.ErrNoEmbedding):
			s.logger.Warn("semantic search failed, using text search", "error", err)
		}
	}

	found, err := s.store.SearchNotesText(ctx, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	results := make([]SearchResult, len(found))
	for i, n := range found {
		results[i] = toResult(n, 1)
	}
	return results, nil
}

func (s *Service) semanticSearch(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	hits, err := s.retriever.Retrieve(ctx, retrieval.Query{OwnerID: userID, SourceType: retrieval.SourceNote}, query, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.SourceID
	}
	found, err := s.store.NotesByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]storage.Note, len(found))
	for _, n := range found {
		byID[n.ID] = n
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if n, ok := byID[h.SourceID]; ok {
			results = append(results, toResult(n, h.Score))
		}
	}
	return results, nil
}

// Index embeds one note and stores its vector. It is the embed_note job
// handler.
func (s *Service) Index(ctx context.Context, userID, noteID string) error {
	if s.retriever == nil {
		return errors.New("no embedding backend configured")
	}
	n, err := s.store.GetNote(ctx, userID, noteID)
	if err != nil {
		return err
	}
	text := embedText(n.Title, n.Content)
	vec, err := s.retriever.Embedder().Embed(ctx, text)
	if err != nil {
		return err
	}
	if err := s.storeVector(ctx, n, text, vec); err != nil {
		return err
	}
	return s.categorizer.Remember(ctx, n.UserID, n.Category, vec)
}

// IndexMissing embeds up to limit notes that have no vector yet, in
// parallel, and returns how many were indexed. It is the reindex_notes job
// handler.
func (s *Service) IndexMissing(ctx context.Context, limit int) (int, error) {
	if s.retriever == nil {
		return 0, errors.New("no embedding backend configured")
	}
	pending, err := s.store.NotesWithoutVectors(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing unindexed notes: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, n := range pending {
		texts[i] = embedText(n.Title, n.Content)
	}
	vecs, err := s.retriever.Embedder().EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	records := make([]retrieval.Record, 0, len(pending))
	for i, n := range pending {
		if len(vecs[i]) == 0 {
			continue
		}
		records = append(records, noteRecord(n, texts[i], vecs[i]))
	}
	if err := s.retriever.Store().Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("storing note vectors: %w", err)
	}
	return len(records), nil
}

// IndexStatus reports how many of a user's notes have a vector.
type IndexStatus struct {
	Notes   int  `json:"notes"`
	Indexed int  `json:"indexed"`
	Enabled bool `json:"enabled"`
}

func (s *Service) IndexStatus(ctx context.Context, userID string) (IndexStatus, error) {
	_, total, err := s.store.ListNotes(ctx, userID, storage.NoteFilter{Limit: 1})
	if err != nil {
		return IndexStatus{}, err
	}
	st := IndexStatus{Notes: total, Enabled: s.retriever != nil}
	if !st.Enabled {
		return st, nil
	}
	st.Indexed, err = s.retriever.Store().Count(ctx, retrieval.Query{OwnerID: userID, SourceType: retrieval.SourceNote})
	if err != nil {
		return IndexStatus{}, fmt.Errorf("counting note vectors: %w", err)
	}
	return st, nil
}

// QueueReindex schedules a sweep over notes lacking vectors.
func (s *Service) QueueReindex(ctx context.Context) error {
	return s.store.EnqueueJob(ctx, storage.Job{Type: JobReindexNotes})
}

func (s *Service) embed(ctx context.Context, text string) []float32 {
	if s.retriever == nil {
		return nil
	}
	return s.retriever.Embedder().EmbedOrEmpty(ctx, text)
}

func (s *Service) storeVector(ctx context.Context, n storage.Note, text string, vec []float32) error {
	return s.retriever.Store().Upsert(ctx, []retrieval.Record{noteRecord(n, text, vec)})
}

func (s *Service) queueEmbed(ctx context.Context, n storage.Note) {
	if s.retriever == nil {
		return
	}
	payload, err := json.Marshal(EmbedPayload{UserID: n.UserID, NoteID: n.ID})
	if err != nil {
		return
	}
	if err := s.store.EnqueueJob(ctx, storage.Job{Type: JobEmbedNote, PayloadJSON: string(payload)}); err != nil {
		s.logger.Warn("queueing embed job failed", "note_id", n.ID, "error", err)
	}
}

func noteRecord(n storage.Note, text string, vec []float32) retrieval.Record {
	return retrieval.Record{
		OwnerID:    n.UserID,
		SourceID:   n.ID,
		SourceType: retrieval.SourceNote,
		Label:      n.Title,
		TextChunk:  text,
		Embedding:  vec,
	}
}

func embedText(title, content string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return content
	}
	return title + "\n\n" + content
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func toResult(n storage.Note, score float32) SearchResult {
	return SearchResult{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		Category:   n.Category,
		Tags:       n.Tags,
		Similarity: score,
	}
}
