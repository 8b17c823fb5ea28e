package notes

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kshitijshah95/ai-assistant/internal/retrieval"
)

// DefaultCategory is assigned when no keyword matches.
const DefaultCategory = "General"

// DefaultThreshold is the similarity a stored category embedding must
// exceed to be reused.
const DefaultThreshold = 0.8

// categoryType is the note kind category embeddings are keyed by.
const categoryType = "note"

// categoryKeywords is checked in order; the first category with a keyword
// contained in the content wins.
var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{"Work", []string{"meeting", "project", "deadline", "client", "presentation", "report", "office"}},
	{"Personal", []string{"family", "friend", "birthday", "vacation", "hobby", "weekend"}},
	{"Health", []string{"workout", "exercise", "diet", "doctor", "medicine", "sleep", "meditation", "gym"}},
	{"Finance", []string{"budget", "expense", "investment", "salary", "tax", "savings", "money"}},
	{"Learning", []string{"course", "book", "study", "learn", "tutorial", "skill", "education"}},
	{"Ideas", []string{"idea", "thought", "concept", "brainstorm", "plan", "strategy"}},
}

// SuggestCategory picks a category from the keyword table, or "General".
func SuggestCategory(content string) string {
	lower := strings.ToLower(content)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.name
			}
		}
	}
	return DefaultCategory
}

// Categorizer assigns categories to notes. A note whose embedding is close
// enough to an existing category embedding of the same owner reuses that
// category; otherwise the keyword table decides.
type Categorizer struct {
	vectors   retrieval.VectorStore
	threshold float32
	logger    *slog.Logger
}

// NewCategorizer creates a Categorizer. A nil vectors store disables the
// semantic tier; threshold <= 0 selects DefaultThreshold.
func NewCategorizer(vectors retrieval.VectorStore, threshold float32) *Categorizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Categorizer{vectors: vectors, threshold: threshold, logger: slog.Default()}
}

// Suggest returns the category for content. vec is the content's
// embedding and may be empty, which skips the semantic tier.
func (c *Categorizer) Suggest(ctx context.Context, ownerID, content string, vec []float32) string {
	if c.vectors != nil && len(vec) > 0 {
		hits, err := c.vectors.Search(ctx, retrieval.Query{OwnerID: ownerID, SourceType: retrieval.SourceCategory}, vec, 1)
		if err != nil {
			c.logger.Warn("category search failed", "error", err)
		} else if len(hits) > 0 && hits[0].Score > c.threshold && hits[0].Label != "" {
			return hits[0].Label
		}
	}
	return SuggestCategory(content)
}

// Remember stores vec as the embedding of category for ownerID, replacing
// the previous one, so later notes can match it.
func (c *Categorizer) Remember(ctx context.Context, ownerID, category string, vec []float32) error {
	if c.vectors == nil || len(vec) == 0 || category == "" {
		return nil
	}
	return c.vectors.Upsert(ctx, []retrieval.Record{{
		OwnerID:    ownerID,
		SourceID:   categoryType + ":" + category,
		SourceType: retrieval.SourceCategory,
		Label:      category,
		TextChunk:  category,
		Embedding:  vec,
	}})
}
