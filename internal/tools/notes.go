package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

type createNoteArgs struct {
	Title    string   `json:"title,omitempty" jsonschema_description:"Optional title for the note"`
	Content  string   `json:"content" jsonschema_description:"The content of the note"`
	Category string   `json:"category,omitempty" jsonschema_description:"Optional category, e.g. Work, Personal, Health or Ideas"`
	Tags     []string `json:"tags,omitempty" jsonschema_description:"Optional tags for the note"`
}

type searchNotesArgs struct {
	Query string `json:"query" jsonschema_description:"What to look for in the notes"`
	Limit int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=50" jsonschema_description:"Maximum number of results (default 5)"`
}

type listNotesArgs struct {
	Category string `json:"category,omitempty" jsonschema_description:"Only list notes in this category"`
	Limit    int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=100" jsonschema_description:"Maximum number of notes (default 10)"`
}

type updateNoteArgs struct {
	NoteID   string    `json:"noteId" jsonschema_description:"The ID of the note to update"`
	Title    *string   `json:"title,omitempty" jsonschema_description:"New title"`
	Content  *string   `json:"content,omitempty" jsonschema_description:"New content"`
	Category *string   `json:"category,omitempty" jsonschema_description:"New category"`
	Tags     *[]string `json:"tags,omitempty" jsonschema_description:"New tags, replacing the old ones"`
}

type noteIDArgs struct {
	NoteID string `json:"noteId" jsonschema_description:"The ID of the note"`
}

type noArgs struct{}

type noteRef struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
}

type noteMatch struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Category  string `json:"category,omitempty"`
	Relevance string `json:"relevance"`
}

type noteItem struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func noteTools() []Tool {
	return []Tool{
		define("create_note",
			"Create a new note. Use this when the user wants to save information, take a note, or remember something.",
			createNote),
		define("search_notes",
			"Search notes by meaning. Use this when the user wants to find notes about a topic.",
			searchNotes),
		define("list_notes",
			"List notes, optionally filtered by category. Use this when the user wants to see their notes.",
			listNotes),
		define("get_note_categories",
			"Get all note categories with counts. Use this when the user asks how their notes are organized.",
			noteCategories),
		define("update_note",
			"Update an existing note. Use this when the user wants to change a note.",
			updateNote),
		define("delete_note",
			"Delete a note. Use this when the user wants to remove a note.",
			deleteNote),
	}
}

func createNote(ctx context.Context, e env, a createNoteArgs) (Result, error) {
	n, err := e.Notes.Create(ctx, e.userID, notes.CreateInput{
		Title:    a.Title,
		Content:  a.Content,
		Category: a.Category,
		Tags:     a.Tags,
	})
	if err != nil {
		return Result{}, err
	}
	msg := "Note created successfully"
	if n.Category != "" {
		msg += fmt.Sprintf(" in category %q", n.Category)
	}
	return ok(msg, map[string]any{"note": noteRef{ID: n.ID, Title: n.Title, Category: n.Category}})
}

func searchNotes(ctx context.Context, e env, a searchNotesArgs) (Result, error) {
	limit := a.Limit
	if limit <= 0 {
		limit = 5
	}
	results, err := e.Notes.Search(ctx, e.userID, a.Query, limit)
	if err != nil {
		return Result{}, err
	}
	matches := make([]noteMatch, len(results))
	for i, r := range results {
		matches[i] = noteMatch{
			ID:        r.ID,
			Title:     r.Title,
			Content:   truncate(r.Content, 200),
			Category:  r.Category,
			Relevance: fmt.Sprintf("%d%%", int(math.Round(float64(r.Similarity)*100))),
		}
	}
	if len(matches) == 0 {
		return ok("No notes found matching your query.", map[string]any{"notes": matches})
	}
	return ok(fmt.Sprintf("Found %d related %s", len(matches), plural(len(matches), "note", "notes")),
		map[string]any{"notes": matches})
}

func listNotes(ctx context.Context, e env, a listNotesArgs) (Result, error) {
	limit := a.Limit
	if limit <= 0 {
		limit = 10
	}
	found, total, err := e.Notes.List(ctx, e.userID, storage.NoteFilter{Category: a.Category, Limit: limit})
	if err != nil {
		return Result{}, err
	}
	items := make([]noteItem, len(found))
	for i, n := range found {
		items[i] = noteItem{
			ID:        n.ID,
			Title:     n.Title,
			Content:   truncate(n.Content, 100),
			Category:  n.Category,
			CreatedAt: n.CreatedAt.Format(dateLayout),
		}
	}
	msg := fmt.Sprintf("Found %d %s", total, plural(total, "note", "notes"))
	if a.Category != "" {
		msg += fmt.Sprintf(" in %q", a.Category)
	}
	return ok(msg, map[string]any{"notes": items, "total": total})
}

func noteCategories(ctx context.Context, e env, _ noArgs) (Result, error) {
	cats, err := e.Notes.Categories(ctx, e.userID)
	if err != nil {
		return Result{}, err
	}
	if len(cats) == 0 {
		return ok("No categories yet. Notes are categorized automatically when created.",
			map[string]any{"categories": cats})
	}
	return ok(fmt.Sprintf("Found %d %s", len(cats), plural(len(cats), "category", "categories")),
		map[string]any{"categories": cats})
}

func updateNote(ctx context.Context, e env, a updateNoteArgs) (Result, error) {
	n, err := e.Notes.Update(ctx, e.userID, a.NoteID, storage.NoteUpdate{
		Title:    a.Title,
		Content:  a.Content,
		Category: a.Category,
		Tags:     a.Tags,
	})
	if err != nil {
		return Result{}, err
	}
	return ok("Note updated successfully", map[string]any{"note": noteRef{ID: n.ID, Title: n.Title, Category: n.Category}})
}

func deleteNote(ctx context.Context, e env, a noteIDArgs) (Result, error) {
	if err := e.Notes.Delete(ctx, e.userID, a.NoteID); err != nil {
		return Result{}, err
	}
	return ok("Note deleted successfully", nil)
}
