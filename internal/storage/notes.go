package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

const noteColumns = `id, user_id, title, content, category, tags, created_at, updated_at`

func (s *Store) CreateNote(ctx context.Context, n Note) (Note, error) {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	tags, err := json.Marshal(n.Tags)
	if err != nil {
		return Note{}, fmt.Errorf("encoding tags: %w", err)
	}
	now := s.stamp()
	n.CreatedAt, n.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, nullString(n.Title), n.Content, nullString(n.Category), string(tags),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return Note{}, fmt.Errorf("inserting note: %w", err)
	}
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, userID, id string) (Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return Note{}, notFound("note", id)
	}
	return n, err
}

// UpdateNote applies the non-nil fields of u.
func (s *Store) UpdateNote(ctx context.Context, userID, id string, u NoteUpdate) (Note, error) {
	sets := []string{}
	args := []any{}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, nullString(*u.Title))
	}
	if u.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *u.Content)
	}
	if u.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, nullString(*u.Category))
	}
	if u.Tags != nil {
		tags := *u.Tags
		if tags == nil {
			tags = []string{}
		}
		b, err := json.Marshal(tags)
		if err != nil {
			return Note{}, fmt.Errorf("encoding tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(b))
	}
	if err := s.applyUpdate(ctx, "notes", "note", userID, id, sets, args); err != nil {
		return Note{}, err
	}
	return s.GetNote(ctx, userID, id)
}

func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "note", id)
}

// ListNotes returns notes newest first along with the unpaged total. Tag
// filtering matches notes carrying any of the given tags.
func (s *Store) ListNotes(ctx context.Context, userID string, f NoteFilter) ([]Note, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if len(f.Tags) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value IN (`+placeholders(len(f.Tags))+`))`)
		for _, t := range f.Tags {
			args = append(args, t)
		}
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notes: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE `+cond+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	notes, err := scanNotes(rows)
	return notes, total, err
}

// SearchNotesText matches query case-insensitively against title, content
// and category.
func (s *Store) SearchNotesText(ctx context.Context, userID, query string, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE user_id = ? AND (
			lower(coalesce(title, '')) LIKE ? ESCAPE '\' OR
			lower(content) LIKE ? ESCAPE '\' OR
			lower(coalesce(category, '')) LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// NoteCategories returns each category in use with its note count, most
// used first.
func (s *Store) NoteCategories(ctx context.Context, userID string) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM notes
		WHERE user_id = ? AND category IS NOT NULL AND category != ''
		GROUP BY category ORDER BY COUNT(*) DESC, category ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// NotesByIDs returns the user's notes among ids, in no particular order.
func (s *Store) NotesByIDs(ctx context.Context, userID string, ids []string) ([]Note, error) {
	if len(ids) == 0 {
		return []Note{}, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// NotesWithoutVectors returns notes (across all users) that have no stored
// embedding yet, oldest first.
func (s *Store) NotesWithoutVectors(ctx context.Context, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM notes n
		WHERE NOT EXISTS (
			SELECT 1 FROM embeddings e
			WHERE e.owner_id = n.user_id AND e.source_type = 'note' AND e.source_id = n.id)
		ORDER BY created_at ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	notes := []Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func scanNote(sc scanner) (Note, error) {
	var n Note
	var title, category sql.NullString
	var tags, createdAt, updatedAt string
	if err := sc.Scan(&n.ID, &n.UserID, &title, &n.Content, &category, &tags, &createdAt, &updatedAt); err != nil {
		return Note{}, err
	}
	n.Title = title.String
	n.Category = category.String
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	var err error
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return Note{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Note{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return n, nil
}

// applyUpdate runs a partial UPDATE on an owner-scoped table. An empty set
// list still verifies the row exists and bumps updated_at.
func (s *Store) applyUpdate(ctx context.Context, table, entity, userID, id string, sets []string, args []any) error {
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(s.stamp()), id, userID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating %s: %w", entity, err)
	}
	return rowsAffected(res, entity, id)
}
