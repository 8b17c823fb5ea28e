package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetOrCreateUser returns the user with the given external id, creating it
// on first use.
func (s *Store) GetOrCreateUser(ctx context.Context, externalID, name string) (User, error) {
	now := formatTime(s.stamp())
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, external_id, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		newID(), externalID, name, now,
	); err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}

	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, name, created_at FROM users WHERE external_id = ?`, externalID,
	).Scan(&u.ID, &u.ExternalID, &u.Name, &createdAt)
	if err != nil {
		return User{}, fmt.Errorf("loading user: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return u, nil
}

// --- Conversations ---

func (s *Store) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	now := s.stamp()
	c := Conversation{
		ID:        newID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, formatTime(now), formatTime(now),
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("inserting conversation: %w", err)
	}
	return c, nil
}

// GetConversation returns the conversation with all messages in ascending
// creation order.
func (s *Store) GetConversation(ctx context.Context, userID, id string) (Conversation, error) {
	var c Conversation
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at FROM conversations
		WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, notFound("conversation", id)
	}
	if err != nil {
		return Conversation{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Conversation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Conversation{}, fmt.Errorf("parsing updated_at: %w", err)
	}

	c.Messages, err = s.ListMessages(ctx, id, 0)
	if err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// ListConversations returns the user's conversations newest first, each
// carrying only its most recent message.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at FROM conversations
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID,
	)
	if err != nil {
		return nil, err
	}

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The single connection is free again; fetch last messages one by one.
	for i := range convs {
		last, err := s.lastMessage(ctx, convs[i].ID)
		if err != nil {
			return nil, err
		}
		convs[i].Messages = last
	}
	return convs, nil
}

func (s *Store) lastMessage(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, metadata, created_at FROM messages
		WHERE conversation_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *Store) UpdateConversationTitle(ctx context.Context, userID, id, title string) (Conversation, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		title, formatTime(s.stamp()), id, userID,
	)
	if err != nil {
		return Conversation{}, err
	}
	if err := rowsAffected(res, "conversation", id); err != nil {
		return Conversation{}, err
	}
	return s.GetConversation(ctx, userID, id)
}

// DeleteConversation removes a conversation and, through the foreign key,
// all of its messages.
func (s *Store) DeleteConversation(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "conversation", id)
}

// --- Messages ---

// AddMessage appends a message and bumps the conversation's updated_at.
func (s *Store) AddMessage(ctx context.Context, conversationID, role, content string, metadata map[string]any) (Message, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return Message{}, fmt.Errorf("encoding metadata: %w", err)
	}
	now := s.stamp()
	m := Message{
		ID:             newID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, formatTime(now), conversationID)
	if err != nil {
		return Message{}, err
	}
	if err := rowsAffected(res, "conversation", conversationID); err != nil {
		return Message{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, string(meta), formatTime(now),
	); err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ListMessages returns messages oldest first. limit <= 0 returns all; a
// positive limit keeps the most recent limit messages.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, metadata, created_at FROM messages
		WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`
	args := []any{conversationID}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT id, conversation_id, role, content, metadata, created_at, rowid AS rid FROM messages
			WHERE conversation_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
		) ORDER BY created_at ASC, rid ASC`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if limit > 0 {
		return scanMessagesWithRowID(rows)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	msgs := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanMessagesWithRowID(rows *sql.Rows) ([]Message, error) {
	msgs := []Message{}
	for rows.Next() {
		var m Message
		var meta, createdAt string
		var rid int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &meta, &createdAt, &rid); err != nil {
			return nil, err
		}
		if err := fillMessage(&m, meta, createdAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanMessage(sc scanner) (Message, error) {
	var m Message
	var meta, createdAt string
	if err := sc.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &meta, &createdAt); err != nil {
		return Message{}, err
	}
	if err := fillMessage(&m, meta, createdAt); err != nil {
		return Message{}, err
	}
	return m, nil
}

func fillMessage(m *Message, meta, createdAt string) error {
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
			return fmt.Errorf("decoding metadata: %w", err)
		}
	}
	return nil
}
