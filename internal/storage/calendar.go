package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const eventColumns = `id, user_id, title, description, start_time, end_time, recurrence_rule, metadata, created_at, updated_at`

func (s *Store) CreateEvent(ctx context.Context, e Event) (Event, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.EndTime.Before(e.StartTime) {
		return Event{}, fmt.Errorf("%w: end time must not be before start time", ErrInvalid)
	}
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return Event{}, err
	}
	now := s.stamp()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calendar_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, nullString(e.Description), formatTime(e.StartTime), formatTime(e.EndTime),
		nullString(e.RecurrenceRule), meta, formatTime(now), formatTime(now),
	)
	if err != nil {
		return Event{}, fmt.Errorf("inserting event: %w", err)
	}
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, userID, id string) (Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return Event{}, notFound("event", id)
	}
	return e, err
}

// UpdateEvent applies a partial update. The resulting end time must not
// precede the resulting start time.
func (s *Store) UpdateEvent(ctx context.Context, userID, id string, u EventUpdate) (Event, error) {
	if u.StartTime != nil || u.EndTime != nil {
		cur, err := s.GetEvent(ctx, userID, id)
		if err != nil {
			return Event{}, err
		}
		start, end := cur.StartTime, cur.EndTime
		if u.StartTime != nil {
			start = *u.StartTime
		}
		if u.EndTime != nil {
			end = *u.EndTime
		}
		if end.Before(start) {
			return Event{}, fmt.Errorf("%w: end time must not be before start time", ErrInvalid)
		}
	}

	sets := []string{}
	args := []any{}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description.Set {
		sets = append(sets, "description = ?")
		args = append(args, nullString(u.Description.Value))
	}
	if u.StartTime != nil {
		sets = append(sets, "start_time = ?")
		args = append(args, formatTime(*u.StartTime))
	}
	if u.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, formatTime(*u.EndTime))
	}
	if u.RecurrenceRule.Set {
		sets = append(sets, "recurrence_rule = ?")
		args = append(args, nullString(u.RecurrenceRule.Value))
	}
	if err := s.applyUpdate(ctx, "calendar_events", "event", userID, id, sets, args); err != nil {
		return Event{}, err
	}
	return s.GetEvent(ctx, userID, id)
}

func (s *Store) DeleteEvent(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "event", id)
}

// EventsInRange returns events overlapping [start, end), ordered by start.
func (s *Store) EventsInRange(ctx context.Context, userID string, start, end time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM calendar_events
		WHERE user_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time ASC, rowid ASC`,
		userID, formatTime(end), formatTime(start),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// UpcomingEvents returns up to limit events starting at or after now.
func (s *Store) UpcomingEvents(ctx context.Context, userID string, now time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM calendar_events
		WHERE user_id = ? AND start_time >= ?
		ORDER BY start_time ASC, rowid ASC LIMIT ?`,
		userID, formatTime(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(sc scanner) (Event, error) {
	var e Event
	var description, rule sql.NullString
	var start, end, meta, createdAt, updatedAt string
	if err := sc.Scan(&e.ID, &e.UserID, &e.Title, &description, &start, &end, &rule, &meta, &createdAt, &updatedAt); err != nil {
		return Event{}, err
	}
	e.Description = description.String
	e.RecurrenceRule = rule.String
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return Event{}, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	var err error
	if e.StartTime, err = parseTime(start); err != nil {
		return Event{}, fmt.Errorf("parsing start_time: %w", err)
	}
	if e.EndTime, err = parseTime(end); err != nil {
		return Event{}, fmt.Errorf("parsing end_time: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return Event{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Event{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return e, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	return string(b), nil
}
