package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const habitColumns = `id, user_id, name, frequency, schedule, created_at, updated_at`

func (s *Store) CreateHabit(ctx context.Context, h Habit) (Habit, error) {
	if h.ID == "" {
		h.ID = newID()
	}
	if h.Frequency == "" {
		h.Frequency = "daily"
	}
	now := s.stamp()
	h.CreatedAt, h.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Name, h.Frequency, nullRaw(h.Schedule), formatTime(now), formatTime(now),
	)
	if err != nil {
		return Habit{}, fmt.Errorf("inserting habit: %w", err)
	}
	return h, nil
}

func (s *Store) GetHabit(ctx context.Context, userID, id string) (Habit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return Habit{}, notFound("habit", id)
	}
	return h, err
}

func (s *Store) UpdateHabit(ctx context.Context, userID, id string, u HabitUpdate) (Habit, error) {
	sets := []string{}
	args := []any{}
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Frequency != nil {
		sets = append(sets, "frequency = ?")
		args = append(args, *u.Frequency)
	}
	if u.Schedule.Set {
		sets = append(sets, "schedule = ?")
		args = append(args, nullRaw(u.Schedule.Value))
	}
	if err := s.applyUpdate(ctx, "habits", "habit", userID, id, sets, args); err != nil {
		return Habit{}, err
	}
	return s.GetHabit(ctx, userID, id)
}

// DeleteHabit removes a habit and all of its logs.
func (s *Store) DeleteHabit(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "habit", id)
}

// ListHabits returns habits oldest first.
func (s *Store) ListHabits(ctx context.Context, userID string) ([]Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = ? ORDER BY created_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// UpsertHabitLog records the habit for the calendar date of l.LoggedDate.
// A second log for the same date overwrites completed and notes.
func (s *Store) UpsertHabitLog(ctx context.Context, l HabitLog) (HabitLog, error) {
	if l.ID == "" {
		l.ID = newID()
	}
	l.CreatedAt = s.stamp()
	date := formatDate(l.LoggedDate)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_logs (id, habit_id, logged_date, completed, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(habit_id, logged_date) DO UPDATE SET
			completed = excluded.completed,
			notes = excluded.notes`,
		l.ID, l.HabitID, date, l.Completed, nullString(l.Notes), formatTime(l.CreatedAt),
	)
	if err != nil {
		return HabitLog{}, fmt.Errorf("upserting habit log: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, habit_id, logged_date, completed, notes, created_at FROM habit_logs
		WHERE habit_id = ? AND logged_date = ?`, l.HabitID, date)
	return scanHabitLog(row)
}

// HabitLogs returns logs on or after since, newest date first. A zero since
// returns every log.
func (s *Store) HabitLogs(ctx context.Context, habitID string, since time.Time) ([]HabitLog, error) {
	query := `SELECT id, habit_id, logged_date, completed, notes, created_at FROM habit_logs WHERE habit_id = ?`
	args := []any{habitID}
	if !since.IsZero() {
		query += ` AND logged_date >= ?`
		args = append(args, formatDate(since))
	}
	query += ` ORDER BY logged_date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []HabitLog{}
	for rows.Next() {
		l, err := scanHabitLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanHabit(sc scanner) (Habit, error) {
	var h Habit
	var schedule sql.NullString
	var createdAt, updatedAt string
	if err := sc.Scan(&h.ID, &h.UserID, &h.Name, &h.Frequency, &schedule, &createdAt, &updatedAt); err != nil {
		return Habit{}, err
	}
	if schedule.Valid && schedule.String != "" {
		h.Schedule = json.RawMessage(schedule.String)
	}
	var err error
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return Habit{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Habit{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return h, nil
}

func scanHabitLog(sc scanner) (HabitLog, error) {
	var l HabitLog
	var date, createdAt string
	var notes sql.NullString
	if err := sc.Scan(&l.ID, &l.HabitID, &date, &l.Completed, &notes, &createdAt); err != nil {
		return HabitLog{}, err
	}
	l.Notes = notes.String
	var err error
	if l.LoggedDate, err = parseDate(date); err != nil {
		return HabitLog{}, fmt.Errorf("parsing logged_date: %w", err)
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return HabitLog{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return l, nil
}

func nullRaw(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 || string(raw) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
