package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const goalColumns = `id, user_id, title, description, status, target_date, created_at, updated_at`

func (s *Store) CreateGoal(ctx context.Context, g Goal) (Goal, error) {
	if g.ID == "" {
		g.ID = newID()
	}
	if g.Status == "" {
		g.Status = "active"
	}
	now := s.stamp()
	g.CreatedAt, g.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, nullString(g.Description), g.Status,
		formatNullTime(g.TargetDate), formatTime(now), formatTime(now),
	)
	if err != nil {
		return Goal{}, fmt.Errorf("inserting goal: %w", err)
	}
	return g, nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id string) (Goal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return Goal{}, notFound("goal", id)
	}
	return g, err
}

func (s *Store) UpdateGoal(ctx context.Context, userID, id string, u GoalUpdate) (Goal, error) {
	sets := []string{}
	args := []any{}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*u.Description))
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	if u.TargetDate.Set {
		sets = append(sets, "target_date = ?")
		args = append(args, formatNullTime(u.TargetDate.Ptr()))
	}
	if err := s.applyUpdate(ctx, "goals", "goal", userID, id, sets, args); err != nil {
		return Goal{}, err
	}
	return s.GetGoal(ctx, userID, id)
}

// DeleteGoal removes a goal. Its tasks survive with goal_id cleared.
func (s *Store) DeleteGoal(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "goal", id)
}

// ListGoals returns goals newest first, optionally filtered by status.
func (s *Store) ListGoals(ctx context.Context, userID, status string) ([]Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	goals := []Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func scanGoal(sc scanner) (Goal, error) {
	var g Goal
	var description, targetDate sql.NullString
	var createdAt, updatedAt string
	if err := sc.Scan(&g.ID, &g.UserID, &g.Title, &description, &g.Status, &targetDate, &createdAt, &updatedAt); err != nil {
		return Goal{}, err
	}
	g.Description = description.String
	var err error
	if g.TargetDate, err = parseNullTime(targetDate); err != nil {
		return Goal{}, fmt.Errorf("parsing target_date: %w", err)
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return Goal{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Goal{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return g, nil
}
