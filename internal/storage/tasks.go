package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const taskColumns = `id, user_id, goal_id, title, description, status, priority, due_date, completed_at, created_at, updated_at`

// Open tasks first by due date (undated last), then by priority, then newest.
const taskOrder = `ORDER BY due_date IS NULL, due_date ASC,
	CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
	created_at DESC, rowid DESC`

func (s *Store) CreateTask(ctx context.Context, t Task) (Task, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	now := s.stamp()
	t.CreatedAt, t.UpdatedAt = now, now
	var goalID sql.NullString
	if t.GoalID != nil {
		goalID = nullString(*t.GoalID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, goalID, t.Title, nullString(t.Description), t.Status, t.Priority,
		formatNullTime(t.DueDate), formatNullTime(t.CompletedAt), formatTime(now), formatTime(now),
	)
	if err != nil {
		return Task{}, fmt.Errorf("inserting task: %w", err)
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, userID, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return Task{}, notFound("task", id)
	}
	return t, err
}

// UpdateTask applies a partial update. Moving a task to completed stamps
// completed_at; moving it away from completed clears it.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, u TaskUpdate) (Task, error) {
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
		if *u.Status == "completed" {
			sets = append(sets, "completed_at = coalesce(completed_at, ?)")
			args = append(args, formatTime(s.stamp()))
		} else {
			sets = append(sets, "completed_at = NULL")
		}
	}
	if u.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *u.Priority)
	}
	if u.DueDate.Set {
		sets = append(sets, "due_date = ?")
		args = append(args, formatNullTime(u.DueDate.Ptr()))
	}
	if u.GoalID.Set {
		sets = append(sets, "goal_id = ?")
		if u.GoalID.Valid && u.GoalID.Value != "" {
			args = append(args, u.GoalID.Value)
		} else {
			args = append(args, nil)
		}
	}
	if err := s.applyUpdate(ctx, "tasks", "task", userID, id, sets, args); err != nil {
		return Task{}, err
	}
	return s.GetTask(ctx, userID, id)
}

func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "task", id)
}

// ListTasks returns a page of tasks matching f and the unpaged total.
func (s *Store) ListTasks(ctx context.Context, userID string, f TaskFilter) ([]Task, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, f.Priority)
	}
	if f.GoalID != "" {
		where = append(where, "goal_id = ?")
		args = append(args, f.GoalID)
	}
	if f.DueBefore != nil {
		where = append(where, "due_date IS NOT NULL AND due_date <= ?")
		args = append(args, formatTime(*f.DueBefore))
	}
	if f.DueAfter != nil {
		where = append(where, "due_date IS NOT NULL AND due_date >= ?")
		args = append(args, formatTime(*f.DueAfter))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting tasks: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+cond+` `+taskOrder+` LIMIT ? OFFSET ?`,
		append(args, limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tasks, err := scanTasks(rows)
	return tasks, total, err
}

// TasksDueBy returns open (pending or in progress) tasks due at or before end.
func (s *Store) TasksDueBy(ctx context.Context, userID string, end time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND status IN ('pending', 'in_progress')
			AND due_date IS NOT NULL AND due_date <= ?
		`+taskOrder, userID, formatTime(end),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// OverdueTasks returns tasks due before now that are neither completed nor
// cancelled.
func (s *Store) OverdueTasks(ctx context.Context, userID string, now time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND status NOT IN ('completed', 'cancelled')
			AND due_date IS NOT NULL AND due_date < ?
		`+taskOrder, userID, formatTime(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *Store) TaskStats(ctx context.Context, userID string, now time.Time) (TaskStats, error) {
	var st TaskStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'in_progress'), 0),
			COALESCE(SUM(status NOT IN ('completed', 'cancelled') AND due_date IS NOT NULL AND due_date < ?), 0)
		FROM tasks WHERE user_id = ?`, formatTime(now), userID,
	).Scan(&st.Total, &st.Completed, &st.Pending, &st.InProgress, &st.Overdue)
	if err != nil {
		return TaskStats{}, fmt.Errorf("computing task stats: %w", err)
	}
	return st, nil
}

// TaskStatusesForGoal returns the status of every task attached to a goal.
func (s *Store) TaskStatusesForGoal(ctx context.Context, goalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status FROM tasks WHERE goal_id = ?`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := []string{}
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(sc scanner) (Task, error) {
	var t Task
	var goalID, description, dueDate, completedAt sql.NullString
	var createdAt, updatedAt string
	if err := sc.Scan(&t.ID, &t.UserID, &goalID, &t.Title, &description, &t.Status, &t.Priority,
		&dueDate, &completedAt, &createdAt, &updatedAt); err != nil {
		return Task{}, err
	}
	if goalID.Valid {
		g := goalID.String
		t.GoalID = &g
	}
	t.Description = description.String
	var err error
	if t.DueDate, err = parseNullTime(dueDate); err != nil {
		return Task{}, fmt.Errorf("parsing due_date: %w", err)
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return Task{}, fmt.Errorf("parsing completed_at: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Task{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Task{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return t, nil
}
