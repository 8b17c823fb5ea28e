// Package tasks is the task service: validation and date-relative queries
// over the task table.
package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// Task statuses and priorities.
var (
	Statuses   = []string{"pending", "in_progress", "completed", "cancelled"}
	Priorities = []string{"low", "medium", "high", "urgent"}
)

// Store defines the storage operations the Service needs.
// Implemented by storage.Store.
type Store interface {
	CreateTask(ctx context.Context, t storage.Task) (storage.Task, error)
	GetTask(ctx context.Context, userID, id string) (storage.Task, error)
	UpdateTask(ctx context.Context, userID, id string, u storage.TaskUpdate) (storage.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
	ListTasks(ctx context.Context, userID string, f storage.TaskFilter) ([]storage.Task, int, error)
	TasksDueBy(ctx context.Context, userID string, end time.Time) ([]storage.Task, error)
	OverdueTasks(ctx context.Context, userID string, now time.Time) ([]storage.Task, error)
	TaskStats(ctx context.Context, userID string, now time.Time) (storage.TaskStats, error)
	GetGoal(ctx context.Context, userID, id string) (storage.Goal, error)
}

type Service struct {
	store Store
	clock clock.Clock
}

func New(store Store) *Service {
	return &Service{store: store, clock: clock.Real{}}
}

// NewWithClock creates a Service with a custom clock (for testing).
func NewWithClock(store Store, c clock.Clock) *Service {
	return &Service{store: store, clock: c}
}

// CreateInput holds the fields accepted when creating a task. Empty Status
// and Priority take the defaults (pending, medium).
type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	GoalID      string     `json:"goalId"`
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (storage.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return storage.Task{}, fmt.Errorf("%w: title is required", storage.ErrInvalid)
	}
	if err := checkEnum("status", in.Status, Statuses); err != nil {
		return storage.Task{}, err
	}
	if err := checkEnum("priority", in.Priority, Priorities); err != nil {
		return storage.Task{}, err
	}

	t := storage.Task{
		UserID:      userID,
		Title:       title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
	if in.GoalID != "" {
		if _, err := s.store.GetGoal(ctx, userID, in.GoalID); err != nil {
			return storage.Task{}, err
		}
		goalID := in.GoalID
		t.GoalID = &goalID
	}
	if in.Status == "completed" {
		now := s.clock.Now()
		t.CompletedAt = &now
	}
	return s.store.CreateTask(ctx, t)
}

func (s *Service) Get(ctx context.Context, userID, id string) (storage.Task, error) {
	return s.store.GetTask(ctx, userID, id)
}

func (s *Service) Update(ctx context.Context, userID, id string, u storage.TaskUpdate) (storage.Task, error) {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return storage.Task{}, fmt.Errorf("%w: title cannot be empty", storage.ErrInvalid)
		}
		u.Title = &title
	}
	if u.Status != nil {
		if err := checkEnum("status", *u.Status, Statuses); err != nil {
			return storage.Task{}, err
		}
	}
	if u.Priority != nil {
		if err := checkEnum("priority", *u.Priority, Priorities); err != nil {
			return storage.Task{}, err
		}
	}
	if u.GoalID.Valid && u.GoalID.Value != "" {
		if _, err := s.store.GetGoal(ctx, userID, u.GoalID.Value); err != nil {
			return storage.Task{}, err
		}
	}
	return s.store.UpdateTask(ctx, userID, id, u)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteTask(ctx, userID, id)
}

// List returns a page of tasks and the unpaged total.
func (s *Service) List(ctx context.Context, userID string, f storage.TaskFilter) ([]storage.Task, int, error) {
	if err := checkEnum("status", f.Status, Statuses); err != nil {
		return nil, 0, err
	}
	if err := checkEnum("priority", f.Priority, Priorities); err != nil {
		return nil, 0, err
	}
	return s.store.ListTasks(ctx, userID, f)
}

// Complete marks a task completed.
func (s *Service) Complete(ctx context.Context, userID, id string) (storage.Task, error) {
	status := "completed"
	return s.store.UpdateTask(ctx, userID, id, storage.TaskUpdate{Status: &status})
}

// Today returns open tasks due today or earlier.
func (s *Service) Today(ctx context.Context, userID string) ([]storage.Task, error) {
	endOfDay := clock.StartOfDay(s.clock.Now()).AddDate(0, 0, 1).Add(-time.Millisecond)
	return s.store.TasksDueBy(ctx, userID, endOfDay)
}

// Overdue returns open tasks whose due date is before the start of today.
func (s *Service) Overdue(ctx context.Context, userID string) ([]storage.Task, error) {
	return s.store.OverdueTasks(ctx, userID, clock.StartOfDay(s.clock.Now()))
}

// Stats counts tasks by status. Overdue counts open tasks already past due.
func (s *Service) Stats(ctx context.Context, userID string) (storage.TaskStats, error) {
	return s.store.TaskStats(ctx, userID, s.clock.Now())
}

// IsOverdue reports whether an open task is past due at now.
func IsOverdue(t storage.Task, now time.Time) bool {
	if t.DueDate == nil || t.Status == "completed" || t.Status == "cancelled" {
		return false
	}
	return t.DueDate.Before(now)
}

func checkEnum(field, value string, allowed []string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%w: %s must be one of %s", storage.ErrInvalid, field, strings.Join(allowed, ", "))
}
