// Package goals is the goal service. A goal's progress is derived from the
// statuses of its tasks on every read and never stored.
package goals

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// Goal statuses.
var Statuses = []string{"active", "completed", "archived"}

// maxGoalTasks bounds the task list returned with a single goal.
const maxGoalTasks = 500

// Store defines the storage operations the Service needs.
// Implemented by storage.Store.
type Store interface {
	CreateGoal(ctx context.Context, g storage.Goal) (storage.Goal, error)
	GetGoal(ctx context.Context, userID, id string) (storage.Goal, error)
	UpdateGoal(ctx context.Context, userID, id string, u storage.GoalUpdate) (storage.Goal, error)
	DeleteGoal(ctx context.Context, userID, id string) error
	ListGoals(ctx context.Context, userID, status string) ([]storage.Goal, error)
	ListTasks(ctx context.Context, userID string, f storage.TaskFilter) ([]storage.Task, int, error)
	TaskStatusesForGoal(ctx context.Context, goalID string) ([]string, error)
}

// Goal is a stored goal with its derived progress and, from Get, its tasks.
type Goal struct {
	storage.Goal
	Progress int            `json:"progress"`
	Tasks    []storage.Task `json:"tasks,omitempty"`
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// Progress returns the rounded percentage of completed statuses, 0 for none.
func Progress(statuses []string) int {
	if len(statuses) == 0 {
		return 0
	}
	completed := 0
	for _, st := range statuses {
		if st == "completed" {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(statuses))))
}

// CreateInput holds the fields accepted when creating a goal.
type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TargetDate  *time.Time `json:"targetDate"`
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Goal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Goal{}, fmt.Errorf("%w: title is required", storage.ErrInvalid)
	}
	g, err := s.store.CreateGoal(ctx, storage.Goal{
		UserID:      userID,
		Title:       title,
		Description: in.Description,
		TargetDate:  in.TargetDate,
	})
	if err != nil {
		return Goal{}, err
	}
	return Goal{Goal: g}, nil
}

// Get returns the goal with its tasks (newest first) and progress.
func (s *Service) Get(ctx context.Context, userID, id string) (Goal, error) {
	g, err := s.store.GetGoal(ctx, userID, id)
	if err != nil {
		return Goal{}, err
	}
	tasks, _, err := s.store.ListTasks(ctx, userID, storage.TaskFilter{GoalID: id, Limit: maxGoalTasks})
	if err != nil {
		return Goal{}, fmt.Errorf("listing goal tasks: %w", err)
	}
	slices.SortStableFunc(tasks, func(a, b storage.Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	out, err := s.withProgress(ctx, g)
	if err != nil {
		return Goal{}, err
	}
	out.Tasks = tasks
	return out, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, u storage.GoalUpdate) (Goal, error) {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return Goal{}, fmt.Errorf("%w: title cannot be empty", storage.ErrInvalid)
		}
		u.Title = &title
	}
	if u.Status != nil && !slices.Contains(Statuses, *u.Status) {
		return Goal{}, fmt.Errorf("%w: status must be one of %s", storage.ErrInvalid, strings.Join(Statuses, ", "))
	}
	g, err := s.store.UpdateGoal(ctx, userID, id, u)
	if err != nil {
		return Goal{}, err
	}
	return s.withProgress(ctx, g)
}

// Delete removes the goal; its tasks are kept and detached.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteGoal(ctx, userID, id)
}

// List returns goals newest first with progress, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID, status string) ([]Goal, error) {
	if status != "" && !slices.Contains(Statuses, status) {
		return nil, fmt.Errorf("%w: status must be one of %s", storage.ErrInvalid, strings.Join(Statuses, ", "))
	}
	stored, err := s.store.ListGoals(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	out := make([]Goal, 0, len(stored))
	for _, g := range stored {
		withP, err := s.withProgress(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, withP)
	}
	return out, nil
}

func (s *Service) withProgress(ctx context.Context, g storage.Goal) (Goal, error) {
	statuses, err := s.store.TaskStatusesForGoal(ctx, g.ID)
	if err != nil {
		return Goal{}, fmt.Errorf("loading goal tasks: %w", err)
	}
	return Goal{Goal: g, Progress: Progress(statuses)}, nil
}
