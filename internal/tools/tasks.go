package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/dateparse"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
	"github.com/kshitijshah95/ai-assistant/internal/tasks"
)

type createTaskArgs struct {
	Title       string `json:"title" jsonschema_description:"The title of the task"`
	Description string `json:"description,omitempty" jsonschema_description:"Optional details"`
	Priority    string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high,enum=urgent" jsonschema_description:"Task priority"`
	DueDate     string `json:"dueDate,omitempty" jsonschema_description:"Due date such as today, tomorrow, next week, friday or 2024-12-25"`
}

type listTasksArgs struct {
	Status   string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed,enum=cancelled" jsonschema_description:"Filter by status"`
	Priority string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high,enum=urgent" jsonschema_description:"Filter by priority"`
	Limit    int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=100" jsonschema_description:"Maximum number of tasks (default 10)"`
}

type taskIDArgs struct {
	TaskID string `json:"taskId" jsonschema_description:"The ID of the task"`
}

type updateTaskArgs struct {
	TaskID      string  `json:"taskId" jsonschema_description:"The ID of the task to update"`
	Title       *string `json:"title,omitempty" jsonschema_description:"New title"`
	Description *string `json:"description,omitempty" jsonschema_description:"New description"`
	Status      *string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed,enum=cancelled" jsonschema_description:"New status"`
	Priority    *string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high,enum=urgent" jsonschema_description:"New priority"`
	DueDate     *string `json:"dueDate,omitempty" jsonschema_description:"New due date"`
}

type taskItem struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	DueDate   *time.Time `json:"dueDate"`
	IsOverdue *bool      `json:"isOverdue,omitempty"`
}

func toTaskItem(t storage.Task) taskItem {
	return taskItem{ID: t.ID, Title: t.Title, Status: t.Status, Priority: t.Priority, DueDate: t.DueDate}
}

func taskTools() []Tool {
	return []Tool{
		define("create_task",
			"Create a new task. Use this when the user wants to add a task, reminder, or todo item.",
			createTask),
		define("list_tasks",
			"List tasks, optionally filtered by status or priority. Use this when the user wants to see their tasks.",
			listTasks),
		define("get_today_tasks",
			"Get open tasks due today or overdue. Use this when the user asks what they need to do today.",
			todayTasks),
		define("complete_task",
			"Mark a task as completed. Use this when the user says they finished a task.",
			completeTask),
		define("update_task",
			"Update an existing task. Use this when the user wants to change a task.",
			updateTask),
		define("delete_task",
			"Delete a task. Use this when the user wants to remove a task.",
			deleteTask),
		define("get_task_stats",
			"Get task statistics. Use this when the user asks about their overall task progress.",
			taskStats),
	}
}

// parseDue resolves a free-text due date. Empty text means no due date.
func parseDue(text string, now time.Time) (*time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	due, parsed := dateparse.DueDate(text, now)
	if !parsed {
		return nil, fmt.Errorf("could not understand the date %q, try something like tomorrow, friday or 2024-12-25", text)
	}
	return &due, nil
}

func createTask(ctx context.Context, e env, a createTaskArgs) (Result, error) {
	due, err := parseDue(a.DueDate, e.now())
	if err != nil {
		return Result{}, err
	}
	t, err := e.Tasks.Create(ctx, e.userID, tasks.CreateInput{
		Title:       a.Title,
		Description: a.Description,
		Priority:    a.Priority,
		DueDate:     due,
	})
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Task %q created successfully", t.Title)
	if t.DueDate != nil {
		msg += fmt.Sprintf(" (due: %s)", t.DueDate.Format(dateLayout))
	}
	return ok(msg, map[string]any{"task": toTaskItem(t)})
}

func listTasks(ctx context.Context, e env, a listTasksArgs) (Result, error) {
	limit := a.Limit
	if limit <= 0 {
		limit = 10
	}
	found, total, err := e.Tasks.List(ctx, e.userID, storage.TaskFilter{Status: a.Status, Priority: a.Priority, Limit: limit})
	if err != nil {
		return Result{}, err
	}
	items := make([]taskItem, len(found))
	for i, t := range found {
		items[i] = toTaskItem(t)
	}
	if len(items) == 0 {
		return ok("No tasks found matching the criteria.", map[string]any{"tasks": items})
	}
	return ok(fmt.Sprintf("Found %d %s", total, plural(total, "task", "tasks")),
		map[string]any{"tasks": items, "total": total})
}

func todayTasks(ctx context.Context, e env, _ noArgs) (Result, error) {
	found, err := e.Tasks.Today(ctx, e.userID)
	if err != nil {
		return Result{}, err
	}
	if len(found) == 0 {
		return ok("No tasks due today. You're all caught up!", map[string]any{"tasks": []taskItem{}})
	}
	now := e.now()
	overdue := 0
	items := make([]taskItem, len(found))
	for i, t := range found {
		late := tasks.IsOverdue(t, now)
		if late {
			overdue++
		}
		items[i] = toTaskItem(t)
		items[i].IsOverdue = &late
	}
	msg := fmt.Sprintf("You have %d %s for today", len(items), plural(len(items), "task", "tasks"))
	if overdue > 0 {
		msg += fmt.Sprintf(" (%d overdue)", overdue)
	}
	return ok(msg, map[string]any{"tasks": items})
}

func completeTask(ctx context.Context, e env, a taskIDArgs) (Result, error) {
	t, err := e.Tasks.Complete(ctx, e.userID, a.TaskID)
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Task %q marked as completed!", t.Title), map[string]any{"task": toTaskItem(t)})
}

func updateTask(ctx context.Context, e env, a updateTaskArgs) (Result, error) {
	u := storage.TaskUpdate{
		Title:       a.Title,
		Description: a.Description,
		Status:      a.Status,
		Priority:    a.Priority,
	}
	if a.DueDate != nil {
		due, err := parseDue(*a.DueDate, e.now())
		if err != nil {
			return Result{}, err
		}
		if due == nil {
			u.DueDate = storage.Null[time.Time]()
		} else {
			u.DueDate = storage.Some(*due)
		}
	}
	t, err := e.Tasks.Update(ctx, e.userID, a.TaskID, u)
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Task %q updated successfully", t.Title), map[string]any{"task": toTaskItem(t)})
}

func deleteTask(ctx context.Context, e env, a taskIDArgs) (Result, error) {
	if err := e.Tasks.Delete(ctx, e.userID, a.TaskID); err != nil {
		return Result{}, err
	}
	return ok("Task deleted successfully", nil)
}

func taskStats(ctx context.Context, e env, _ noArgs) (Result, error) {
	st, err := e.Tasks.Stats(ctx, e.userID)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Task summary: %d/%d completed, %d pending, %d in progress",
		st.Completed, st.Total, st.Pending, st.InProgress)
	if st.Overdue > 0 {
		msg += fmt.Sprintf(", %d overdue", st.Overdue)
	}
	return ok(msg, map[string]any{"stats": st})
}
