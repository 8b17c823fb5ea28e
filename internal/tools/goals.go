package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/goals"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
	"github.com/kshitijshah95/ai-assistant/internal/tasks"
)

type createGoalArgs struct {
	Title       string `json:"title" jsonschema_description:"The title of the goal"`
	Description string `json:"description,omitempty" jsonschema_description:"What achieving the goal involves"`
	TargetDate  string `json:"targetDate,omitempty" jsonschema_description:"When the goal should be reached, e.g. next week or 2025-06-30"`
}

type listGoalsArgs struct {
	Status string `json:"status,omitempty" jsonschema:"enum=active,enum=completed,enum=archived" jsonschema_description:"Filter by status"`
}

type goalIDArgs struct {
	GoalID string `json:"goalId" jsonschema_description:"The ID of the goal"`
}

type addGoalTaskArgs struct {
	GoalID      string `json:"goalId" jsonschema_description:"The ID of the goal"`
	Title       string `json:"title" jsonschema_description:"The title of the task"`
	Description string `json:"description,omitempty" jsonschema_description:"Task description"`
	DueDate     string `json:"dueDate,omitempty" jsonschema_description:"Due date for the task"`
}

type updateGoalArgs struct {
	GoalID      string  `json:"goalId" jsonschema_description:"The ID of the goal"`
	Title       *string `json:"title,omitempty" jsonschema_description:"New title"`
	Description *string `json:"description,omitempty" jsonschema_description:"New description"`
	Status      *string `json:"status,omitempty" jsonschema:"enum=active,enum=completed,enum=archived" jsonschema_description:"New status"`
}

type goalItem struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Progress   int        `json:"progress"`
	TargetDate *time.Time `json:"targetDate"`
}

type goalTask struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type goalDetail struct {
	goalItem
	Description    string     `json:"description,omitempty"`
	CompletedTasks int        `json:"completedTasks"`
	PendingTasks   int        `json:"pendingTasks"`
	Tasks          []goalTask `json:"tasks"`
}

func toGoalItem(g goals.Goal) goalItem {
	return goalItem{ID: g.ID, Title: g.Title, Status: g.Status, Progress: g.Progress, TargetDate: g.TargetDate}
}

func goalTools() []Tool {
	return []Tool{
		define("create_goal",
			"Create a new goal. Use this when the user wants to set a long-term goal or objective.",
			createGoal),
		define("list_goals",
			"List goals with their progress. Use this when the user asks about their goals.",
			listGoals),
		define("get_goal_progress",
			"Get detailed progress on one goal, including its tasks.",
			goalProgress),
		define("add_task_to_goal",
			"Add a task that works towards a goal. Use this when breaking a goal down into actionable steps.",
			addTaskToGoal),
		define("update_goal",
			"Update a goal. Use this when the user wants to change a goal or mark it completed or archived.",
			updateGoal),
	}
}

func createGoal(ctx context.Context, e env, a createGoalArgs) (Result, error) {
	target, err := parseDue(a.TargetDate, e.now())
	if err != nil {
		return Result{}, err
	}
	g, err := e.Goals.Create(ctx, e.userID, goals.CreateInput{Title: a.Title, Description: a.Description, TargetDate: target})
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Goal %q created successfully!", g.Title), map[string]any{"goal": toGoalItem(g)})
}

func listGoals(ctx context.Context, e env, a listGoalsArgs) (Result, error) {
	found, err := e.Goals.List(ctx, e.userID, a.Status)
	if err != nil {
		return Result{}, err
	}
	items := make([]goalItem, len(found))
	for i, g := range found {
		items[i] = toGoalItem(g)
	}
	if len(items) == 0 {
		return ok("No goals found. Would you like to set a new goal?", map[string]any{"goals": items})
	}
	return ok(fmt.Sprintf("Found %d %s", len(items), plural(len(items), "goal", "goals")), map[string]any{"goals": items})
}

func goalProgress(ctx context.Context, e env, a goalIDArgs) (Result, error) {
	g, err := e.Goals.Get(ctx, e.userID, a.GoalID)
	if err != nil {
		return Result{}, err
	}
	d := goalDetail{goalItem: toGoalItem(g), Description: g.Description, Tasks: make([]goalTask, len(g.Tasks))}
	for i, t := range g.Tasks {
		switch t.Status {
		case "completed":
			d.CompletedTasks++
		case "pending", "in_progress":
			d.PendingTasks++
		}
		d.Tasks[i] = goalTask{ID: t.ID, Title: t.Title, Status: t.Status}
	}
	return ok(fmt.Sprintf("Goal %q: %d%% complete", g.Title, g.Progress), map[string]any{"goal": d})
}

func addTaskToGoal(ctx context.Context, e env, a addGoalTaskArgs) (Result, error) {
	due, err := parseDue(a.DueDate, e.now())
	if err != nil {
		return Result{}, err
	}
	t, err := e.Tasks.Create(ctx, e.userID, tasks.CreateInput{
		Title:       a.Title,
		Description: a.Description,
		DueDate:     due,
		GoalID:      a.GoalID,
	})
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Task %q added to the goal!", t.Title), map[string]any{"task": toTaskItem(t)})
}

func updateGoal(ctx context.Context, e env, a updateGoalArgs) (Result, error) {
	g, err := e.Goals.Update(ctx, e.userID, a.GoalID, storage.GoalUpdate{
		Title:       a.Title,
		Description: a.Description,
		Status:      a.Status,
	})
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Goal %q updated successfully", g.Title), map[string]any{"goal": toGoalItem(g)})
}
