package tools

import (
	"context"
	"fmt"

	"github.com/kshitijshah95/ai-assistant/internal/habits"
)

type createHabitArgs struct {
	Name      string `json:"name" jsonschema_description:"The habit, e.g. Morning meditation or Read 30 minutes"`
	Frequency string `json:"frequency,omitempty" jsonschema:"enum=daily,enum=weekly" jsonschema_description:"How often the habit should be done (default daily)"`
}

type habitIDArgs struct {
	HabitID string `json:"habitId" jsonschema_description:"The ID of the habit"`
}

type logHabitArgs struct {
	HabitID string `json:"habitId" jsonschema_description:"The ID of the habit to log"`
	Notes   string `json:"notes,omitempty" jsonschema_description:"Optional notes about today's session"`
}

type habitItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Frequency      string `json:"frequency"`
	Streak         int    `json:"streak"`
	CompletedToday bool   `json:"completedToday"`
}

type habitRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Streak int    `json:"streak"`
}

func habitTools() []Tool {
	return []Tool{
		define("create_habit",
			"Start tracking a new habit. Use this when the user wants to build a routine.",
			createHabit),
		define("list_habits",
			"List habits with their current streaks. Use this when the user asks about their habits.",
			listHabits),
		define("log_habit",
			"Log a habit as done for today. Use this when the user says they did a habit.",
			logHabit),
		define("get_today_habits",
			"Show which habits are done and which are still pending today.",
			todayHabits),
		define("get_habit_stats",
			"Get streak and completion rate for one habit.",
			habitStats),
		define("delete_habit",
			"Delete a habit. Use this when the user wants to stop tracking it.",
			deleteHabit),
	}
}

func createHabit(ctx context.Context, e env, a createHabitArgs) (Result, error) {
	h, err := e.Habits.Create(ctx, e.userID, habits.CreateInput{Name: a.Name, Frequency: a.Frequency})
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Habit %q created! I'll help you track it %s.", h.Name, h.Frequency),
		map[string]any{"habit": habitItem{ID: h.ID, Name: h.Name, Frequency: h.Frequency}})
}

func listHabits(ctx context.Context, e env, _ noArgs) (Result, error) {
	found, err := e.Habits.List(ctx, e.userID)
	if err != nil {
		return Result{}, err
	}
	items := make([]habitItem, len(found))
	for i, h := range found {
		items[i] = habitItem{ID: h.ID, Name: h.Name, Frequency: h.Frequency, Streak: h.Streak, CompletedToday: h.CompletedToday}
	}
	if len(items) == 0 {
		return ok("No habits tracked yet. Would you like to start one?", map[string]any{"habits": items})
	}
	return ok(fmt.Sprintf("Tracking %d %s", len(items), plural(len(items), "habit", "habits")), map[string]any{"habits": items})
}

func logHabit(ctx context.Context, e env, a logHabitArgs) (Result, error) {
	if _, err := e.Habits.Log(ctx, e.userID, a.HabitID, habits.LogInput{Notes: a.Notes}); err != nil {
		return Result{}, err
	}
	st, err := e.Habits.Stats(ctx, e.userID, a.HabitID)
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Great job! Habit logged. Current streak: %d %s!", st.Streak, plural(st.Streak, "day", "days")),
		map[string]any{"stats": map[string]int{"streak": st.Streak, "completionRate": st.CompletionRate}})
}

func todayHabits(ctx context.Context, e env, _ noArgs) (Result, error) {
	items, err := e.Habits.TodayStatus(ctx, e.userID)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return ok("No habits tracked yet.", map[string]any{"completed": []habitRef{}, "pending": []habitRef{}})
	}
	done := []habitRef{}
	pending := []habitRef{}
	for _, h := range items {
		ref := habitRef{ID: h.ID, Name: h.Name, Streak: h.Streak}
		if h.CompletedToday {
			done = append(done, ref)
		} else {
			pending = append(pending, ref)
		}
	}
	msg := fmt.Sprintf("%d/%d habits completed. %d pending.", len(done), len(items), len(pending))
	if len(pending) == 0 {
		msg = "All habits completed for today. Great job!"
	}
	return ok(msg, map[string]any{"completed": done, "pending": pending})
}

func habitStats(ctx context.Context, e env, a habitIDArgs) (Result, error) {
	h, err := e.Habits.Get(ctx, e.userID, a.HabitID)
	if err != nil {
		return Result{}, err
	}
	st, err := e.Habits.Stats(ctx, e.userID, a.HabitID)
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Habit %q: %d day streak, %d%% completion rate", h.Name, st.Streak, st.CompletionRate),
		map[string]any{"habit": habitRef{ID: h.ID, Name: h.Name, Streak: st.Streak}, "stats": st})
}

func deleteHabit(ctx context.Context, e env, a habitIDArgs) (Result, error) {
	if err := e.Habits.Delete(ctx, e.userID, a.HabitID); err != nil {
		return Result{}, err
	}
	return ok("Habit deleted successfully", nil)
}
