package tools

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/calendar"
	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/goals"
	"github.com/kshitijshah95/ai-assistant/internal/habits"
	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
	"github.com/kshitijshah95/ai-assistant/internal/tasks"
)

// Monday 2024-06-10 14:00 UTC.
var testNow = time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	u, err := store.GetOrCreateUser(context.Background(), "tester", "Tester")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	c := clock.Fixed(testNow)
	return NewRegistry(Services{
		Notes:    notes.New(store, nil, 0),
		Tasks:    tasks.NewWithClock(store, c),
		Goals:    goals.New(store),
		Habits:   habits.NewWithClock(store, c),
		Calendar: calendar.NewWithClock(store, c),
		Clock:    c,
	}, u.ID)
}

func call(t *testing.T, r *Registry, name, args string) envelope {
	t.Helper()
	out := r.Execute(context.Background(), name, json.RawMessage(args))
	var env envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("%s returned non-JSON %q: %v", name, out, err)
	}
	return env
}

func mustSucceed(t *testing.T, r *Registry, name, args string) envelope {
	t.Helper()
	env := call(t, r, name, args)
	if !env.Success {
		t.Fatalf("%s(%s) failed: %s", name, args, env.Error)
	}
	return env
}

func nested(t *testing.T, env envelope, key string) map[string]any {
	t.Helper()
	m, isMap := env.Data[key].(map[string]any)
	if !isMap {
		t.Fatalf("data[%q] = %#v, want object", key, env.Data[key])
	}
	return m
}

func TestDefinitions(t *testing.T) {
	r := newTestRegistry(t)
	want := []string{
		"create_note", "search_notes", "list_notes", "get_note_categories", "update_note", "delete_note",
		"create_task", "list_tasks", "get_today_tasks", "complete_task", "update_task", "delete_task", "get_task_stats",
		"create_goal", "list_goals", "get_goal_progress", "add_task_to_goal", "update_goal",
		"create_habit", "list_habits", "log_habit", "get_today_habits", "get_habit_stats", "delete_habit",
		"schedule_event", "get_today_events", "get_week_events", "get_upcoming_events", "update_event", "delete_event",
	}
	defs := r.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("got %d tools, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("tool %d = %s, want %s", i, d.Name, want[i])
		}
		if d.Description == "" {
			t.Errorf("%s has no description", d.Name)
		}
		if d.Parameters["type"] != "object" {
			t.Errorf("%s schema type = %v", d.Name, d.Parameters["type"])
		}
		if _, has := d.Parameters["$schema"]; has {
			t.Errorf("%s schema still carries $schema", d.Name)
		}
	}
	if !slices.IsSorted(r.Names()) {
		t.Error("Names not sorted")
	}
}

func TestSchemaRequiredAndEnum(t *testing.T) {
	r := newTestRegistry(t)
	var create map[string]any
	for _, d := range r.Definitions() {
		if d.Name == "create_task" {
			create = d.Parameters
		}
	}
	required, _ := create["required"].([]any)
	if len(required) != 1 || required[0] != "title" {
		t.Errorf("required = %v, want [title]", create["required"])
	}
	props := create["properties"].(map[string]any)
	priority := props["priority"].(map[string]any)
	if enum, _ := priority["enum"].([]any); len(enum) != 4 {
		t.Errorf("priority enum = %v", priority["enum"])
	}
	if props["title"].(map[string]any)["description"] == nil {
		t.Error("title has no description")
	}
}

func TestExecute_Failures(t *testing.T) {
	r := newTestRegistry(t)
	tests := []struct {
		name, tool, args, wantErr string
	}{
		{"unknown tool", "fly_to_moon", `{}`, "unknown tool"},
		{"missing required", "create_task", `{}`, "invalid arguments"},
		{"bad enum", "list_tasks", `{"status":"done"}`, "invalid arguments"},
		{"wrong type", "search_notes", `{"query":"x","limit":"five"}`, "invalid arguments"},
		{"malformed json", "create_note", `{"content":`, "invalid arguments"},
		{"not found", "delete_note", `{"noteId":"missing"}`, "not found"},
		{"goal not found", "add_task_to_goal", `{"goalId":"missing","title":"x"}`, "not found"},
		{"bad date", "create_task", `{"title":"x","dueDate":"someday"}`, "could not understand"},
		{"bad event time", "schedule_event", `{"title":"x","dateTime":"whenever"}`, "Could not parse the date/time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := call(t, r, tt.tool, tt.args)
			if env.Success {
				t.Fatalf("expected failure, got %+v", env)
			}
			if !strings.Contains(env.Error, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", env.Error, tt.wantErr)
			}
		})
	}
}

func TestExecute_RecoversPanics(t *testing.T) {
	r := NewRegistry(Services{}, "nobody")
	env := call(t, r, "create_note", `{"content":"boom"}`)
	if env.Success || !strings.Contains(env.Error, "create_note") {
		t.Errorf("got %+v, want a failure naming the tool", env)
	}
}

func TestExecute_EmptyArgs(t *testing.T) {
	r := newTestRegistry(t)
	out := r.Execute(context.Background(), "get_task_stats", nil)
	if !strings.Contains(out, `"success":true`) {
		t.Errorf("get_task_stats with nil args = %s", out)
	}
}

func TestNoteTools(t *testing.T) {
	r := newTestRegistry(t)
	env := mustSucceed(t, r, "create_note", `{"content":"Remember the gym at 7","tags":["fitness"]}`)
	if env.Message != `Note created successfully in category "Health"` {
		t.Errorf("message = %q", env.Message)
	}
	id := nested(t, env, "note")["id"].(string)

	env = mustSucceed(t, r, "search_notes", `{"query":"gym"}`)
	found := env.Data["notes"].([]any)
	if len(found) != 1 || found[0].(map[string]any)["relevance"] != "100%" {
		t.Errorf("search notes = %v", found)
	}

	env = mustSucceed(t, r, "list_notes", `{"category":"Health"}`)
	if env.Data["total"].(float64) != 1 {
		t.Errorf("list total = %v", env.Data["total"])
	}

	mustSucceed(t, r, "update_note", `{"noteId":"`+id+`","category":"Fitness"}`)
	env = mustSucceed(t, r, "get_note_categories", `{}`)
	cats := env.Data["categories"].([]any)
	if len(cats) != 1 || cats[0].(map[string]any)["name"] != "Fitness" {
		t.Errorf("categories = %v", cats)
	}

	mustSucceed(t, r, "delete_note", `{"noteId":"`+id+`"}`)
	env = mustSucceed(t, r, "search_notes", `{"query":"gym"}`)
	if env.Message != "No notes found matching your query." {
		t.Errorf("message after delete = %q", env.Message)
	}
}

func TestTaskTools(t *testing.T) {
	r := newTestRegistry(t)

	env := mustSucceed(t, r, "create_task", `{"title":"Buy milk","priority":"high","dueDate":"tomorrow"}`)
	if env.Message != `Task "Buy milk" created successfully (due: Jun 11, 2024)` {
		t.Errorf("message = %q", env.Message)
	}
	mustSucceed(t, r, "create_task", `{"title":"Pay rent","dueDate":"2024-06-08"}`)
	env = mustSucceed(t, r, "create_task", `{"title":"Stand-up","dueDate":"today"}`)
	standup := nested(t, env, "task")["id"].(string)

	env = mustSucceed(t, r, "get_today_tasks", `{}`)
	if env.Message != "You have 2 tasks for today (1 overdue)" {
		t.Errorf("today message = %q", env.Message)
	}
	for _, raw := range env.Data["tasks"].([]any) {
		task := raw.(map[string]any)
		wantOverdue := task["title"] == "Pay rent"
		if task["isOverdue"] != wantOverdue {
			t.Errorf("%v isOverdue = %v, want %v", task["title"], task["isOverdue"], wantOverdue)
		}
	}

	env = mustSucceed(t, r, "complete_task", `{"taskId":"`+standup+`"}`)
	if env.Message != `Task "Stand-up" marked as completed!` {
		t.Errorf("complete message = %q", env.Message)
	}

	env = mustSucceed(t, r, "list_tasks", `{"status":"pending"}`)
	if env.Data["total"].(float64) != 2 {
		t.Errorf("pending total = %v", env.Data["total"])
	}

	env = mustSucceed(t, r, "update_task", `{"taskId":"`+standup+`","status":"in_progress","dueDate":"friday"}`)
	task := nested(t, env, "task")
	if task["status"] != "in_progress" || !strings.HasPrefix(task["dueDate"].(string), "2024-06-14") {
		t.Errorf("updated task = %v", task)
	}

	env = mustSucceed(t, r, "get_task_stats", `{}`)
	if env.Message != "Task summary: 0/3 completed, 2 pending, 1 in progress, 1 overdue" {
		t.Errorf("stats message = %q", env.Message)
	}

	mustSucceed(t, r, "delete_task", `{"taskId":"`+standup+`"}`)
}

func TestGoalTools(t *testing.T) {
	r := newTestRegistry(t)
	env := mustSucceed(t, r, "create_goal", `{"title":"Run a marathon","targetDate":"2024-10-01"}`)
	goalID := nested(t, env, "goal")["id"].(string)

	env = mustSucceed(t, r, "add_task_to_goal", `{"goalId":"`+goalID+`","title":"Buy shoes"}`)
	shoes := nested(t, env, "task")["id"].(string)
	mustSucceed(t, r, "add_task_to_goal", `{"goalId":"`+goalID+`","title":"Run 5k"}`)
	mustSucceed(t, r, "complete_task", `{"taskId":"`+shoes+`"}`)

	env = mustSucceed(t, r, "get_goal_progress", `{"goalId":"`+goalID+`"}`)
	if env.Message != `Goal "Run a marathon": 50% complete` {
		t.Errorf("progress message = %q", env.Message)
	}
	goal := nested(t, env, "goal")
	if goal["completedTasks"].(float64) != 1 || goal["pendingTasks"].(float64) != 1 {
		t.Errorf("goal detail = %v", goal)
	}

	mustSucceed(t, r, "update_goal", `{"goalId":"`+goalID+`","status":"completed"}`)
	env = mustSucceed(t, r, "list_goals", `{"status":"active"}`)
	if env.Message != "No goals found. Would you like to set a new goal?" {
		t.Errorf("active goals message = %q", env.Message)
	}
	env = mustSucceed(t, r, "list_goals", `{}`)
	if n := len(env.Data["goals"].([]any)); n != 1 {
		t.Errorf("got %d goals", n)
	}
}

func TestHabitTools(t *testing.T) {
	r := newTestRegistry(t)
	env := mustSucceed(t, r, "create_habit", `{"name":"Meditate"}`)
	if env.Message != `Habit "Meditate" created! I'll help you track it daily.` {
		t.Errorf("message = %q", env.Message)
	}
	id := nested(t, env, "habit")["id"].(string)
	mustSucceed(t, r, "create_habit", `{"name":"Stretch","frequency":"weekly"}`)

	env = mustSucceed(t, r, "get_today_habits", `{}`)
	if env.Message != "0/2 habits completed. 2 pending." {
		t.Errorf("today message = %q", env.Message)
	}

	env = mustSucceed(t, r, "log_habit", `{"habitId":"`+id+`"}`)
	if env.Message != "Great job! Habit logged. Current streak: 1 day!" {
		t.Errorf("log message = %q", env.Message)
	}

	env = mustSucceed(t, r, "get_habit_stats", `{"habitId":"`+id+`"}`)
	if env.Message != `Habit "Meditate": 1 day streak, 100% completion rate` {
		t.Errorf("stats message = %q", env.Message)
	}

	env = mustSucceed(t, r, "list_habits", `{}`)
	for _, raw := range env.Data["habits"].([]any) {
		h := raw.(map[string]any)
		if h["name"] == "Meditate" && h["completedToday"] != true {
			t.Errorf("Meditate not completed today: %v", h)
		}
	}

	mustSucceed(t, r, "delete_habit", `{"habitId":"`+id+`"}`)
	env = mustSucceed(t, r, "get_today_habits", `{}`)
	if env.Message != "0/1 habits completed. 1 pending." {
		t.Errorf("today message after delete = %q", env.Message)
	}
}

func TestCalendarTools(t *testing.T) {
	r := newTestRegistry(t)
	env := mustSucceed(t, r, "schedule_event", `{"title":"Dentist","dateTime":"tomorrow at 3pm","duration":"2 hours"}`)
	if env.Message != `Event "Dentist" scheduled for Tue Jun 11, 2024 3:00 PM` {
		t.Errorf("message = %q", env.Message)
	}
	ev := nested(t, env, "event")
	if ev["startTime"] != "2024-06-11T15:00:00Z" || ev["endTime"] != "2024-06-11T17:00:00Z" {
		t.Errorf("event = %v", ev)
	}
	id := ev["id"].(string)
	mustSucceed(t, r, "schedule_event", `{"title":"Lunch","dateTime":"today at 12:30"}`)

	env = mustSucceed(t, r, "get_today_events", `{}`)
	if env.Message != "You have 1 event today" {
		t.Errorf("today message = %q", env.Message)
	}
	env = mustSucceed(t, r, "get_week_events", `{}`)
	if env.Message != "You have 2 events this week" {
		t.Errorf("week message = %q", env.Message)
	}
	env = mustSucceed(t, r, "get_upcoming_events", `{}`)
	if env.Message != "Next 1 upcoming event" {
		t.Errorf("upcoming message = %q", env.Message)
	}

	env = mustSucceed(t, r, "update_event", `{"eventId":"`+id+`","dateTime":"friday at 10am"}`)
	ev = nested(t, env, "event")
	if ev["startTime"] != "2024-06-14T10:00:00Z" || ev["endTime"] != "2024-06-14T11:00:00Z" {
		t.Errorf("rescheduled event = %v", ev)
	}

	mustSucceed(t, r, "delete_event", `{"eventId":"`+id+`"}`)
	if env := call(t, r, "delete_event", `{"eventId":"`+id+`"}`); env.Success {
		t.Error("deleting twice succeeded")
	}
}
