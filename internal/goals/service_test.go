package goals

import (
	"context"
	"errors"
	"testing"

	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     int
	}{
		{"no tasks", nil, 0},
		{"mixed", []string{"completed", "completed", "pending", "cancelled"}, 50},
		{"one of three", []string{"completed", "pending", "pending"}, 33},
		{"two of three", []string{"completed", "completed", "in_progress"}, 67},
		{"all done", []string{"completed"}, 100},
		{"none done", []string{"pending", "cancelled"}, 0},
		{"half rounds up", []string{"completed", "pending", "pending", "pending", "pending", "pending", "pending", "pending"}, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(tt.statuses); got != tt.want {
				t.Errorf("Progress(%v) = %d, want %d", tt.statuses, got, tt.want)
			}
		})
	}
}

func setup(t *testing.T) (*Service, *storage.Store, string) {
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
	return New(store), store, u.ID
}

func TestProgressRecomputedOnRead(t *testing.T) {
	svc, store, uid := setup(t)
	ctx := context.Background()

	g, err := svc.Create(ctx, uid, CreateInput{Title: "Get fit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.Progress != 0 || g.Status != "active" {
		t.Errorf("new goal = %+v", g)
	}

	var ids []string
	for _, title := range []string{"a", "b", "c", "d"} {
		task, err := store.CreateTask(ctx, storage.Task{UserID: uid, Title: title, GoalID: &g.ID})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		ids = append(ids, task.ID)
	}
	completed := "completed"
	for _, id := range ids[:2] {
		if _, err := store.UpdateTask(ctx, uid, id, storage.TaskUpdate{Status: &completed}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.Get(ctx, uid, g.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Progress != 50 || len(got.Tasks) != 4 {
		t.Errorf("Get progress = %d, tasks = %d", got.Progress, len(got.Tasks))
	}

	if err := store.DeleteTask(ctx, uid, ids[3]); err != nil {
		t.Fatal(err)
	}
	list, err := svc.List(ctx, uid, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Progress != 67 {
		t.Errorf("List = %+v", list)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _, uid := setup(t)
	ctx := context.Background()
	g, _ := svc.Create(ctx, uid, CreateInput{Title: "Learn Go"})

	bad := "paused"
	if _, err := svc.Update(ctx, uid, g.ID, storage.GoalUpdate{Status: &bad}); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("bad status err = %v", err)
	}
	done := "completed"
	got, err := svc.Update(ctx, uid, g.ID, storage.GoalUpdate{Status: &done})
	if err != nil || got.Status != "completed" {
		t.Errorf("Update = %+v, %v", got, err)
	}

	if err := svc.Delete(ctx, uid, g.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, uid, g.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if _, err := svc.Create(ctx, uid, CreateInput{}); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("Create without title err = %v", err)
	}
}
