package habits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

var today = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2024, 6, 10+offset, 0, 0, 0, 0, time.UTC)
}

func logAt(offset int, completed bool) storage.HabitLog {
	return storage.HabitLog{LoggedDate: day(offset), Completed: completed}
}

func TestStreak(t *testing.T) {
	tests := []struct {
		name string
		logs []storage.HabitLog
		want int
	}{
		{"no logs", nil, 0},
		{"three days", []storage.HabitLog{logAt(0, true), logAt(-1, true), logAt(-2, true)}, 3},
		{"unsorted input", []storage.HabitLog{logAt(-2, true), logAt(0, true), logAt(-1, true)}, 3},
		{"false yesterday breaks chain", []storage.HabitLog{logAt(0, true), logAt(-1, false), logAt(-2, true)}, 1},
		{"gap breaks chain", []storage.HabitLog{logAt(0, true), logAt(-2, true), logAt(-3, true)}, 1},
		{"unlogged today keeps run", []storage.HabitLog{logAt(-1, true), logAt(-2, true)}, 2},
		{"unlogged today and yesterday", []storage.HabitLog{logAt(-2, true), logAt(-3, true)}, 0},
		{"today logged not done", []storage.HabitLog{logAt(0, false), logAt(-1, true)}, 0},
		{"future log ignored", []storage.HabitLog{logAt(1, true), logAt(0, true), logAt(-1, true)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Streak(tt.logs, today); got != tt.want {
				t.Errorf("Streak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreak_LocalDatesAgainstOtherZone(t *testing.T) {
	east := time.FixedZone("east", 9*3600)
	logs := []storage.HabitLog{
		{LoggedDate: time.Date(2024, 6, 10, 0, 0, 0, 0, east), Completed: true},
		{LoggedDate: time.Date(2024, 6, 9, 0, 0, 0, 0, east), Completed: true},
	}
	if got := Streak(logs, today); got != 2 {
		t.Errorf("Streak = %d, want 2", got)
	}
}

func TestCompletedToday(t *testing.T) {
	if CompletedToday([]storage.HabitLog{logAt(-1, true)}, today) {
		t.Error("yesterday's log should not count for today")
	}
	if CompletedToday([]storage.HabitLog{logAt(0, false)}, today) {
		t.Error("not-completed log should not count")
	}
	if !CompletedToday([]storage.HabitLog{logAt(-1, true), logAt(0, true)}, today) {
		t.Error("completed log today should count")
	}
}

func setup(t *testing.T) (*Service, string) {
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
	return NewWithClock(store, clock.Fixed(today)), u.ID
}

func TestLog_UpsertsPerDay(t *testing.T) {
	svc, uid := setup(t)
	ctx := context.Background()

	h, err := svc.Create(ctx, uid, CreateInput{Name: "Meditate"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.Frequency != "daily" {
		t.Errorf("Frequency = %q, want daily", h.Frequency)
	}

	if _, err := svc.Log(ctx, uid, h.ID, LogInput{}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	no := false
	second, err := svc.Log(ctx, uid, h.ID, LogInput{Completed: &no, Notes: "skipped"})
	if err != nil {
		t.Fatalf("Log again: %v", err)
	}
	if second.Completed || second.Notes != "skipped" {
		t.Errorf("second log = %+v", second)
	}

	logs, err := svc.Logs(ctx, uid, h.ID, 7)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].Completed || logs[0].Notes != "skipped" {
		t.Errorf("stored log = %+v, want second write to win", logs[0])
	}
}

func TestGetListAndStats(t *testing.T) {
	svc, uid := setup(t)
	ctx := context.Background()
	h, _ := svc.Create(ctx, uid, CreateInput{Name: "Read"})

	for _, off := range []int{0, -1, -2, -4} {
		d := day(off)
		if _, err := svc.Log(ctx, uid, h.ID, LogInput{Date: &d}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	no := false
	d := day(-3)
	if _, err := svc.Log(ctx, uid, h.ID, LogInput{Date: &d, Completed: &no}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Get(ctx, uid, h.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Streak != 3 || !got.CompletedToday || len(got.Logs) != 5 {
		t.Errorf("Get = streak %d, today %v, logs %d", got.Streak, got.CompletedToday, len(got.Logs))
	}

	stats, err := svc.Stats(ctx, uid, h.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Streak: 3, CompletedDays: 4, TotalDays: 5, CompletionRate: 80}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}

	items, err := svc.TodayStatus(ctx, uid)
	if err != nil {
		t.Fatalf("TodayStatus: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Read" || !items[0].CompletedToday || items[0].Streak != 3 {
		t.Errorf("TodayStatus = %+v", items)
	}
}

func TestValidationAndNotFound(t *testing.T) {
	svc, uid := setup(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, uid, CreateInput{Name: " "}); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("blank name err = %v", err)
	}
	if _, err := svc.Create(ctx, uid, CreateInput{Name: "x", Frequency: "hourly"}); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("bad frequency err = %v", err)
	}
	if _, err := svc.Log(ctx, uid, "missing", LogInput{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Log(missing) err = %v", err)
	}
	if _, err := svc.Stats(ctx, uid, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Stats(missing) err = %v", err)
	}
}
