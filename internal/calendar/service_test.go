package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// Wednesday, 12 June 2024.
var now = time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)

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
	return NewWithClock(store, clock.Fixed(now)), u.ID
}

func mustCreate(t *testing.T, svc *Service, uid, title string, start time.Time, d time.Duration) storage.Event {
	t.Helper()
	e, err := svc.Create(context.Background(), uid, CreateInput{Title: title, StartTime: start, EndTime: start.Add(d)})
	if err != nil {
		t.Fatalf("Create %s: %v", title, err)
	}
	return e
}

func titles(es []storage.Event) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Title
	}
	return out
}

func TestWeekStart(t *testing.T) {
	want := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	if got := WeekStart(now); !got.Equal(want) {
		t.Errorf("WeekStart = %v, want %v", got, want)
	}
	sunday := time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC)
	if got := WeekStart(sunday); !got.Equal(want) {
		t.Errorf("WeekStart(sunday) = %v, want %v", got, want)
	}
}

func TestDayWeekMonth(t *testing.T) {
	svc, uid := setup(t)
	ctx := context.Background()

	mustCreate(t, svc, uid, "standup", time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC), 15*time.Minute)
	mustCreate(t, svc, uid, "overnight", time.Date(2024, 6, 11, 22, 0, 0, 0, time.UTC), 4*time.Hour)
	mustCreate(t, svc, uid, "saturday", time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), time.Hour)
	mustCreate(t, svc, uid, "next sunday", time.Date(2024, 6, 16, 10, 0, 0, 0, time.UTC), time.Hour)
	mustCreate(t, svc, uid, "july", time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC), time.Hour)

	today, err := svc.Today(ctx, uid)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if got := titles(today); len(got) != 2 || got[0] != "overnight" || got[1] != "standup" {
		t.Errorf("Today = %v", got)
	}

	week, err := svc.Week(ctx, uid, now)
	if err != nil {
		t.Fatalf("Week: %v", err)
	}
	if len(week) != 3 {
		t.Errorf("Week = %v, want overnight, standup, saturday", titles(week))
	}

	june, err := svc.Month(ctx, uid, 2024, time.June)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if len(june) != 4 {
		t.Errorf("June = %v", titles(june))
	}
	if _, err := svc.Month(ctx, uid, 2024, 13); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("Month(13) err = %v", err)
	}

	up, err := svc.Upcoming(ctx, uid, 2)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if got := titles(up); len(got) != 2 || got[0] != "standup" || got[1] != "saturday" {
		t.Errorf("Upcoming = %v", got)
	}
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	svc, uid := setup(t)
	ctx := context.Background()
	start := now.Add(time.Hour)

	e, err := svc.Create(ctx, uid, CreateInput{Title: "Lunch", StartTime: start, RecurrenceRule: "FREQ=WEEKLY"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !e.EndTime.Equal(start.Add(time.Hour)) || e.RecurrenceRule != "FREQ=WEEKLY" {
		t.Errorf("event = %+v", e)
	}

	if _, err := svc.Create(ctx, uid, CreateInput{Title: "x"}); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("missing start err = %v", err)
	}
	if _, err := svc.Create(ctx, uid, CreateInput{Title: "x", StartTime: start, EndTime: start.Add(-time.Minute)}); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("end before start err = %v", err)
	}
}

func TestUpdate_MovingStartKeepsLength(t *testing.T) {
	svc, uid := setup(t)
	ctx := context.Background()
	e := mustCreate(t, svc, uid, "review", now.Add(time.Hour), 90*time.Minute)

	newStart := now.Add(24 * time.Hour)
	got, err := svc.Update(ctx, uid, e.ID, storage.EventUpdate{StartTime: &newStart})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.StartTime.Equal(newStart) || got.EndTime.Sub(got.StartTime) != 90*time.Minute {
		t.Errorf("updated = %v - %v", got.StartTime, got.EndTime)
	}

	if _, err := svc.Update(ctx, uid, "missing", storage.EventUpdate{StartTime: &newStart}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update(missing) err = %v", err)
	}
}
