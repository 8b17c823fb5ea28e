// Package habits is the habit service. Streaks and today's completion are
// derived from the log history on every read.
package habits

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// Habit frequencies.
var Frequencies = []string{"daily", "weekly", "custom"}

const (
	detailLogs  = 30
	defaultDays = 30
)

// Store defines the storage operations the Service needs.
// Implemented by storage.Store.
type Store interface {
	CreateHabit(ctx context.Context, h storage.Habit) (storage.Habit, error)
	GetHabit(ctx context.Context, userID, id string) (storage.Habit, error)
	UpdateHabit(ctx context.Context, userID, id string, u storage.HabitUpdate) (storage.Habit, error)
	DeleteHabit(ctx context.Context, userID, id string) error
	ListHabits(ctx context.Context, userID string) ([]storage.Habit, error)
	UpsertHabitLog(ctx context.Context, l storage.HabitLog) (storage.HabitLog, error)
	HabitLogs(ctx context.Context, habitID string, since time.Time) ([]storage.HabitLog, error)
}

// Habit is a stored habit with its derived streak state. Logs is filled by
// Get only.
type Habit struct {
	storage.Habit
	Streak         int                `json:"streak"`
	CompletedToday bool               `json:"completedToday"`
	Logs           []storage.HabitLog `json:"logs,omitempty"`
}

// Stats summarizes the last 30 days of a habit.
type Stats struct {
	Streak         int `json:"streak"`
	CompletedDays  int `json:"completedDays"`
	TotalDays      int `json:"totalDays"`
	CompletionRate int `json:"completionRate"`
}

// TodayItem is one row of the daily habit checklist.
type TodayItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CompletedToday bool   `json:"completedToday"`
	Streak         int    `json:"streak"`
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

// Streak counts consecutive completed days ending today. Logs are walked
// newest first against an expected date that moves back one day per match.
// A log dated before the expected date ends the walk; a not-completed log
// on the expected date is skipped, so the next older day ends it. When
// nothing is logged for today yet the walk starts at yesterday, so an
// unlogged today does not zero a running streak.
func Streak(logs []storage.HabitLog, today time.Time) int {
	sorted := slices.Clone(logs)
	slices.SortFunc(sorted, func(a, b storage.HabitLog) int {
		return dateOf(b.LoggedDate).Compare(dateOf(a.LoggedDate))
	})

	expected := dateOf(today)
	if !slices.ContainsFunc(sorted, func(l storage.HabitLog) bool { return dateOf(l.LoggedDate).Equal(expected) }) {
		expected = expected.AddDate(0, 0, -1)
	}

	streak := 0
	for _, l := range sorted {
		d := dateOf(l.LoggedDate)
		switch {
		case d.Equal(expected) && l.Completed:
			streak++
			expected = expected.AddDate(0, 0, -1)
		case d.Before(expected):
			return streak
		}
	}
	return streak
}

// CompletedToday reports whether a completed log exists for today.
func CompletedToday(logs []storage.HabitLog, today time.Time) bool {
	for _, l := range logs {
		if l.Completed && clock.SameDay(l.LoggedDate, today) {
			return true
		}
	}
	return false
}

// dateOf maps t's calendar date, read in t's own zone, onto a UTC midnight
// so dates from different zones compare by day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateInput holds the fields accepted when creating a habit.
type CreateInput struct {
	Name      string          `json:"name"`
	Frequency string          `json:"frequency"`
	Schedule  json.RawMessage `json:"schedule"`
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Habit, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Habit{}, fmt.Errorf("%w: name is required", storage.ErrInvalid)
	}
	if err := checkFrequency(in.Frequency); err != nil {
		return Habit{}, err
	}
	if len(in.Schedule) > 0 && !json.Valid(in.Schedule) {
		return Habit{}, fmt.Errorf("%w: schedule must be valid JSON", storage.ErrInvalid)
	}
	h, err := s.store.CreateHabit(ctx, storage.Habit{
		UserID:    userID,
		Name:      name,
		Frequency: in.Frequency,
		Schedule:  in.Schedule,
	})
	if err != nil {
		return Habit{}, err
	}
	return Habit{Habit: h}, nil
}

// Get returns the habit with its 30 most recent logs and streak state.
func (s *Service) Get(ctx context.Context, userID, id string) (Habit, error) {
	h, err := s.store.GetHabit(ctx, userID, id)
	if err != nil {
		return Habit{}, err
	}
	out, logs, err := s.withStreak(ctx, h)
	if err != nil {
		return Habit{}, err
	}
	if len(logs) > detailLogs {
		logs = logs[:detailLogs]
	}
	out.Logs = logs
	return out, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, u storage.HabitUpdate) (Habit, error) {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return Habit{}, fmt.Errorf("%w: name cannot be empty", storage.ErrInvalid)
		}
		u.Name = &name
	}
	if u.Frequency != nil {
		if err := checkFrequency(*u.Frequency); err != nil {
			return Habit{}, err
		}
	}
	h, err := s.store.UpdateHabit(ctx, userID, id, u)
	if err != nil {
		return Habit{}, err
	}
	out, _, err := s.withStreak(ctx, h)
	return out, err
}

// Delete removes the habit and its logs.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteHabit(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID string) ([]Habit, error) {
	stored, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Habit, 0, len(stored))
	for _, h := range stored {
		withS, _, err := s.withStreak(ctx, h)
		if err != nil {
			return nil, err
		}
		out = append(out, withS)
	}
	return out, nil
}

// LogInput describes one habit log. A nil Date means today and a nil
// Completed means true.
type LogInput struct {
	Date      *time.Time `json:"date"`
	Completed *bool      `json:"completed"`
	Notes     string     `json:"notes"`
}

// Log records the habit for a day. Logging the same day again overwrites
// the earlier entry.
func (s *Service) Log(ctx context.Context, userID, habitID string, in LogInput) (storage.HabitLog, error) {
	if _, err := s.store.GetHabit(ctx, userID, habitID); err != nil {
		return storage.HabitLog{}, err
	}
	day := s.clock.Now()
	if in.Date != nil {
		day = *in.Date
	}
	completed := true
	if in.Completed != nil {
		completed = *in.Completed
	}
	return s.store.UpsertHabitLog(ctx, storage.HabitLog{
		HabitID:    habitID,
		LoggedDate: clock.StartOfDay(day),
		Completed:  completed,
		Notes:      in.Notes,
	})
}

// Logs returns the habit's logs for the last days days, newest first.
func (s *Service) Logs(ctx context.Context, userID, habitID string, days int) ([]storage.HabitLog, error) {
	if _, err := s.store.GetHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = defaultDays
	}
	since := clock.StartOfDay(s.clock.Now()).AddDate(0, 0, -days)
	return s.store.HabitLogs(ctx, habitID, since)
}

// Stats reports the current streak and the completion rate over the last
// 30 days of logged entries.
func (s *Service) Stats(ctx context.Context, userID, habitID string) (Stats, error) {
	h, err := s.store.GetHabit(ctx, userID, habitID)
	if err != nil {
		return Stats{}, err
	}
	withS, _, err := s.withStreak(ctx, h)
	if err != nil {
		return Stats{}, err
	}
	recent, err := s.Logs(ctx, userID, habitID, defaultDays)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Streak: withS.Streak, TotalDays: len(recent)}
	for _, l := range recent {
		if l.Completed {
			st.CompletedDays++
		}
	}
	if st.TotalDays > 0 {
		st.CompletionRate = int(math.Round(100 * float64(st.CompletedDays) / float64(st.TotalDays)))
	}
	return st, nil
}

// TodayStatus lists every habit with whether it is done today.
func (s *Service) TodayStatus(ctx context.Context, userID string) ([]TodayItem, error) {
	habits, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]TodayItem, len(habits))
	for i, h := range habits {
		items[i] = TodayItem{ID: h.ID, Name: h.Name, CompletedToday: h.CompletedToday, Streak: h.Streak}
	}
	return items, nil
}

func (s *Service) withStreak(ctx context.Context, h storage.Habit) (Habit, []storage.HabitLog, error) {
	logs, err := s.store.HabitLogs(ctx, h.ID, time.Time{})
	if err != nil {
		return Habit{}, nil, fmt.Errorf("loading habit logs: %w", err)
	}
	today := s.clock.Now()
	return Habit{
		Habit:          h,
		Streak:         Streak(logs, today),
		CompletedToday: CompletedToday(logs, today),
	}, logs, nil
}

func checkFrequency(f string) error {
	if f == "" || slices.Contains(Frequencies, f) {
		return nil
	}
	return fmt.Errorf("%w: frequency must be one of %s", storage.ErrInvalid, strings.Join(Frequencies, ", "))
}
