// Package calendar is the calendar event service. Recurrence rules are
// stored verbatim and never expanded.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

const defaultUpcoming = 10

// Store defines the storage operations the Service needs.
// Implemented by storage.Store.
type Store interface {
	CreateEvent(ctx context.Context, e storage.Event) (storage.Event, error)
	GetEvent(ctx context.Context, userID, id string) (storage.Event, error)
	UpdateEvent(ctx context.Context, userID, id string, u storage.EventUpdate) (storage.Event, error)
	DeleteEvent(ctx context.Context, userID, id string) error
	EventsInRange(ctx context.Context, userID string, start, end time.Time) ([]storage.Event, error)
	UpcomingEvents(ctx context.Context, userID string, now time.Time, limit int) ([]storage.Event, error)
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

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// CreateInput holds the fields accepted when creating an event. A zero End
// makes a one-hour event.
type CreateInput struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        time.Time      `json:"endTime"`
	RecurrenceRule string         `json:"recurrenceRule"`
	Metadata       map[string]any `json:"metadata"`
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (storage.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return storage.Event{}, fmt.Errorf("%w: title is required", storage.ErrInvalid)
	}
	if in.StartTime.IsZero() {
		return storage.Event{}, fmt.Errorf("%w: startTime is required", storage.ErrInvalid)
	}
	end := in.EndTime
	if end.IsZero() {
		end = in.StartTime.Add(time.Hour)
	}
	return s.store.CreateEvent(ctx, storage.Event{
		UserID:         userID,
		Title:          title,
		Description:    in.Description,
		StartTime:      in.StartTime,
		EndTime:        end,
		RecurrenceRule: in.RecurrenceRule,
		Metadata:       in.Metadata,
	})
}

func (s *Service) Get(ctx context.Context, userID, id string) (storage.Event, error) {
	return s.store.GetEvent(ctx, userID, id)
}

// Update applies a partial update. Moving only the start keeps the event's
// length.
func (s *Service) Update(ctx context.Context, userID, id string, u storage.EventUpdate) (storage.Event, error) {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return storage.Event{}, fmt.Errorf("%w: title cannot be empty", storage.ErrInvalid)
		}
		u.Title = &title
	}
	if u.StartTime != nil && u.EndTime == nil {
		cur, err := s.store.GetEvent(ctx, userID, id)
		if err != nil {
			return storage.Event{}, err
		}
		end := u.StartTime.Add(cur.EndTime.Sub(cur.StartTime))
		u.EndTime = &end
	}
	return s.store.UpdateEvent(ctx, userID, id, u)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteEvent(ctx, userID, id)
}

// Range returns events overlapping [start, end), earliest first.
func (s *Service) Range(ctx context.Context, userID string, start, end time.Time) ([]storage.Event, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end must be after start", storage.ErrInvalid)
	}
	return s.store.EventsInRange(ctx, userID, start, end)
}

// Day returns the events overlapping date's calendar day.
func (s *Service) Day(ctx context.Context, userID string, date time.Time) ([]storage.Event, error) {
	start := clock.StartOfDay(date)
	return s.store.EventsInRange(ctx, userID, start, start.AddDate(0, 0, 1))
}

// Today returns the events overlapping the current day.
func (s *Service) Today(ctx context.Context, userID string) ([]storage.Event, error) {
	return s.Day(ctx, userID, s.clock.Now())
}

// Week returns the events of the Sunday-to-Saturday week containing date.
func (s *Service) Week(ctx context.Context, userID string, date time.Time) ([]storage.Event, error) {
	start := WeekStart(date)
	return s.store.EventsInRange(ctx, userID, start, start.AddDate(0, 0, 7))
}

// Month returns the events of the given month in the clock's zone.
func (s *Service) Month(ctx context.Context, userID string, year int, month time.Month) ([]storage.Event, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month must be 1-12", storage.ErrInvalid)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, s.clock.Now().Location())
	return s.store.EventsInRange(ctx, userID, start, start.AddDate(0, 1, 0))
}

// Upcoming returns the next events starting from now. limit defaults to 10.
func (s *Service) Upcoming(ctx context.Context, userID string, limit int) ([]storage.Event, error) {
	if limit <= 0 {
		limit = defaultUpcoming
	}
	return s.store.UpcomingEvents(ctx, userID, s.clock.Now(), limit)
}

// WeekStart returns midnight of the Sunday starting t's week.
func WeekStart(t time.Time) time.Time {
	return clock.StartOfDay(t).AddDate(0, 0, -int(t.Weekday()))
}
