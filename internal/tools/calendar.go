package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/calendar"
	"github.com/kshitijshah95/ai-assistant/internal/dateparse"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

var errUnparsedDateTime = errors.New("Could not parse the date/time. Please be more specific.")

type scheduleEventArgs struct {
	Title       string `json:"title" jsonschema_description:"Title of the event"`
	DateTime    string `json:"dateTime" jsonschema_description:"When the event happens, e.g. tomorrow at 3pm or monday at 10am"`
	Duration    string `json:"duration,omitempty" jsonschema_description:"How long it lasts, e.g. 2 hours or 30 minutes (default 1 hour)"`
	Description string `json:"description,omitempty" jsonschema_description:"Notes for the event"`
}

type upcomingEventsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"minimum=1,maximum=50" jsonschema_description:"Number of events (default 5)"`
}

type updateEventArgs struct {
	EventID     string  `json:"eventId" jsonschema_description:"The ID of the event to update"`
	Title       *string `json:"title,omitempty" jsonschema_description:"New title"`
	DateTime    *string `json:"dateTime,omitempty" jsonschema_description:"New date and time, e.g. friday at 2pm for 2 hours"`
	Description *string `json:"description,omitempty" jsonschema_description:"New description"`
}

type eventIDArgs struct {
	EventID string `json:"eventId" jsonschema_description:"The ID of the event"`
}

type eventItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Description string    `json:"description,omitempty"`
}

func toEventItems(events []storage.Event) []eventItem {
	items := make([]eventItem, len(events))
	for i, ev := range events {
		items[i] = toEventItem(ev)
	}
	return items
}

func toEventItem(ev storage.Event) eventItem {
	return eventItem{ID: ev.ID, Title: ev.Title, StartTime: ev.StartTime, EndTime: ev.EndTime, Description: ev.Description}
}

func calendarTools() []Tool {
	return []Tool{
		define("schedule_event",
			"Schedule a new calendar event. Use this when the user wants to add something to their calendar.",
			scheduleEvent),
		define("get_today_events",
			"Get today's events. Use this when the user asks what's on their calendar today.",
			todayEvents),
		define("get_week_events",
			"Get this week's events, Sunday to Saturday.",
			weekEvents),
		define("get_upcoming_events",
			"Get the next events on the calendar.",
			upcomingEvents),
		define("update_event",
			"Update a calendar event. Use this when the user wants to rename or reschedule an event.",
			updateEvent),
		define("delete_event",
			"Delete a calendar event. Use this when the user cancels an event.",
			deleteEvent),
	}
}

func scheduleEvent(ctx context.Context, e env, a scheduleEventArgs) (Result, error) {
	text := a.DateTime
	if d := strings.TrimSpace(a.Duration); d != "" {
		text += " for " + d
	}
	span, parsed := dateparse.EventTime(text, e.now())
	if !parsed {
		return Result{}, errUnparsedDateTime
	}
	ev, err := e.Calendar.Create(ctx, e.userID, calendar.CreateInput{
		Title:       a.Title,
		Description: a.Description,
		StartTime:   span.Start,
		EndTime:     span.End,
	})
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Event %q scheduled for %s", ev.Title, ev.StartTime.Format(dateTimeLayout)),
		map[string]any{"event": toEventItem(ev)})
}

func todayEvents(ctx context.Context, e env, _ noArgs) (Result, error) {
	events, err := e.Calendar.Day(ctx, e.userID, e.now())
	if err != nil {
		return Result{}, err
	}
	items := toEventItems(events)
	if len(items) == 0 {
		return ok("No events scheduled for today.", map[string]any{"events": items})
	}
	return ok(fmt.Sprintf("You have %d %s today", len(items), plural(len(items), "event", "events")),
		map[string]any{"events": items})
}

func weekEvents(ctx context.Context, e env, _ noArgs) (Result, error) {
	events, err := e.Calendar.Week(ctx, e.userID, e.now())
	if err != nil {
		return Result{}, err
	}
	items := toEventItems(events)
	if len(items) == 0 {
		return ok("No events scheduled for this week.", map[string]any{"events": items})
	}
	return ok(fmt.Sprintf("You have %d %s this week", len(items), plural(len(items), "event", "events")),
		map[string]any{"events": items})
}

func upcomingEvents(ctx context.Context, e env, a upcomingEventsArgs) (Result, error) {
	limit := a.Limit
	if limit <= 0 {
		limit = 5
	}
	events, err := e.Calendar.Upcoming(ctx, e.userID, limit)
	if err != nil {
		return Result{}, err
	}
	items := toEventItems(events)
	if len(items) == 0 {
		return ok("No upcoming events scheduled.", map[string]any{"events": items})
	}
	return ok(fmt.Sprintf("Next %d upcoming %s", len(items), plural(len(items), "event", "events")),
		map[string]any{"events": items})
}

func updateEvent(ctx context.Context, e env, a updateEventArgs) (Result, error) {
	u := storage.EventUpdate{Title: a.Title}
	if a.Description != nil {
		u.Description = storage.Some(*a.Description)
	}
	if a.DateTime != nil && strings.TrimSpace(*a.DateTime) != "" {
		span, parsed := dateparse.EventTime(*a.DateTime, e.now())
		if !parsed {
			return Result{}, errUnparsedDateTime
		}
		u.StartTime, u.EndTime = &span.Start, &span.End
	}
	ev, err := e.Calendar.Update(ctx, e.userID, a.EventID, u)
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Event %q updated", ev.Title), map[string]any{"event": toEventItem(ev)})
}

func deleteEvent(ctx context.Context, e env, a eventIDArgs) (Result, error) {
	if err := e.Calendar.Delete(ctx, e.userID, a.EventID); err != nil {
		return Result{}, err
	}
	return ok("Event deleted successfully", nil)
}
