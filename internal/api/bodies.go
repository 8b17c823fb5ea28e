package api

import (
	"encoding/json"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/calendar"
	"github.com/kshitijshah95/ai-assistant/internal/goals"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
	"github.com/kshitijshah95/ai-assistant/internal/tasks"
)

// bodyTime is a request-body timestamp. It takes the same forms as query
// parameters: RFC 3339 or a bare YYYY-MM-DD date.
type bodyTime time.Time

func (t *bodyTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := parseTime(s)
	if err != nil {
		return err
	}
	*t = bodyTime(v)
	return nil
}

func (t *bodyTime) ptr() *time.Time {
	if t == nil {
		return nil
	}
	v := time.Time(*t)
	return &v
}

func nullableTime(n storage.Nullable[bodyTime]) storage.Nullable[time.Time] {
	return storage.Nullable[time.Time]{Set: n.Set, Valid: n.Valid, Value: time.Time(n.Value)}
}

// The request types below shadow the time fields of the service inputs
// they embed; everything else decodes into the embedded struct.

type taskCreateBody struct {
	tasks.CreateInput
	DueDate *bodyTime `json:"dueDate"`
}

func (b taskCreateBody) input() tasks.CreateInput {
	in := b.CreateInput
	in.DueDate = b.DueDate.ptr()
	return in
}

type taskUpdateBody struct {
	storage.TaskUpdate
	DueDate storage.Nullable[bodyTime] `json:"dueDate"`
}

func (b taskUpdateBody) update() storage.TaskUpdate {
	u := b.TaskUpdate
	u.DueDate = nullableTime(b.DueDate)
	return u
}

type goalCreateBody struct {
	goals.CreateInput
	TargetDate *bodyTime `json:"targetDate"`
}

func (b goalCreateBody) input() goals.CreateInput {
	in := b.CreateInput
	in.TargetDate = b.TargetDate.ptr()
	return in
}

type goalUpdateBody struct {
	storage.GoalUpdate
	TargetDate storage.Nullable[bodyTime] `json:"targetDate"`
}

func (b goalUpdateBody) update() storage.GoalUpdate {
	u := b.GoalUpdate
	u.TargetDate = nullableTime(b.TargetDate)
	return u
}

type eventCreateBody struct {
	calendar.CreateInput
	StartTime *bodyTime `json:"startTime"`
	EndTime   *bodyTime `json:"endTime"`
}

func (b eventCreateBody) input() calendar.CreateInput {
	in := b.CreateInput
	if t := b.StartTime.ptr(); t != nil {
		in.StartTime = *t
	}
	if t := b.EndTime.ptr(); t != nil {
		in.EndTime = *t
	}
	return in
}

type eventUpdateBody struct {
	storage.EventUpdate
	StartTime *bodyTime `json:"startTime"`
	EndTime   *bodyTime `json:"endTime"`
}

func (b eventUpdateBody) update() storage.EventUpdate {
	u := b.EventUpdate
	u.StartTime = b.StartTime.ptr()
	u.EndTime = b.EndTime.ptr()
	return u
}
