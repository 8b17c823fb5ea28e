package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid is returned (wrapped) when input fails validation.
var ErrInvalid = errors.New("invalid input")

// NotFoundError names the entity that was missing. It matches ErrNotFound
// under errors.Is.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Nullable distinguishes an absent JSON field (Set == false) from an
// explicit null (Set == true, Valid == false) in partial updates.
type Nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns a Nullable holding v.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Valid: true, Value: v}
}

// Null returns a Nullable that clears the field.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Ptr returns the value as a pointer, nil when cleared.
func (n Nullable[T]) Ptr() *T {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	Role           string         `json:"role"` // "user", "assistant", "system"
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type NoteUpdate struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
}

type NoteFilter struct {
	Category string
	Tags     []string
	Limit    int
	Offset   int
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	GoalID      *string    `json:"goalId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type TaskUpdate struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *string              `json:"status"`
	Priority    *string              `json:"priority"`
	DueDate     Nullable[time.Time]  `json:"dueDate"`
	GoalID      Nullable[string]     `json:"goalId"`
}

type TaskFilter struct {
	Status    string
	Priority  string
	GoalID    string
	DueBefore *time.Time
	DueAfter  *time.Time
	Limit     int
	Offset    int
}

type TaskStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Overdue    int `json:"overdue"`
}

type Goal struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	TargetDate  *time.Time `json:"targetDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type GoalUpdate struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Status      *string             `json:"status"`
	TargetDate  Nullable[time.Time] `json:"targetDate"`
}

type Habit struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Name      string          `json:"name"`
	Frequency string          `json:"frequency"`
	Schedule  json.RawMessage `json:"schedule,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type HabitUpdate struct {
	Name      *string                   `json:"name"`
	Frequency *string                   `json:"frequency"`
	Schedule  Nullable[json.RawMessage] `json:"schedule"`
}

// HabitLog records one day of a habit. LoggedDate is a calendar date at
// midnight in the server's local zone.
type HabitLog struct {
	ID         string    `json:"id"`
	HabitID    string    `json:"habitId"`
	LoggedDate time.Time `json:"loggedDate"`
	Completed  bool      `json:"completed"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Event struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        time.Time      `json:"endTime"`
	RecurrenceRule string         `json:"recurrenceRule,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type EventUpdate struct {
	Title          *string          `json:"title"`
	Description    Nullable[string] `json:"description"`
	StartTime      *time.Time       `json:"startTime"`
	EndTime        *time.Time       `json:"endTime"`
	RecurrenceRule Nullable[string] `json:"recurrenceRule"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
