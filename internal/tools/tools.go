// Package tools exposes the note, task, goal, habit and calendar services
// as functions the chat agent (and MCP clients) can call. Every call
// returns a JSON envelope {success, message, data?|error?}; failures never
// escape as Go errors.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	gschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"

	"github.com/kshitijshah95/ai-assistant/internal/calendar"
	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/goals"
	"github.com/kshitijshah95/ai-assistant/internal/habits"
	"github.com/kshitijshah95/ai-assistant/internal/llm"
	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/tasks"
)

// Result is the envelope every tool call returns.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(message string, data any) (Result, error) {
	return Result{Success: true, Message: message, Data: data}, nil
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// Services are the domain services tools call into.
type Services struct {
	Notes    *notes.Service
	Tasks    *tasks.Service
	Goals    *goals.Service
	Habits   *habits.Service
	Calendar *calendar.Service

	// Clock resolves relative dates ("tomorrow at 3pm"). Nil means the
	// system clock.
	Clock clock.Clock
}

// env is what a tool handler runs against: the services and the user the
// registry is bound to.
type env struct {
	Services
	userID string
}

func (e env) now() time.Time {
	return e.Clock.Now()
}

type handler func(ctx context.Context, e env, raw json.RawMessage) (Result, error)

// Tool describes one callable tool.
type Tool struct {
	Name        string
	Description string
	// Schema is the JSON Schema of the tool's arguments object.
	Schema map[string]any

	validator *gschema.Resolved
	run       handler
}

// define builds a Tool whose arguments are decoded into A. The argument
// schema is reflected from A: fields without omitempty are required and
// jsonschema tags add enums and descriptions.
func define[A any](name, description string, fn func(ctx context.Context, e env, args A) (Result, error)) Tool {
	schema, validator, err := reflectSchema(new(A))
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %s: %v", name, err))
	}
	return Tool{
		Name:        name,
		Description: description,
		Schema:      schema,
		validator:   validator,
		run: func(ctx context.Context, e env, raw json.RawMessage) (Result, error) {
			var args A
			if err := json.Unmarshal(raw, &args); err != nil {
				return Result{}, fmt.Errorf("invalid arguments: %w", err)
			}
			return fn(ctx, e, args)
		},
	}
}

var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: true,
}

func reflectSchema(v any) (map[string]any, *gschema.Resolved, error) {
	raw, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, nil, err
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, nil, err
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}

	clean, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, err
	}
	var gs gschema.Schema
	if err := json.Unmarshal(clean, &gs); err != nil {
		return nil, nil, err
	}
	resolved, err := gs.Resolve(nil)
	if err != nil {
		return nil, nil, err
	}
	return schema, resolved, nil
}

// catalog is built once; registries only bind it to a user.
var catalog = sync.OnceValue(func() []Tool {
	var all []Tool
	all = append(all, noteTools()...)
	all = append(all, taskTools()...)
	all = append(all, goalTools()...)
	all = append(all, habitTools()...)
	all = append(all, calendarTools()...)
	return all
})

// Registry is the tool set bound to one user.
type Registry struct {
	env    env
	tools  []Tool
	byName map[string]Tool
	logger *slog.Logger
}

// NewRegistry binds every tool to userID.
func NewRegistry(svc Services, userID string) *Registry {
	if svc.Clock == nil {
		svc.Clock = clock.Real{}
	}
	all := catalog()
	byName := make(map[string]Tool, len(all))
	for _, t := range all {
		byName[t.Name] = t
	}
	return &Registry{
		env:    env{Services: svc, userID: userID},
		tools:  all,
		byName: byName,
		logger: slog.Default().With("component", "tools", "user_id", userID),
	}
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []Tool {
	return r.tools
}

// Names returns the tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Definitions describes the tools to an LLM provider.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = llm.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Schema}
	}
	return defs
}

// Execute runs the named tool with JSON arguments and returns the encoded
// envelope. Unknown tools, invalid arguments, service errors and panics all
// come back as {success:false, error}.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (out string) {
	t, found := r.byName[name]
	if !found {
		return encode(failure(fmt.Errorf("unknown tool %q", name)))
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			out = encode(failure(fmt.Errorf("tool %s failed unexpectedly", name)))
		}
	}()

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return encode(failure(fmt.Errorf("invalid arguments: %w", err)))
	}
	if err := t.validator.Validate(instance); err != nil {
		return encode(failure(fmt.Errorf("invalid arguments: %w", err)))
	}

	start := time.Now()
	res, err := t.run(ctx, r.env, args)
	if err != nil {
		r.logger.Debug("tool failed", "tool", name, "error", err)
		return encode(failure(err))
	}
	r.logger.Debug("tool executed", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return encode(res)
}

func encode(res Result) string {
	b, err := json.Marshal(res)
	if err != nil {
		b, _ = json.Marshal(failure(fmt.Errorf("encoding result: %w", err)))
	}
	return string(b)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

const (
	dateLayout     = "Jan 2, 2006"
	dateTimeLayout = "Mon Jan 2, 2006 3:04 PM"
)
