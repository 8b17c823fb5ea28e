// Package agent runs the tool-calling loop behind a chat turn.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/llm"
)

const (
	DefaultMaxIterations = 10
	DefaultTemperature   = 0.7
)

// exhaustedReply is sent when the iteration bound is hit before the model
// produced any text.
const exhaustedReply = "I wasn't able to finish that within the allowed number of steps. Could you narrow the request down?"

// ToolExecutor is the tool set offered to the model.
// Implemented by tools.Registry.
type ToolExecutor interface {
	Definitions() []llm.ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) string
}

// Turn is one user message to answer. History holds the conversation so far,
// oldest first, ending with the new user message.
type Turn struct {
	Provider llm.Provider
	History  []llm.Message
	Tools    ToolExecutor
	OnChunk  llm.ChunkFunc
}

// ToolCall records one tool invocation made during a turn.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Output    string          `json:"output"`
}

// Result is the outcome of a turn. Content is exactly the text streamed to
// OnChunk.
type Result struct {
	Content    string
	Iterations int
	ToolCalls  []ToolCall
}

type Config struct {
	MaxIterations int
	Temperature   float64
	MaxTokens     int
}

// Agent is stateless across turns; one value serves every session.
type Agent struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
}

// New creates an Agent. Zero config fields take the defaults.
func New(cfg Config) *Agent {
	return NewWithClock(cfg, clock.Real{})
}

// NewWithClock creates an Agent whose system prompt dates come from c.
func NewWithClock(cfg Config, c clock.Clock) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &Agent{cfg: cfg, clock: c, logger: slog.Default().With("component", "agent")}
}

// Run answers the last message of t.History. Each iteration streams one
// completion; when the model asks for tools their envelopes are appended and
// the model is called again. The loop ends on an answer without tool calls
// or after MaxIterations, keeping whatever text was produced. Tool calls
// requested in the final allowed iteration are not executed.
//
// On error Result still carries the text streamed so far.
func (a *Agent) Run(ctx context.Context, t Turn) (Result, error) {
	if t.Provider == nil {
		return Result{}, errors.New("agent: no provider")
	}

	var defs []llm.ToolDefinition
	if t.Tools != nil {
		defs = t.Tools.Definitions()
	}
	msgs := make([]llm.Message, len(t.History), len(t.History)+2*a.cfg.MaxIterations)
	copy(msgs, t.History)

	var res Result
	var content strings.Builder
	separate := false
	emit := func(s string) {
		if s == "" {
			return
		}
		if separate {
			// Text from an earlier iteration precedes this one.
			s = "\n\n" + s
			separate = false
		}
		content.WriteString(s)
		if t.OnChunk != nil {
			t.OnChunk(s)
		}
	}

	req := llm.Request{
		System:      SystemPrompt(a.clock.Now()),
		Tools:       defs,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}

	for res.Iterations < a.cfg.MaxIterations {
		res.Iterations++
		req.Messages = msgs
		separate = content.Len() > 0

		streamed := false
		resp, err := t.Provider.ChatStream(ctx, req, func(delta string) {
			if delta != "" {
				streamed = true
				emit(delta)
			}
		})
		if err != nil {
			res.Content = content.String()
			return res, err
		}
		if !streamed {
			// Providers may deliver the whole answer at the end.
			emit(resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			res.Content = content.String()
			a.logger.Debug("turn finished", "iterations", res.Iterations, "tool_calls", len(res.ToolCalls))
			return res, nil
		}

		if res.Iterations == a.cfg.MaxIterations {
			// No call is left to report results to the model, so tools
			// requested now are not run.
			a.logger.Debug("skipping tool calls on final iteration", "requested", len(resp.ToolCalls))
			break
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			var out string
			if t.Tools == nil {
				out = `{"success":false,"error":"no tools available"}`
			} else {
				out = t.Tools.Execute(ctx, call.Name, call.Arguments)
			}
			a.logger.Debug("tool call", "tool", call.Name, "iteration", res.Iterations)
			res.ToolCalls = append(res.ToolCalls, ToolCall{Name: call.Name, Arguments: call.Arguments, Output: out})
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, Content: out, ToolCallID: call.ID})
		}
		if err := ctx.Err(); err != nil {
			res.Content = content.String()
			return res, err
		}
	}

	a.logger.Warn("iteration limit reached", "max_iterations", a.cfg.MaxIterations, "tool_calls", len(res.ToolCalls))
	if strings.TrimSpace(content.String()) == "" {
		separate = content.Len() > 0
		emit(exhaustedReply)
	}
	res.Content = content.String()
	return res, nil
}
