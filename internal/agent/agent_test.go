package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/llm"
)

// scriptedProvider replays one step per ChatStream call.
type scriptedProvider struct {
	steps    []step
	requests []llm.Request
}

type step struct {
	chunks []string
	resp   llm.Response
	err    error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) ChatStream(ctx context.Context, req llm.Request, onChunk llm.ChunkFunc) (llm.Response, error) {
	req.Messages = append([]llm.Message(nil), req.Messages...)
	p.requests = append(p.requests, req)
	if len(p.steps) == 0 {
		return llm.Response{}, errors.New("script exhausted")
	}
	s := p.steps[0]
	p.steps = p.steps[1:]
	for _, c := range s.chunks {
		onChunk(c)
	}
	return s.resp, s.err
}

type fakeTools struct {
	calls []string
}

func (f *fakeTools) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{{Name: "list_tasks", Description: "List tasks", Parameters: map[string]any{"type": "object"}}}
}

func (f *fakeTools) Execute(_ context.Context, name string, args json.RawMessage) string {
	f.calls = append(f.calls, name+" "+string(args))
	return `{"success":true,"message":"Found 2 tasks"}`
}

func toolStep(id string) step {
	return step{resp: llm.Response{
		ToolCalls:  []llm.ToolCall{{ID: id, Name: "list_tasks", Arguments: json.RawMessage(`{"limit":5}`)}},
		StopReason: "tool_calls",
	}}
}

var fixedNow = clock.Fixed(time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC))

func newTestAgent(maxIter int) *Agent {
	return NewWithClock(Config{MaxIterations: maxIter}, fixedNow)
}

func userTurn(p llm.Provider, tools ToolExecutor, chunks *[]string) Turn {
	return Turn{
		Provider: p,
		History:  []llm.Message{{Role: llm.RoleUser, Content: "what's on my list?"}},
		Tools:    tools,
		OnChunk:  func(s string) { *chunks = append(*chunks, s) },
	}
}

func TestRun_PlainAnswer(t *testing.T) {
	p := &scriptedProvider{steps: []step{{chunks: []string{"Hi", " there"}, resp: llm.Response{Content: "Hi there"}}}}
	var chunks []string
	res, err := newTestAgent(0).Run(context.Background(), userTurn(p, &fakeTools{}, &chunks))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Content != "Hi there" || res.Iterations != 1 || len(res.ToolCalls) != 0 {
		t.Errorf("result = %+v", res)
	}
	if strings.Join(chunks, "") != "Hi there" {
		t.Errorf("chunks = %q", chunks)
	}

	req := p.requests[0]
	if req.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "list_tasks" {
		t.Errorf("tools = %+v", req.Tools)
	}
	if !strings.Contains(req.System, "Monday, June 10, 2024") {
		t.Errorf("system prompt lacks the date: %q", req.System[len(req.System)-80:])
	}
}

func TestRun_ToolLoop(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{chunks: []string{"Let me check."}, resp: llm.Response{
			Content:   "Let me check.",
			ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "list_tasks", Arguments: json.RawMessage(`{"limit":5}`)}},
		}},
		{chunks: []string{"You have ", "2 tasks."}, resp: llm.Response{Content: "You have 2 tasks."}},
	}}
	tools := &fakeTools{}
	var chunks []string
	res, err := newTestAgent(0).Run(context.Background(), userTurn(p, tools, &chunks))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "Let me check.\n\nYou have 2 tasks."
	if res.Content != want {
		t.Errorf("Content = %q, want %q", res.Content, want)
	}
	if strings.Join(chunks, "") != want {
		t.Errorf("streamed %q, want %q", strings.Join(chunks, ""), want)
	}
	if res.Iterations != 2 || len(res.ToolCalls) != 1 || res.ToolCalls[0].Output == "" {
		t.Errorf("result = %+v", res)
	}
	if len(tools.calls) != 1 || tools.calls[0] != `list_tasks {"limit":5}` {
		t.Errorf("tool calls = %v", tools.calls)
	}

	second := p.requests[1].Messages
	if len(second) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second))
	}
	if second[1].Role != llm.RoleAssistant || len(second[1].ToolCalls) != 1 {
		t.Errorf("assistant message = %+v", second[1])
	}
	if second[2].Role != llm.RoleTool || second[2].ToolCallID != "call_1" || !strings.Contains(second[2].Content, "Found 2 tasks") {
		t.Errorf("tool message = %+v", second[2])
	}
}

func TestRun_FinalFlushWithoutChunks(t *testing.T) {
	p := &scriptedProvider{steps: []step{{resp: llm.Response{Content: "All done."}}}}
	var chunks []string
	res, err := newTestAgent(0).Run(context.Background(), userTurn(p, nil, &chunks))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Content != "All done." || len(chunks) != 1 || chunks[0] != "All done." {
		t.Errorf("content %q, chunks %q", res.Content, chunks)
	}
}

func TestRun_IterationLimit(t *testing.T) {
	p := &scriptedProvider{}
	for i := range 5 {
		p.steps = append(p.steps, toolStep("call_"+string(rune('a'+i))))
	}
	tools := &fakeTools{}
	var chunks []string
	res, err := newTestAgent(3).Run(context.Background(), userTurn(p, tools, &chunks))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Iterations != 3 || len(p.requests) != 3 {
		t.Errorf("iterations %d, requests %d; want 3 each", res.Iterations, len(p.requests))
	}
	// Every executed call must have its result seen by a later request.
	if len(tools.calls) != 2 || len(res.ToolCalls) != 2 {
		t.Errorf("tool calls executed %d, recorded %d; want 2", len(tools.calls), len(res.ToolCalls))
	}
	if res.Content != exhaustedReply || strings.Join(chunks, "") != exhaustedReply {
		t.Errorf("content = %q", res.Content)
	}
}

func TestRun_ProviderErrorKeepsPartialText(t *testing.T) {
	boom := errors.New("upstream 500")
	p := &scriptedProvider{steps: []step{{chunks: []string{"Partial"}, err: boom}}}
	var chunks []string
	res, err := newTestAgent(0).Run(context.Background(), userTurn(p, nil, &chunks))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if res.Content != "Partial" {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestRun_CancelledBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedProvider{steps: []step{toolStep("call_1"), {resp: llm.Response{Content: "never"}}}}
	tools := &cancellingTools{cancel: cancel}
	var chunks []string
	_, err := newTestAgent(0).Run(ctx, userTurn(p, tools, &chunks))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(p.requests) != 1 {
		t.Errorf("provider called %d times after cancel", len(p.requests))
	}
}

type cancellingTools struct {
	fakeTools
	cancel context.CancelFunc
}

func (c *cancellingTools) Execute(ctx context.Context, name string, args json.RawMessage) string {
	c.cancel()
	return c.fakeTools.Execute(ctx, name, args)
}

func TestRun_NoProvider(t *testing.T) {
	if _, err := newTestAgent(0).Run(context.Background(), Turn{}); err == nil {
		t.Error("expected an error without a provider")
	}
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt(time.Date(2024, 12, 25, 9, 5, 0, 0, time.UTC))
	for _, want := range []string{"Wednesday, December 25, 2024 09:05", "Notes", "Calendar", "Markdown"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
