package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kshitijshah95/ai-assistant/internal/clock"
	"github.com/kshitijshah95/ai-assistant/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	deps := newTestDeps(t)
	u, err := deps.Conversations.DefaultUser(context.Background())
	if err != nil {
		t.Fatalf("DefaultUser: %v", err)
	}
	return tools.NewRegistry(tools.Services{
		Notes:    deps.Notes,
		Tasks:    deps.Tasks,
		Goals:    deps.Goals,
		Habits:   deps.Habits,
		Calendar: deps.Calendar,
		Clock:    clock.Fixed(testNow),
	}, u.ID)
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_CreateAndListTasks(t *testing.T) {
	reg := newTestRegistry(t)

	res, err := mcpToolHandler(reg, "create_task")(context.Background(), makeCallToolRequest("create_task", map[string]any{
		"title":    "Renew passport",
		"priority": "high",
		"dueDate":  "tomorrow",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, res))
	}
	if text := toolText(t, res); !strings.Contains(text, `Task \"Renew passport\" created successfully (due: Jun 11, 2024)`) {
		t.Errorf("result = %s", text)
	}

	res, err = mcpToolHandler(reg, "list_tasks")(context.Background(), makeCallToolRequest("list_tasks", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Tasks []map[string]any `json:"tasks"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(toolText(t, res)), &env); err != nil {
		t.Fatal(err)
	}
	if !env.Success || len(env.Data.Tasks) != 1 {
		t.Errorf("list_tasks = %+v", env)
	}
}

func TestMCPTool_FailureIsError(t *testing.T) {
	reg := newTestRegistry(t)

	res, err := mcpToolHandler(reg, "complete_task")(context.Background(), makeCallToolRequest("complete_task", map[string]any{
		"taskId": "missing",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError")
	}
	if text := toolText(t, res); !strings.Contains(text, "task not found") {
		t.Errorf("result = %s", text)
	}

	res, _ = mcpToolHandler(reg, "create_task")(context.Background(), makeCallToolRequest("create_task", map[string]any{}))
	if !res.IsError || !strings.Contains(toolText(t, res), "invalid arguments") {
		t.Errorf("missing title accepted: %s", toolText(t, res))
	}
}

func TestMCPResource_TodayTasks(t *testing.T) {
	reg := newTestRegistry(t)
	mcpToolHandler(reg, "create_task")(context.Background(), makeCallToolRequest("create_task", map[string]any{
		"title": "Call the bank", "dueDate": "today",
	}))

	req := mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: "assistant://tasks/today"}}
	contents, err := mcpToolResource(reg, "get_today_tasks")(context.Background(), req)
	if err != nil {
		t.Fatalf("resource error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "assistant://tasks/today" || !strings.Contains(tc.Text, "Call the bank") {
		t.Errorf("contents = %+v", tc)
	}
}

func TestMCPServer_ListsEveryTool(t *testing.T) {
	reg := newTestRegistry(t)
	s := NewMCPServer(reg, "test")
	ctx := context.Background()

	s.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`))
	resp := s.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Result struct {
			Tools []struct {
				Name        string         `json:"name"`
				InputSchema map[string]any `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
	if len(out.Result.Tools) != len(reg.Tools()) {
		t.Fatalf("listed %d tools, want %d", len(out.Result.Tools), len(reg.Tools()))
	}
	for _, tool := range out.Result.Tools {
		if tool.InputSchema["type"] != "object" {
			t.Errorf("%s schema = %v", tool.Name, tool.InputSchema)
		}
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	reg := newTestRegistry(t)
	create := mcpToolHandler(reg, "create_note")
	search := mcpToolHandler(reg, "search_notes")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 5 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := create(context.Background(), makeCallToolRequest("create_note", map[string]any{"content": "concurrent content"})); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := search(context.Background(), makeCallToolRequest("search_notes", map[string]any{"query": "concurrent"})); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}
