package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kshitijshah95/ai-assistant/internal/tools"
)

// MCPTools is the tool set served over MCP. Implemented by tools.Registry.
type MCPTools interface {
	Tools() []tools.Tool
	Execute(ctx context.Context, name string, args json.RawMessage) string
}

// mcpResources are read-only views backed by argument-less tools.
var mcpResources = []struct {
	uri, name, description, tool string
}{
	{"assistant://tasks/today", "Today's Tasks", "Tasks due today plus overdue ones", "get_today_tasks"},
	{"assistant://habits/today", "Today's Habits", "Habits with today's completion status", "get_today_habits"},
	{"assistant://calendar/today", "Today's Events", "Calendar events for today", "get_today_events"},
	{"assistant://notes/categories", "Note Categories", "Note categories with counts", "get_note_categories"},
}

// NewMCPServer creates an MCP server exposing every assistant tool, with
// the same schemas and result envelopes the chat agent sees.
func NewMCPServer(reg MCPTools, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"ai-assistant",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Personal assistant: notes, tasks, goals, habits and calendar."),
		server.WithRecovery(),
	)

	for _, t := range reg.Tools() {
		schema, err := json.Marshal(t.Schema)
		if err != nil {
			// Schemas are reflected from Go structs at startup.
			panic(fmt.Sprintf("encoding schema for %s: %v", t.Name, err))
		}
		s.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, schema), mcpToolHandler(reg, t.Name))
	}

	for _, res := range mcpResources {
		s.AddResource(
			mcp.NewResource(res.uri, res.name,
				mcp.WithResourceDescription(res.description),
				mcp.WithMIMEType("application/json"),
			),
			mcpToolResource(reg, res.tool),
		)
	}
	return s
}

func mcpToolHandler(reg MCPTools, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetRawArguments())
		if err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		out := reg.Execute(ctx, name, args)

		var env struct {
			Success bool `json:"success"`
		}
		if err := json.Unmarshal([]byte(out), &env); err == nil && !env.Success {
			return mcpError(out), nil
		}
		return mcpText(out), nil
	}
}

func mcpToolResource(reg MCPTools, tool string) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		out := reg.Execute(ctx, tool, nil)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     out,
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
