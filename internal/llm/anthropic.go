package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// Anthropic is a Provider backed by the Anthropic Messages API. It has no
// embedding endpoint; embeddings come from the registry's embedder.
type Anthropic struct {
	client    anthropicsdk.Client
	model     string
	maxTokens int
}

var _ Provider = (*Anthropic)(nil)

// NewAnthropic constructs an Anthropic provider.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(withTrailingSlash(cfg.BaseURL)))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Anthropic{
		client:    anthropicsdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

// ChatStream streams one completion, calling onChunk for every text delta.
// Tool calls are read from the accumulated final message.
func (a *Anthropic) ChatStream(ctx context.Context, req Request, onChunk ChunkFunc) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(a.model),
		MaxTokens:   int64(maxTokens),
		Messages:    toAnthropicMessages(req.Messages),
		Temperature: param.NewOpt(req.Temperature),
	}
	system := strings.TrimSpace(req.System)
	for _, m := range req.Messages {
		if m.Role == RoleSystem && strings.TrimSpace(m.Content) != "" {
			system = strings.TrimSpace(system + "\n\n" + m.Content)
		}
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return Response{}, err
		}
		params.Tools = tools
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var final anthropicsdk.Message
	for stream.Next() {
		event := stream.Current()
		if err := final.Accumulate(event); err != nil {
			return Response{}, fmt.Errorf("anthropic: accumulating stream: %w", err)
		}
		if ev, ok := event.AsAny().(anthropicsdk.ContentBlockDeltaEvent); ok {
			if text := ev.Delta.AsTextDelta().Text; text != "" && onChunk != nil {
				onChunk(text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("anthropic: %w", err)
	}

	resp := Response{StopReason: string(final.StopReason)}
	var text strings.Builder
	for _, block := range final.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := json.RawMessage(block.Input)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	resp.Content = text.String()
	return resp, nil
}

// toAnthropicMessages converts history into alternating user/assistant
// turns. Tool results travel as tool_result blocks in a user turn, and
// consecutive same-role messages are merged. Assistant turns before the
// first user turn are dropped; the API requires the list to open with user.
func toAnthropicMessages(msgs []Message) []anthropicsdk.MessageParam {
	var out []anthropicsdk.MessageParam
	appendBlocks := func(role anthropicsdk.MessageParamRole, blocks ...anthropicsdk.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropicsdk.MessageParam{Role: role, Content: blocks})
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			if strings.TrimSpace(m.Content) != "" {
				appendBlocks(anthropicsdk.MessageParamRoleUser, anthropicsdk.NewTextBlock(m.Content))
			}
		case RoleAssistant:
			if len(out) == 0 {
				continue
			}
			var blocks []anthropicsdk.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content))
			}
			for _, c := range m.ToolCalls {
				var input any = map[string]any{}
				if len(c.Arguments) > 0 {
					if err := json.Unmarshal(c.Arguments, &input); err != nil {
						input = map[string]any{}
					}
				}
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(c.ID, input, c.Name))
			}
			appendBlocks(anthropicsdk.MessageParamRoleAssistant, blocks...)
		case RoleTool:
			appendBlocks(anthropicsdk.MessageParamRoleUser,
				anthropicsdk.NewToolResultBlock(m.ToolCallID, m.Content, false))
		}
	}
	return out
}

func toAnthropicTools(defs []ToolDefinition) ([]anthropicsdk.ToolUnionParam, error) {
	out := make([]anthropicsdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		schema, err := encodeSchema(d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", d.Name, err)
		}
		tool := anthropicsdk.ToolParam{
			Name:        d.Name,
			InputSchema: schema,
		}
		if d.Description != "" {
			tool.Description = anthropicsdk.String(d.Description)
		}
		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &tool})
	}
	return out, nil
}

func encodeSchema(raw map[string]any) (anthropicsdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, err
	}
	var schema anthropicsdk.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, err
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}
