package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // optional, for proxies and compatible servers
	Model          string
	EmbeddingModel string
	MaxTokens      int
	HTTPClient     *http.Client
}

// OpenAI is a Provider and Embedder backed by the OpenAI API.
type OpenAI struct {
	client         openai.Client
	model          string
	embeddingModel string
	maxTokens      int
}

var (
	_ Provider = (*OpenAI)(nil)
	_ Embedder = (*OpenAI)(nil)
)

// NewOpenAI constructs an OpenAI provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
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
		model = "gpt-4o-mini"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &OpenAI{
		client:         openai.NewClient(opts...),
		model:          model,
		embeddingModel: embeddingModel,
		maxTokens:      maxTokens,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

type toolCallAccumulator struct {
	id        string
	name      string
	arguments strings.Builder
}

// ChatStream streams one completion, calling onChunk for every text delta,
// and returns the assembled text and tool calls.
func (o *OpenAI) ChatStream(ctx context.Context, req Request, onChunk ChunkFunc) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(o.model),
		MaxCompletionTokens: openai.Int(int64(o.maxTokensFor(req))),
		Messages:            toOpenAIMessages(req),
		Temperature:         openai.Float(req.Temperature),
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		content      strings.Builder
		calls        = make(map[int]*toolCallAccumulator)
		finishReason string
	)

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
			delta := choice.Delta
			if delta.Content != "" {
				content.WriteString(delta.Content)
				if onChunk != nil {
					onChunk(delta.Content)
				}
			}
			for _, tc := range delta.ToolCalls {
				idx := int(tc.Index)
				acc, ok := calls[idx]
				if !ok {
					acc = &toolCallAccumulator{}
					calls[idx] = acc
				}
				if tc.ID != "" {
					acc.id = tc.ID
				}
				if tc.Function.Name != "" {
					acc.name = tc.Function.Name
				}
				acc.arguments.WriteString(tc.Function.Arguments)
			}
		}
	}
	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("openai: %w", err)
	}

	indices := make([]int, 0, len(calls))
	for idx := range calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	resp := Response{Content: content.String(), StopReason: finishReason}
	for _, idx := range indices {
		acc := calls[idx]
		if acc.name == "" {
			continue
		}
		args := strings.TrimSpace(acc.arguments.String())
		if args == "" {
			args = "{}"
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        acc.id,
			Name:      acc.name,
			Arguments: json.RawMessage(args),
		})
	}
	return resp, nil
}

// Embed returns the embedding for text using the configured embedding model.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}
	src := res.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, f := range src {
		vec[i] = float32(f)
	}
	return vec, nil
}

func (o *OpenAI) maxTokensFor(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return o.maxTokens
}

func toOpenAIMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if s := strings.TrimSpace(req.System); s != "" {
		out = append(out, openai.SystemMessage(s))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			out = append(out, toOpenAIAssistant(m))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func toOpenAIAssistant(m Message) openai.ChatCompletionMessageParamUnion {
	p := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" || len(m.ToolCalls) == 0 {
		p.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(m.Content),
		}
	}
	for _, c := range m.ToolCalls {
		args := string(c.Arguments)
		if args == "" {
			args = "{}"
		}
		p.ToolCalls = append(p.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: c.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      c.Name,
				Arguments: args,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &p}
}

func toOpenAITools(defs []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		params := shared.FunctionParameters{"type": "object"}
		for k, v := range d.Parameters {
			params[k] = v
		}
		tool := openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:       d.Name,
				Parameters: params,
			},
		}
		if d.Description != "" {
			tool.Function.Description = openai.Opt(d.Description)
		}
		out = append(out, tool)
	}
	return out
}
