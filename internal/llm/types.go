// Package llm defines a provider-neutral chat interface with tool calling
// and the OpenAI and Anthropic implementations behind it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the conversation sent to a provider.
// Assistant messages may carry ToolCalls; tool messages answer one call
// identified by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDefinition describes a tool to the model. Parameters is a JSON Schema
// object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is one chat completion call.
type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// Response is the fully assembled result of a streamed completion.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
}

// ChunkFunc receives text deltas as they arrive.
type ChunkFunc func(delta string)

// Provider streams chat completions with tool calling. Implementations must
// abort the underlying HTTP request when ctx is cancelled.
type Provider interface {
	Name() string
	ChatStream(ctx context.Context, req Request, onChunk ChunkFunc) (Response, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrUnknownProvider is returned by Registry.Get for unregistered names.
var ErrUnknownProvider = errors.New("unknown llm provider")

const defaultMaxTokens = 4096

// withTrailingSlash keeps SDK path joins relative to the base path.
func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
