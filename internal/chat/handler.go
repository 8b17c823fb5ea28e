// Package chat serves the streaming chat channel: a websocket session per
// client and the orchestration of one chat turn on top of the agent.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kshitijshah95/ai-assistant/internal/agent"
	"github.com/kshitijshah95/ai-assistant/internal/conversation"
	"github.com/kshitijshah95/ai-assistant/internal/llm"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// Events sent to the client.
const (
	EventConversation = "chat:conversation"
	EventStart        = "chat:start"
	EventChunk        = "chat:chunk"
	EventEnd          = "chat:end"
	EventTitle        = "chat:title"
	EventError        = "chat:error"
)

// Events accepted from the client.
const (
	EventMessage = "chat:message"
	EventStop    = "chat:stop"
)

// Error reasons carried by chat:error.
const (
	ReasonBusy      = "busy"
	ReasonCancelled = "cancelled"
)

// historyLimit bounds how many stored messages are replayed to the model.
const historyLimit = 50

// Emitter delivers one event to the client.
type Emitter interface {
	Emit(event string, data any) error
}

// MessageRequest is the payload of chat:message.
type MessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Provider       string `json:"provider,omitempty"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
}

type startPayload struct {
	ConversationID string `json:"conversationId"`
	Provider       string `json:"provider"`
}

type chunkPayload struct {
	Content string `json:"content"`
}

type endPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Content        string `json:"content"`
}

type titlePayload struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
}

// ErrorPayload is the body of chat:error.
type ErrorPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// Conversations is the conversation store used by a turn.
// Implemented by conversation.Service.
type Conversations interface {
	DefaultUser(ctx context.Context) (storage.User, error)
	Create(ctx context.Context, userID, title string) (storage.Conversation, error)
	Get(ctx context.Context, userID, id string) (storage.Conversation, error)
	Rename(ctx context.Context, userID, id, title string) (storage.Conversation, error)
	AddMessage(ctx context.Context, conversationID, role, content string, metadata map[string]any) (storage.Message, error)
	History(ctx context.Context, conversationID string, limit int) ([]storage.Message, error)
}

// Providers resolves a provider by name, "" meaning the default.
// Implemented by llm.Registry.
type Providers interface {
	Get(name string) (llm.Provider, error)
}

// Runner answers one turn. Implemented by agent.Agent.
type Runner interface {
	Run(ctx context.Context, t agent.Turn) (agent.Result, error)
}

// ToolsFunc returns the tool set bound to a user.
type ToolsFunc func(userID string) agent.ToolExecutor

type Handler struct {
	conversations Conversations
	providers     Providers
	runner        Runner
	tools         ToolsFunc
	logger        *slog.Logger
}

func NewHandler(conversations Conversations, providers Providers, runner Runner, tools ToolsFunc) *Handler {
	return &Handler{
		conversations: conversations,
		providers:     providers,
		runner:        runner,
		tools:         tools,
		logger:        slog.Default().With("component", "chat"),
	}
}

// HandleMessage runs one chat turn and reports it through em. The user
// message is stored before the model is called; the assistant reply is
// stored only when the turn succeeds. Every failure ends with exactly one
// chat:error, and the returned error mirrors it.
func (h *Handler) HandleMessage(ctx context.Context, em Emitter, req MessageRequest) error {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return h.fail(em, errors.New("message is required"), "")
	}

	user, err := h.conversations.DefaultUser(ctx)
	if err != nil {
		return h.fail(em, fmt.Errorf("resolving user: %w", err), "")
	}

	provider, err := h.providers.Get(req.Provider)
	if err != nil {
		return h.fail(em, err, "")
	}

	var conv storage.Conversation
	if req.ConversationID == "" {
		conv, err = h.conversations.Create(ctx, user.ID, "")
		if err != nil {
			return h.fail(em, fmt.Errorf("creating conversation: %w", err), "")
		}
		h.emit(em, EventConversation, conversationPayload{ConversationID: conv.ID, Title: conv.Title})
	} else {
		conv, err = h.conversations.Get(ctx, user.ID, req.ConversationID)
		if err != nil {
			return h.fail(em, err, "")
		}
	}

	if _, err := h.conversations.AddMessage(ctx, conv.ID, llm.RoleUser, text, nil); err != nil {
		return h.fail(em, fmt.Errorf("saving message: %w", err), "")
	}

	stored, err := h.conversations.History(ctx, conv.ID, historyLimit)
	if err != nil {
		return h.fail(em, fmt.Errorf("loading history: %w", err), "")
	}

	h.emit(em, EventStart, startPayload{ConversationID: conv.ID, Provider: provider.Name()})

	turn := agent.Turn{
		Provider: provider,
		History:  toLLMMessages(stored),
		OnChunk: func(delta string) {
			h.emit(em, EventChunk, chunkPayload{Content: delta})
		},
	}
	if h.tools != nil {
		turn.Tools = h.tools(user.ID)
	}

	res, err := h.runner.Run(ctx, turn)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			h.logger.Info("turn cancelled", "conversation_id", conv.ID)
			return h.fail(em, err, ReasonCancelled)
		}
		return h.fail(em, err, "")
	}

	// The turn may have been stopped after the last model call returned.
	saveCtx := context.WithoutCancel(ctx)
	msg, err := h.conversations.AddMessage(saveCtx, conv.ID, llm.RoleAssistant, res.Content, replyMetadata(provider.Name(), res))
	if err != nil {
		return h.fail(em, fmt.Errorf("saving reply: %w", err), "")
	}
	h.emit(em, EventEnd, endPayload{ConversationID: conv.ID, MessageID: msg.ID, Content: res.Content})

	if conv.Title == conversation.DefaultTitle {
		title := conversation.DeriveTitle(text)
		if _, err := h.conversations.Rename(saveCtx, user.ID, conv.ID, title); err != nil {
			h.logger.Warn("renaming conversation", "conversation_id", conv.ID, "error", err)
		} else {
			h.emit(em, EventTitle, titlePayload{ConversationID: conv.ID, Title: title})
		}
	}

	h.logger.Info("turn complete",
		"conversation_id", conv.ID,
		"provider", provider.Name(),
		"iterations", res.Iterations,
		"tool_calls", len(res.ToolCalls),
	)
	return nil
}

func (h *Handler) fail(em Emitter, err error, reason string) error {
	msg := err.Error()
	switch {
	case reason == ReasonCancelled:
		msg = "cancelled"
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalid),
		errors.Is(err, llm.ErrUnknownProvider):
	default:
		h.logger.Error("chat turn failed", "error", err)
	}
	h.emit(em, EventError, ErrorPayload{Message: msg, Reason: reason})
	return err
}

func (h *Handler) emit(em Emitter, event string, data any) {
	if err := em.Emit(event, data); err != nil {
		h.logger.Debug("emit failed", "event", event, "error", err)
	}
}

// toLLMMessages converts the replay window. A window cut mid-exchange can
// begin with assistant replies; those are dropped so history opens with a
// user message.
func toLLMMessages(stored []storage.Message) []llm.Message {
	out := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		switch m.Role {
		case llm.RoleUser:
			out = append(out, llm.Message{Role: m.Role, Content: m.Content})
		case llm.RoleAssistant:
			if len(out) > 0 {
				out = append(out, llm.Message{Role: m.Role, Content: m.Content})
			}
		}
	}
	return out
}

func replyMetadata(provider string, res agent.Result) map[string]any {
	md := map[string]any{"provider": provider, "iterations": res.Iterations}
	if len(res.ToolCalls) > 0 {
		names := make([]string, len(res.ToolCalls))
		for i, c := range res.ToolCalls {
			names[i] = c.Name
		}
		md["toolCalls"] = names
	}
	return md
}
