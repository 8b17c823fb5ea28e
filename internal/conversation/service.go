// Package conversation manages chat conversations, their messages and the
// single-user identity every request runs as.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// Single-user mode identity.
const (
	DefaultUserID   = "default-user"
	DefaultUserName = "Default User"
	DefaultTitle    = "New Conversation"
)

const (
	titleWords    = 5
	maxTitleChars = 50
)

// Store defines the storage operations the Service needs.
// Implemented by storage.Store.
type Store interface {
	GetOrCreateUser(ctx context.Context, externalID, name string) (storage.User, error)
	CreateConversation(ctx context.Context, userID, title string) (storage.Conversation, error)
	GetConversation(ctx context.Context, userID, id string) (storage.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]storage.Conversation, error)
	UpdateConversationTitle(ctx context.Context, userID, id, title string) (storage.Conversation, error)
	DeleteConversation(ctx context.Context, userID, id string) error
	AddMessage(ctx context.Context, conversationID, role, content string, metadata map[string]any) (storage.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]storage.Message, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// DefaultUser returns the single local user, creating it on first use.
func (s *Service) DefaultUser(ctx context.Context) (storage.User, error) {
	return s.store.GetOrCreateUser(ctx, DefaultUserID, DefaultUserName)
}

func (s *Service) Create(ctx context.Context, userID, title string) (storage.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	return s.store.CreateConversation(ctx, userID, title)
}

// Get returns the conversation with its messages oldest first.
func (s *Service) Get(ctx context.Context, userID, id string) (storage.Conversation, error) {
	return s.store.GetConversation(ctx, userID, id)
}

// List returns conversations most recently active first, each with its
// last message.
func (s *Service) List(ctx context.Context, userID string) ([]storage.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

func (s *Service) Rename(ctx context.Context, userID, id, title string) (storage.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.Conversation{}, fmt.Errorf("%w: title is required", storage.ErrInvalid)
	}
	return s.store.UpdateConversationTitle(ctx, userID, id, title)
}

// Delete removes the conversation and its messages.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteConversation(ctx, userID, id)
}

func (s *Service) AddMessage(ctx context.Context, conversationID, role, content string, metadata map[string]any) (storage.Message, error) {
	switch role {
	case "user", "assistant", "system":
	default:
		return storage.Message{}, fmt.Errorf("%w: unknown message role %q", storage.ErrInvalid, role)
	}
	return s.store.AddMessage(ctx, conversationID, role, content, metadata)
}

// History returns the conversation's messages oldest first. limit > 0 keeps
// only the most recent limit messages.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]storage.Message, error) {
	return s.store.ListMessages(ctx, conversationID, limit)
}

// DeriveTitle builds a conversation title from the first user message: its
// first five words, with "..." when words were dropped, capped at 50
// characters.
func DeriveTitle(message string) string {
	words := strings.Fields(message)
	if len(words) == 0 {
		return DefaultTitle
	}
	title := strings.Join(words[:min(len(words), titleWords)], " ")
	if len(words) > titleWords {
		title += "..."
	}
	if utf8.RuneCountInString(title) > maxTitleChars {
		title = string([]rune(title)[:maxTitleChars])
	}
	return title
}
