package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kshitijshah95/ai-assistant/internal/agent"
	"github.com/kshitijshah95/ai-assistant/internal/calendar"
	"github.com/kshitijshah95/ai-assistant/internal/config"
	"github.com/kshitijshah95/ai-assistant/internal/conversation"
	"github.com/kshitijshah95/ai-assistant/internal/goals"
	"github.com/kshitijshah95/ai-assistant/internal/habits"
	"github.com/kshitijshah95/ai-assistant/internal/llm"
	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/ollama"
	"github.com/kshitijshah95/ai-assistant/internal/retrieval"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
	"github.com/kshitijshah95/ai-assistant/internal/tasks"
	"github.com/kshitijshah95/ai-assistant/internal/tools"
)

// app holds the storage, providers and services shared by `serve` and
// `mcp`.
type app struct {
	cfg       config.Config
	store     *storage.Store
	llms      *llm.Registry
	retriever *retrieval.Retriever

	conversations *conversation.Service
	notes         *notes.Service
	tasks         *tasks.Service
	goals         *goals.Service
	habits        *habits.Service
	calendar      *calendar.Service
}

// buildApp opens storage and wires every service. Without an embedding
// backend notes run text-only.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	llms, err := buildProviders(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:           cfg,
		store:         store,
		llms:          llms,
		conversations: conversation.New(store),
		tasks:         tasks.New(store),
		goals:         goals.New(store),
		habits:        habits.New(store),
		calendar:      calendar.New(store),
	}

	if backend := embeddingBackend(ctx, cfg, llms); backend != nil {
		llms.SetEmbedder(backend)
		a.retriever = retrieval.NewRetriever(retrieval.NewEmbedder(backend), retrieval.NewSQLiteStore(store.DB()))
	} else {
		slog.Warn("no embedding backend, notes use keyword categories and text search")
	}
	a.notes = notes.New(store, a.retriever, float32(cfg.Notes.CategoryThreshold))
	return a, nil
}

func buildProviders(cfg config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry(cfg.LLM.DefaultProvider)
	if cfg.OpenAI.APIKey != "" {
		p, err := llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			Model:          cfg.OpenAI.Model,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		})
		if err != nil {
			return nil, err
		}
		reg.Register(p)
	}
	if cfg.Anthropic.APIKey != "" {
		p, err := llm.NewAnthropic(llm.AnthropicConfig{
			APIKey: cfg.Anthropic.APIKey,
			Model:  cfg.Anthropic.Model,
		})
		if err != nil {
			return nil, err
		}
		reg.Register(p)
	}
	return reg, nil
}

// embeddingBackend picks the embedder named by embedding.provider. Ollama
// is checked (and its model pulled) up front; an unreachable Ollama
// disables embeddings rather than failing startup.
func embeddingBackend(ctx context.Context, cfg config.Config, llms *llm.Registry) llm.Embedder {
	if cfg.Embedding.Provider == "ollama" {
		client := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(ctx, client, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
			slog.Warn("ollama unavailable", "error", err)
			return nil
		}
		return ollama.NewEmbedder(client, cfg.Ollama.EmbedModel)
	}
	p, err := llms.Get(config.ProviderOpenAI)
	if err != nil {
		return nil
	}
	if e, ok := p.(llm.Embedder); ok {
		return e
	}
	return nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

// tools returns the tool registry acting for userID.
func (a *app) tools(userID string) *tools.Registry {
	return tools.NewRegistry(tools.Services{
		Notes:    a.notes,
		Tasks:    a.tasks,
		Goals:    a.goals,
		Habits:   a.habits,
		Calendar: a.calendar,
	}, userID)
}

func (a *app) agent() *agent.Agent {
	return agent.New(agent.Config{
		MaxIterations: a.cfg.LLM.MaxIterations,
		Temperature:   a.cfg.LLM.Temperature,
	})
}
