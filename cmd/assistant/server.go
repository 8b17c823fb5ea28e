package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kshitijshah95/ai-assistant/internal/agent"
	"github.com/kshitijshah95/ai-assistant/internal/api"
	"github.com/kshitijshah95/ai-assistant/internal/chat"
	"github.com/kshitijshah95/ai-assistant/internal/config"
	"github.com/kshitijshah95/ai-assistant/internal/importer"
	"github.com/kshitijshah95/ai-assistant/internal/ingest"
	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and chat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant tools over MCP on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Queue embedding of every note that has no vector yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		if err := notes.New(store, nil, float32(cfg.Notes.CategoryThreshold)).QueueReindex(ctx); err != nil {
			return fmt.Errorf("queueing reindex: %w", err)
		}
		pending, _ := store.PendingJobCount(ctx, notes.JobReindexNotes)
		printSuccess("Reindex queued (%d pending); the server's worker will pick it up", pending)
		return nil
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "assistant.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func healthURL(cfg config.Config) string {
	return fmt.Sprintf("http://%s/api/health", cfg.Addr())
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, versionString())

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL(cfg)); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on %s", cfg.Addr())
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	chatHandler := chat.NewHandler(a.conversations, a.llms, a.agent(), func(userID string) agent.ToolExecutor {
		return a.tools(userID)
	})
	chatServer := chat.NewServer(chatHandler, cfg.Server.CORSOrigins)

	router := api.NewRouter(api.Deps{
		Conversations: a.conversations,
		Notes:         a.notes,
		Tasks:         a.tasks,
		Goals:         a.goals,
		Habits:        a.habits,
		Calendar:      a.calendar,
		Importer:      importer.New(nil),
		Chat:          chatServer,
		Token:         cfg.Server.APIToken,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Providers:     a.llms.Names(),
	})
	if cfg.Server.APIToken == "" {
		slog.Warn("no API token set, the API and /ws accept any local client")
	}

	// Background embedding only runs when there is something to embed with.
	if a.retriever != nil {
		worker := ingest.NewWorker(a.store, a.notes, 500*time.Millisecond)
		go worker.Run(ctx)

		sched, err := ingest.NewScheduler(cfg.Jobs.ReindexSchedule, a.notes)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		if err := a.notes.QueueReindex(ctx); err != nil {
			slog.Warn("queueing startup reindex failed", "error", err)
		}
		slog.Info("embedding worker started", "schedule", cfg.Jobs.ReindexSchedule)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr(), "providers", a.llms.Names(), "default", a.llms.DefaultName())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	chatServer.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs stay on stderr.
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	user, err := a.conversations.DefaultUser(ctx)
	if err != nil {
		return fmt.Errorf("resolving user: %w", err)
	}
	mcpSrv := api.NewMCPServer(a.tools(user.ID), version)

	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("assistant is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop assistant (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to assistant (PID %d)", pid)
	return nil
}

type healthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	printStatus("Version", "%s", version)
	client := &http.Client{Timeout: 2 * time.Second}
	running := false
	if resp, err := client.Get(healthURL(cfg)); err != nil {
		printStatus("Server", "stopped")
	} else {
		var h healthResponse
		json.NewDecoder(resp.Body).Decode(&h)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on %s (providers: %s)", cfg.Addr(), strings.Join(h.Providers, ", "))
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if err := cfg.Validate(); err != nil {
		printStatus("Config", "%s", colorize(colorRed, err.Error()))
	} else {
		printStatus("Config", "ok")
	}
	printStatus("Default LLM", "%s", cfg.LLM.DefaultProvider)
	printStatus("Embeddings", "%s", cfg.Embedding.Provider)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	if running {
		if c, err := newAPIClient(); err == nil {
			printCounts(ctx, c)
		}
	}
	return nil
}

// printCounts shows a few totals from the running server.
func printCounts(ctx context.Context, c *apiClient) {
	var idx notes.IndexStatus
	if resp, err := c.get(ctx, "/api/notes/index"); err == nil && decodeJSON(resp, &idx) == nil {
		if idx.Enabled {
			printStatus("Notes", "%d (%d indexed)", idx.Notes, idx.Indexed)
		} else {
			printStatus("Notes", "%d (semantic search off)", idx.Notes)
		}
	}
	var stats struct {
		Total   int `json:"total"`
		Pending int `json:"pending"`
		Overdue int `json:"overdue"`
	}
	if resp, err := c.get(ctx, "/api/tasks/stats"); err == nil && decodeJSON(resp, &stats) == nil {
		printStatus("Tasks", "%d total, %d pending, %d overdue", stats.Total, stats.Pending, stats.Overdue)
	}
}
