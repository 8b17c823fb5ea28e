// Package api serves the REST surface of the assistant and its MCP server.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kshitijshah95/ai-assistant/internal/calendar"
	"github.com/kshitijshah95/ai-assistant/internal/conversation"
	"github.com/kshitijshah95/ai-assistant/internal/goals"
	"github.com/kshitijshah95/ai-assistant/internal/habits"
	"github.com/kshitijshah95/ai-assistant/internal/importer"
	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/tasks"
)

// Deps holds the services behind the router. Chat and Importer are
// optional; without them /ws and /api/notes/import are not served.
type Deps struct {
	Conversations *conversation.Service
	Notes         *notes.Service
	Tasks         *tasks.Service
	Goals         *goals.Service
	Habits        *habits.Service
	Calendar      *calendar.Service
	Importer      *importer.Importer
	Chat          http.Handler
	Token         string
	CORSOrigins   []string
	// Providers lists the configured LLM providers for the health check.
	Providers []string
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors(deps.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not_found", "route %s %s not found", r.Method, r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method %s not allowed on %s", r.Method, r.URL.Path)
	})

	if deps.Chat != nil {
		r.With(BearerAuth(deps.Token)).Handle("/ws", deps.Chat)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth(deps.Providers))

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(deps.Token))
			r.Use(withUser(deps.Conversations))

			r.Route("/conversations", conversationRoutes(deps))
			r.Route("/notes", noteRoutes(deps))
			r.Route("/tasks", taskRoutes(deps))
			r.Route("/goals", goalRoutes(deps))
			r.Route("/habits", habitRoutes(deps))
			r.Route("/calendar", calendarRoutes(deps))
		})
	})

	return r
}

func handleHealth(providers []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if providers == nil {
			providers = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"providers": providers,
		})
	}
}

type userKey struct{}

// withUser resolves the single default user once per request.
func withUser(convs *conversation.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := convs.DefaultUser(r.Context())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u.ID)))
		})
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			// Hijacked websocket connections never write a status.
			status = http.StatusSwitchingProtocols
		}
		level := slog.LevelDebug
		if status >= 500 {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// cors answers preflight requests and sets the allow headers for listed
// origins. "*" allows any origin.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	anyOrigin := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			anyOrigin = true
		}
		allowed[strings.ToLower(o)] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (anyOrigin || allowed[strings.ToLower(origin)]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
				if r.Method == http.MethodOptions {
					h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
					h.Set("Access-Control-Max-Age", "600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
