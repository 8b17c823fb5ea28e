package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

func taskRoutes(deps Deps) func(chi.Router) {
	svc := deps.Tasks
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			f := storage.TaskFilter{
				Status:   q.Get("status"),
				Priority: q.Get("priority"),
				GoalID:   q.Get("goalId"),
				Limit:    parseIntParam(r, "limit", 50, 200),
				Offset:   parseIntParam(r, "offset", 0, 0),
			}
			var err error
			if f.DueBefore, err = timeParam(r, "dueBefore"); err != nil {
				writeServiceError(w, r, err)
				return
			}
			if f.DueAfter, err = timeParam(r, "dueAfter"); err != nil {
				writeServiceError(w, r, err)
				return
			}
			list, total, err := svc.List(r.Context(), userID(r), f)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tasks": list, "total": total})
		})

		r.Get("/today", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.Today(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		})

		r.Get("/overdue", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.Overdue(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := svc.Stats(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var body taskCreateBody
			if !decodeBody(w, r, &body) {
				return
			}
			t, err := svc.Create(r.Context(), userID(r), body.input())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, t)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			t, err := svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, t)
		})

		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var body taskUpdateBody
			if !decodeBody(w, r, &body) {
				return
			}
			t, err := svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), body.update())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, t)
		})

		r.Post("/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
			t, err := svc.Complete(r.Context(), userID(r), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, t)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
				writeServiceError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
