package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kshitijshah95/ai-assistant/internal/habits"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// logRequest is the body of POST /habits/{id}/log. Date is YYYY-MM-DD or
// RFC 3339 and defaults to today.
type logRequest struct {
	Date      string `json:"date"`
	Completed *bool  `json:"completed"`
	Notes     string `json:"notes"`
}

func habitRoutes(deps Deps) func(chi.Router) {
	svc := deps.Habits
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.List(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		})

		r.Get("/today", func(w http.ResponseWriter, r *http.Request) {
			items, err := svc.TodayStatus(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, items)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in habits.CreateInput
			if !decodeBody(w, r, &in) {
				return
			}
			h, err := svc.Create(r.Context(), userID(r), in)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, h)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			h, err := svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, h)
		})

		r.Get("/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := svc.Stats(r.Context(), userID(r), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})

		r.Get("/{id}/logs", func(w http.ResponseWriter, r *http.Request) {
			logs, err := svc.Logs(r.Context(), userID(r), chi.URLParam(r, "id"), parseIntParam(r, "days", 30, 366))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, logs)
		})

		r.Post("/{id}/log", func(w http.ResponseWriter, r *http.Request) {
			var req logRequest
			if !decodeBody(w, r, &req) {
				return
			}
			in := habits.LogInput{Completed: req.Completed, Notes: req.Notes}
			if req.Date != "" {
				d, err := parseTime(req.Date)
				if err != nil {
					writeServiceError(w, r, err)
					return
				}
				in.Date = &d
			}
			l, err := svc.Log(r.Context(), userID(r), chi.URLParam(r, "id"), in)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, l)
		})

		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var u storage.HabitUpdate
			if !decodeBody(w, r, &u) {
				return
			}
			h, err := svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), u)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, h)
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
