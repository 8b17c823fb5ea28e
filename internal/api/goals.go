package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func goalRoutes(deps Deps) func(chi.Router) {
	svc := deps.Goals
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.List(r.Context(), userID(r), r.URL.Query().Get("status"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var body goalCreateBody
			if !decodeBody(w, r, &body) {
				return
			}
			g, err := svc.Create(r.Context(), userID(r), body.input())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, g)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			g, err := svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, g)
		})

		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var body goalUpdateBody
			if !decodeBody(w, r, &body) {
				return
			}
			g, err := svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), body.update())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, g)
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
