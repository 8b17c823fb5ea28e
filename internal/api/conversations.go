package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type titleRequest struct {
	Title string `json:"title"`
}

func conversationRoutes(deps Deps) func(chi.Router) {
	convs := deps.Conversations
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			list, err := convs.List(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req titleRequest
			if !decodeBody(w, r, &req) {
				return
			}
			c, err := convs.Create(r.Context(), userID(r), req.Title)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, c)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			c, err := convs.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, c)
		})

		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var req titleRequest
			if !decodeBody(w, r, &req) {
				return
			}
			c, err := convs.Rename(r.Context(), userID(r), chi.URLParam(r, "id"), req.Title)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, c)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if err := convs.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
				writeServiceError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
