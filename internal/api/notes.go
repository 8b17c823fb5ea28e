package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kshitijshah95/ai-assistant/internal/importer"
	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

const maxImportBodySize = 15 << 20 // base64 PDFs

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// importRequest names either a URL to fetch or a base64-encoded PDF.
type importRequest struct {
	URL      string   `json:"url"`
	PDF      string   `json:"pdf"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func noteRoutes(deps Deps) func(chi.Router) {
	svc := deps.Notes
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if q := strings.TrimSpace(r.URL.Query().Get("search")); q != "" {
				results, err := svc.Search(r.Context(), userID(r), q, parseIntParam(r, "limit", 10, 50))
				if err != nil {
					writeServiceError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"notes": results, "total": len(results)})
				return
			}

			f := storage.NoteFilter{
				Category: r.URL.Query().Get("category"),
				Limit:    parseIntParam(r, "limit", 50, 200),
				Offset:   parseIntParam(r, "offset", 0, 0),
			}
			if tags := r.URL.Query().Get("tags"); tags != "" {
				f.Tags = strings.Split(tags, ",")
			}
			list, total, err := svc.List(r.Context(), userID(r), f)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"notes": list, "total": total})
		})

		r.Get("/index", func(w http.ResponseWriter, r *http.Request) {
			st, err := svc.IndexStatus(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
		})

		r.Get("/categories", func(w http.ResponseWriter, r *http.Request) {
			cats, err := svc.Categories(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, cats)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in notes.CreateInput
			if !decodeBody(w, r, &in) {
				return
			}
			n, err := svc.Create(r.Context(), userID(r), in)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, n)
		})

		r.Post("/search", func(w http.ResponseWriter, r *http.Request) {
			var req searchRequest
			if !decodeBody(w, r, &req) {
				return
			}
			if strings.TrimSpace(req.Query) == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
				return
			}
			if req.Limit <= 0 {
				req.Limit = 10
			}
			results, err := svc.Search(r.Context(), userID(r), req.Query, req.Limit)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, results)
		})

		if deps.Importer != nil {
			r.Post("/import", handleImport(svc, deps.Importer))
		}

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			n, err := svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, n)
		})

		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var u storage.NoteUpdate
			if !decodeBody(w, r, &u) {
				return
			}
			n, err := svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), u)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, n)
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

// handleImport turns a web page or a PDF into a note. The note goes through
// the regular create path, so it is categorized and embedded like any other.
func handleImport(svc *notes.Service, imp *importer.Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if !decodeBodyLimit(w, r, &req, maxImportBodySize) {
			return
		}

		var doc importer.Document
		var err error
		switch {
		case req.URL != "" && req.PDF != "":
			httpError(w, http.StatusBadRequest, "invalid_request_error", "give either url or pdf, not both")
			return
		case req.URL != "":
			doc, err = imp.FromURL(r.Context(), req.URL)
		case req.PDF != "":
			raw, decErr := base64.StdEncoding.DecodeString(req.PDF)
			if decErr != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 pdf")
				return
			}
			doc, err = imp.FromPDF(bytes.NewReader(raw), int64(len(raw)))
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url or pdf is required")
			return
		}
		if err != nil {
			if errors.Is(err, importer.ErrInvalidInput) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Error())
				return
			}
			httpError(w, http.StatusBadGateway, "api_error", "import failed: %v", err)
			return
		}

		title := req.Title
		if title == "" {
			title = doc.Title
		}
		tags := append(req.Tags, "imported")
		n, err := svc.Create(r.Context(), userID(r), notes.CreateInput{
			Title:    title,
			Content:  doc.Text,
			Category: req.Category,
			Tags:     tags,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	}
}
