package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kshitijshah95/ai-assistant/internal/calendar"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// upcomingDefault is the number of events listed when no range is given.
const upcomingDefault = 20

func calendarRoutes(deps Deps) func(chi.Router) {
	svc := deps.Calendar
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			events, err := listEvents(svc, r)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, events)
		})

		r.Get("/upcoming", func(w http.ResponseWriter, r *http.Request) {
			events, err := svc.Upcoming(r.Context(), userID(r), parseIntParam(r, "limit", 10, 100))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, events)
		})

		r.Get("/today", func(w http.ResponseWriter, r *http.Request) {
			events, err := svc.Today(r.Context(), userID(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, events)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var body eventCreateBody
			if !decodeBody(w, r, &body) {
				return
			}
			ev, err := svc.Create(r.Context(), userID(r), body.input())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, ev)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			ev, err := svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, ev)
		})

		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var body eventUpdateBody
			if !decodeBody(w, r, &body) {
				return
			}
			ev, err := svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), body.update())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, ev)
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

// listEvents picks the query from the parameters: view=month with year and
// month, view=week or view=day around start (default now), an explicit
// start/end range, or else the next upcoming events.
func listEvents(svc *calendar.Service, r *http.Request) ([]storage.Event, error) {
	ctx, uid := r.Context(), userID(r)
	q := r.URL.Query()

	start, err := timeParam(r, "start")
	if err != nil {
		return nil, err
	}
	end, err := timeParam(r, "end")
	if err != nil {
		return nil, err
	}
	anchor := svc.Now()
	if start != nil {
		anchor = *start
	}

	switch q.Get("view") {
	case "month":
		year, yErr := strconv.Atoi(q.Get("year"))
		month, mErr := strconv.Atoi(q.Get("month"))
		if yErr != nil || mErr != nil || month < 1 || month > 12 {
			return nil, fmt.Errorf("%w: view=month needs year and month (1-12)", storage.ErrInvalid)
		}
		return svc.Month(ctx, uid, year, time.Month(month))
	case "week":
		return svc.Week(ctx, uid, anchor)
	case "day":
		return svc.Day(ctx, uid, anchor)
	case "":
	default:
		return nil, fmt.Errorf("%w: unknown view %q", storage.ErrInvalid, q.Get("view"))
	}

	if start != nil && end != nil {
		return svc.Range(ctx, uid, *start, *end)
	}
	return svc.Upcoming(ctx, uid, upcomingDefault)
}
