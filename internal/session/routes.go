package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts read-only session endpoints.
func RegisterRoutes(r chi.Router, e *Engine) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", handleList(e))
		r.Get("/{id}", handleGet(e))
	})
}

func handleList(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := e.Sessions()
		sort.Strings(ids)
		writeJSON(w, http.StatusOK, ids)
	}
}

func handleGet(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := e.Snapshot(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusOK, snap)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
