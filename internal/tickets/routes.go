package tickets

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts read-only ticket endpoints. Live tickets come from
// the registry; store, when non-nil, serves tickets from earlier runs.
func RegisterRoutes(r chi.Router, reg *Registry, store *Store) {
	r.Route("/api/tickets", func(r chi.Router) {
		r.Get("/", handleList(reg, store))
		r.Get("/{id}", handleGet(reg, store))
	})
	r.Get("/api/operator", handleOperator(reg))
}

func handleList(reg *Registry, store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var statuses []Status
		for _, s := range r.URL.Query()["status"] {
			statuses = append(statuses, Status(s))
		}

		if r.URL.Query().Get("source") == "store" && store != nil {
			list, err := store.List(r.Context(), statuses...)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if list == nil {
				list = []Ticket{}
			}
			writeJSON(w, http.StatusOK, list)
			return
		}

		writeJSON(w, http.StatusOK, reg.List(statuses...))
	}
}

func handleGet(reg *Registry, store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if t, ok := reg.Get(id); ok {
			writeJSON(w, http.StatusOK, ticketView{Ticket: t, Notification: notificationPtr(reg, id)})
			return
		}
		if store != nil {
			t, err := store.Get(r.Context(), id)
			switch {
			case err == nil:
				writeJSON(w, http.StatusOK, ticketView{Ticket: *t})
				return
			case !errors.Is(err, ErrTicketNotFound):
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type ticketView struct {
	Ticket
	Notification *Notification `json:"notification,omitempty"`
}

func notificationPtr(reg *Registry, id string) *Notification {
	if n, ok := reg.Notification(id); ok {
		return &n
	}
	return nil
}

type operatorStatus struct {
	Online      bool `json:"online"`
	OpenTickets int  `json:"open_tickets"`
}

func handleOperator(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, operatorStatus{
			Online:      reg.OperatorOnline(),
			OpenTickets: reg.OpenCount(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
