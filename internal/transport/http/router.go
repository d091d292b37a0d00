package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

// NewRouter mounts the health check, the bank listing and the WebSocket endpoint.
func NewRouter(ws *WSHandler, library *app.Library) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/banks", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			ids, err := library.List(r.Context())
			if err != nil {
				log.Printf("list banks: %v", err)
				http.Error(w, "could not list banks", http.StatusInternalServerError)
				return
			}
			if ids == nil {
				ids = []string{}
			}
			respondJSON(w, http.StatusOK, map[string]any{"banks": ids})
		})
		r.Get("/{bankID}", func(w http.ResponseWriter, r *http.Request) {
			id, count, err := library.Count(r.Context(), chi.URLParam(r, "bankID"))
			switch {
			case errors.Is(err, domain.ErrBankNotFound), errors.Is(err, domain.ErrInvalidBankID):
				http.Error(w, "bank not found", http.StatusNotFound)
			case err != nil:
				log.Printf("load bank: %v", err)
				http.Error(w, "could not load bank", http.StatusInternalServerError)
			default:
				respondJSON(w, http.StatusOK, map[string]any{"id": id, "questions": count})
			}
		})
	})
	r.Get("/ws", ws.ServeWS)
	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
