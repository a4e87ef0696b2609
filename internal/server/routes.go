package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AccountHandlers serves the signup and login endpoints.
type AccountHandlers interface {
	Signup(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
}

// SetupRoutes mounts the gateway and account endpoints on a chi router.
// accounts may be nil when authentication is not wired.
func SetupRoutes(gw *Gateway, accounts AccountHandlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", gw.HealthHandler)
	r.Get("/health", gw.HealthHandler)
	r.HandleFunc("/ws", gw.WebSocketHandler)
	r.Get("/rooms/{room}/messages", gw.HistoryHandler)

	if accounts != nil {
		r.Post("/signup", accounts.Signup)
		r.Post("/login", accounts.Login)
	}
	return r
}
