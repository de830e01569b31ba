/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the standard middleware stack plus JWT authentication for the box routes.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// BoxRoutes creates and returns a new router for the ledger service.
func BoxRoutes(h *BoxHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Box queries
		r.Get("/boxes/me", h.GetOwnBoxHandler)
		r.Get("/boxes/{user_id}", h.GetBoxHandler)
		r.Get("/boxes/{user_id}/movements", h.ListMovementsHandler)

		// Ledger operations
		r.Post("/boxes/transfer", h.TransferHandler)
		r.Post("/boxes/expense", h.ExpenseHandler)
		r.Post("/boxes/withdraw", h.WithdrawHandler)

		// Administrative correction
		r.Put("/boxes/{user_id}", h.AdminUpdateBoxHandler)

		// End-of-day reconciliation
		r.Post("/boxes/close-day", h.CloseDayHandler)
	})

	return r
}
