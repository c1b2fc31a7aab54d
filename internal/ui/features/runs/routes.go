// Package runs serves the run history kept in the state store.
package runs

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/ezql/internal/state"
)

// SetupRoutes registers the run history API.
func SetupRoutes(router chi.Router, store state.Store) error {
	handlers := NewHandlers(store)

	router.Route("/api/runs", func(r chi.Router) {
		r.Get("/", handlers.List)
		r.Get("/{id}", handlers.Detail)
	})

	return nil
}
