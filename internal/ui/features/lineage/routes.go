// Package lineage serves the lineage chart and its JSON API.
package lineage

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/ezql/internal/ui/features/common"
	"github.com/leapstack-labs/ezql/internal/ui/notifier"
)

// SetupRoutes registers the chart page, its live updates and the lineage
// API.
func SetupRoutes(
	router chi.Router,
	snapshot *common.Snapshot,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	hasRuns bool,
	logger *slog.Logger,
) error {
	handlers := NewHandlers(snapshot, sessionStore, notify, hasRuns, logger)

	router.Get("/", handlers.ChartPage)
	router.Post("/filter", handlers.SaveFilter)
	router.Get("/updates", handlers.Updates)
	router.Get("/healthz", handlers.Health)

	router.Get("/api/procedures", handlers.Procedures)
	router.Get("/api/errored", handlers.Errored)
	router.Get("/api/graph", handlers.Graph)

	return nil
}
