// Package router sets up HTTP routes for the lineage viewer.
package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/ezql/internal/state"
	"github.com/leapstack-labs/ezql/internal/ui/features/common"
	lineageFeature "github.com/leapstack-labs/ezql/internal/ui/features/lineage"
	runsFeature "github.com/leapstack-labs/ezql/internal/ui/features/runs"
	"github.com/leapstack-labs/ezql/internal/ui/notifier"
	"github.com/leapstack-labs/ezql/internal/ui/resources"
)

// SetupRoutes configures all routes of the viewer. The run history is only
// mounted when store is not nil.
func SetupRoutes(
	router chi.Router,
	snapshot *common.Snapshot,
	store state.Store,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	logger *slog.Logger,
) error {
	router.Handle("/static/*", resources.Handler())

	if err := lineageFeature.SetupRoutes(router, snapshot, sessionStore, notify, store != nil, logger); err != nil {
		return err
	}

	if store != nil {
		if err := runsFeature.SetupRoutes(router, store); err != nil {
			return err
		}
	}

	return nil
}
