package server

import (
	"log/slog"
	"net/http"

	"github.com/geowander/citytour/internal/overlay"
)

// Clearing the overlay only affects tours assembled after the next
// reload. Live sessions keep whatever they are showing.
func handleAdminOverlayClear(logger *slog.Logger, store *overlay.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Clear(r.Context()); err != nil {
			logger.Error("clear overlay", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("overlay cleared", "admin_id", adminFrom(r).ID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
