package server

import (
	"net/http"

	"github.com/geowander/citytour/internal/citytour"
	"github.com/geowander/citytour/internal/ingest"
	"github.com/geowander/citytour/internal/nav"
)

// ReloadResponse is returned after the tour is rebuilt from its
// sources.
type ReloadResponse struct {
	State  nav.State         `json:"state"`
	Tour   citytour.Tour     `json:"tour"`
	Report ingest.LoadReport `json:"report"`
}

func handleTourReload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := machineFrom(r)
		state, report, err := m.Reload(r.Context())
		if err != nil {
			respondNav(w, state, err)
			return
		}

		writeJSON(w, http.StatusOK, ReloadResponse{
			State:  state,
			Tour:   m.Tour(),
			Report: report,
		})
	}
}
