package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/geowander/citytour/internal/citytour"
	"github.com/geowander/citytour/internal/ingest"
	"github.com/geowander/citytour/internal/nav"
)

// SessionResponse is returned when a tour session is created.
type SessionResponse struct {
	Token  string            `json:"token"`
	State  nav.State         `json:"state"`
	Tour   citytour.Tour     `json:"tour"`
	Report ingest.LoadReport `json:"report"`
}

// handleSessionCreate starts a tour session. The artifact parameters
// arrive on the query string the same way the hosting page passes them
// around: token, artifact_id and base_url, all three required for
// remote-artifact mode and absent otherwise.
func handleSessionCreate(logger *slog.Logger, sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		as := ingest.ArtifactSession{
			Token:      q.Get("token"),
			ArtifactID: q.Get("artifact_id"),
			BaseURL:    strings.TrimSuffix(q.Get("base_url"), "/"),
		}

		token, m := sessions.Create(as)
		state, report, err := m.Reload(r.Context())
		if err != nil {
			// A fresh machine has no transition or gate to reject on.
			sessions.Remove(token)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("session created",
			"source", report.Source,
			"landmarks", m.Tour().Len(),
			"artifact", as.ArtifactID != "",
		)

		writeJSON(w, http.StatusCreated, SessionResponse{
			Token:  token,
			State:  state,
			Tour:   m.Tour(),
			Report: report,
		})
	}
}

func handleSessionDelete(sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Remove(sessionTokenFrom(r))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
