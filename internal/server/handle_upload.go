package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geowander/citytour/internal/citytour"
	"github.com/geowander/citytour/internal/ingest"
	"github.com/geowander/citytour/internal/nav"
)

// maxUploadBytes caps landmark upload bodies.
const maxUploadBytes = 1 << 20

// UploadResponse reports the outcome of a tour upload: the reset state
// plus how many records were accepted and how many were dropped with a
// diagnostic.
type UploadResponse struct {
	State    nav.State     `json:"state"`
	Tour     citytour.Tour `json:"tour"`
	Accepted int           `json:"accepted"`
	Dropped  int           `json:"dropped"`
}

// handleTourUpload replaces everything after the intro entry with the
// uploaded records. The upload is the one batch-level rejection in the
// pipeline: when zero records survive coercion the session's tour is
// left untouched and the client gets an actionable 400.
func handleTourUpload(logger *slog.Logger) http.HandlerFunc {
	sink := ingest.SlogSink{Logger: logger}

	return func(w http.ResponseWriter, r *http.Request) {
		var records []any
		if err := readJSONMax(w, r, maxUploadBytes, &records); err != nil {
			writeError(w, http.StatusBadRequest, "request body must be a JSON array of landmark records")
			return
		}

		rec := &ingest.Recorder{}
		lms, err := ingest.CoerceUpload(records, rec)
		forwardDiagnostics(sink, rec)
		if errors.Is(err, ingest.ErrEmptyBatch) {
			writeError(w, http.StatusBadRequest, rejectionDetail(rec))
			return
		}

		m := machineFrom(r)
		state := m.ReplaceFromUpload(lms)

		writeJSON(w, http.StatusOK, UploadResponse{
			State:    state,
			Tour:     m.Tour(),
			Accepted: len(lms),
			Dropped:  len(records) - len(lms),
		})
	}
}
