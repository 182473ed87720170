package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geowander/citytour/internal/ingest"
)

// handleLandmarkCreate adds one custom landmark to the session's tour.
// The body is a single landmark record in the upload format; it runs
// through the same coercion as a file upload, then the machine mints
// the persistent ID, appends, persists to the overlay, and focuses the
// new entry.
func handleLandmarkCreate(logger *slog.Logger) http.HandlerFunc {
	sink := ingest.SlogSink{Logger: logger}

	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := readJSONMax(w, r, maxUploadBytes, &raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rec := &ingest.Recorder{}
		lms, err := ingest.CoerceUpload([]any{raw}, rec)
		forwardDiagnostics(sink, rec)
		if errors.Is(err, ingest.ErrEmptyBatch) {
			writeError(w, http.StatusBadRequest, rejectionDetail(rec))
			return
		}

		lm := lms[0]
		lm.ID = 0 // the machine mints the persistent ID

		state, err := machineFrom(r).InsertAndFocus(r.Context(), lm)
		if err != nil {
			respondNav(w, state, err)
			return
		}
		writeJSON(w, http.StatusCreated, state)
	}
}

func forwardDiagnostics(sink ingest.SlogSink, rec *ingest.Recorder) {
	for _, d := range rec.Diagnostics() {
		sink.Emit(d)
	}
}

// rejectionDetail builds the user-facing message for a rejected batch
// from the first recorded diagnostic.
func rejectionDetail(rec *ingest.Recorder) string {
	for _, d := range rec.Diagnostics() {
		if d.Kind == ingest.RecordInvalid {
			return "no usable landmark records: " + d.Detail
		}
	}
	return "no usable landmark records"
}
