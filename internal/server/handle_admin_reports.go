package server

import (
	"net/http"
	"strconv"
)

// ReportsResponse is the response for GET /api/admin/reports.
type ReportsResponse struct {
	Reports []StoredReport `json:"reports"`
}

func handleAdminReports(reports *ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		recent, err := reports.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if recent == nil {
			recent = []StoredReport{}
		}

		writeJSON(w, http.StatusOK, ReportsResponse{Reports: recent})
	}
}
