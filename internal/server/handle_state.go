package server

import "net/http"

func handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, machineFrom(r).State())
	}
}

func handleTour() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, machineFrom(r).Tour())
	}
}
