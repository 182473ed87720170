package server

import (
	"errors"
	"net/http"

	"github.com/geowander/citytour/internal/nav"
)

// JumpRequest is the request body for POST /api/session/nav/jump.
type JumpRequest struct {
	ID int64 `json:"id"`
}

// NavRejection is returned with 409 when an intent is refused. It
// carries the untouched state so clients can resync instead of
// guessing.
type NavRejection struct {
	Error string    `json:"error"`
	State nav.State `json:"state"`
}

func handleNext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := machineFrom(r).Next(r.Context())
		respondNav(w, state, err)
	}
}

func handlePrevious() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := machineFrom(r).Previous(r.Context())
		respondNav(w, state, err)
	}
}

func handleJump() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JumpRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		state, err := machineFrom(r).JumpTo(r.Context(), req.ID)
		respondNav(w, state, err)
	}
}

// respondNav maps intent outcomes onto HTTP statuses.
func respondNav(w http.ResponseWriter, state nav.State, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, state)
	case errors.Is(err, nav.ErrBusy),
		errors.Is(err, nav.ErrQuizOpen),
		errors.Is(err, nav.ErrNoQuiz):
		writeJSON(w, http.StatusConflict, NavRejection{Error: err.Error(), State: state})
	case errors.Is(err, nav.ErrUnknownLandmark):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
