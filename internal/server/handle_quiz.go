package server

import (
	"net/http"

	"github.com/geowander/citytour/internal/artifact"
	"github.com/geowander/citytour/internal/nav"
)

// QuizCompleteRequest carries the selected option text per question,
// in question order. Missing entries count as unanswered.
type QuizCompleteRequest struct {
	Answers []string `json:"answers"`
}

// QuizCompleteResponse returns the post-advance state and the graded
// summary. The summary is informational: completion, not score,
// releases the gate.
type QuizCompleteResponse struct {
	State   nav.State                  `json:"state"`
	Summary artifact.SubmissionSummary `json:"summary"`
}

func handleQuizComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QuizCompleteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		state, summary, err := machineFrom(r).CompleteQuiz(r.Context(), req.Answers)
		if err != nil {
			respondNav(w, state, err)
			return
		}

		writeJSON(w, http.StatusOK, QuizCompleteResponse{State: state, Summary: summary})
	}
}
