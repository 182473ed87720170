package server

import (
	"encoding/json"
	"net/http"

	"github.com/geowander/citytour/internal/citytour"
	"github.com/geowander/citytour/internal/nav"
	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "CityTour API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the CityTour landmark tour.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/sessions
	postSessions, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	postSessions.SetSummary("Create tour session")
	postSessions.SetDescription("Creates a tour session and loads its tour. Optional query parameters token, artifact_id and base_url select the remote artifact source. Returns a session token for all other endpoints.")
	postSessions.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postSessions.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(postSessions)

	// DELETE /api/session
	deleteSession, _ := r.NewOperationContext(http.MethodDelete, "/api/session")
	deleteSession.SetSummary("End tour session")
	deleteSession.SetDescription("Discards the session and its tour state. Requires Bearer token.")
	deleteSession.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(deleteSession)

	// GET /api/session/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/session/state")
	getState.SetSummary("Get navigation state")
	getState.SetDescription("Returns the current navigation state including the visible landmark. Requires Bearer token.")
	getState.AddRespStructure(nav.State{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getState)

	// GET /api/session/tour
	getTour, _ := r.NewOperationContext(http.MethodGet, "/api/session/tour")
	getTour.SetSummary("Get tour")
	getTour.SetDescription("Returns the full landmark list for the session. Requires Bearer token.")
	getTour.AddRespStructure(citytour.Tour{}, openapi.WithHTTPStatus(http.StatusOK))
	getTour.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getTour)

	// POST /api/session/nav/next
	postNext, _ := r.NewOperationContext(http.MethodPost, "/api/session/nav/next")
	postNext.SetSummary("Advance forward")
	postNext.SetDescription("Moves to the next landmark, or opens the quiz gate when the current landmark blocks navigation. Requires Bearer token.")
	postNext.AddRespStructure(nav.State{}, openapi.WithHTTPStatus(http.StatusOK))
	postNext.AddRespStructure(NavRejection{}, openapi.WithHTTPStatus(http.StatusConflict))
	postNext.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postNext)

	// POST /api/session/nav/previous
	postPrevious, _ := r.NewOperationContext(http.MethodPost, "/api/session/nav/previous")
	postPrevious.SetSummary("Step backward")
	postPrevious.SetDescription("Moves to the previous landmark. Backward movement is never quiz-gated. Requires Bearer token.")
	postPrevious.AddRespStructure(nav.State{}, openapi.WithHTTPStatus(http.StatusOK))
	postPrevious.AddRespStructure(NavRejection{}, openapi.WithHTTPStatus(http.StatusConflict))
	postPrevious.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postPrevious)

	// POST /api/session/nav/jump
	postJump, _ := r.NewOperationContext(http.MethodPost, "/api/session/nav/jump")
	postJump.SetSummary("Jump to landmark")
	postJump.SetDescription("Jumps directly to a landmark by ID without the transition delay. Requires Bearer token.")
	postJump.AddReqStructure(JumpRequest{})
	postJump.AddRespStructure(nav.State{}, openapi.WithHTTPStatus(http.StatusOK))
	postJump.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postJump.AddRespStructure(NavRejection{}, openapi.WithHTTPStatus(http.StatusConflict))
	postJump.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postJump)

	// POST /api/session/quiz/complete
	postQuiz, _ := r.NewOperationContext(http.MethodPost, "/api/session/quiz/complete")
	postQuiz.SetSummary("Complete quiz")
	postQuiz.SetDescription("Submits answers for the open quiz gate and advances regardless of score. Requires Bearer token.")
	postQuiz.AddReqStructure(QuizCompleteRequest{})
	postQuiz.AddRespStructure(QuizCompleteResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postQuiz.AddRespStructure(NavRejection{}, openapi.WithHTTPStatus(http.StatusConflict))
	postQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postQuiz)

	// POST /api/session/landmarks
	postLandmark, _ := r.NewOperationContext(http.MethodPost, "/api/session/landmarks")
	postLandmark.SetSummary("Add landmark")
	postLandmark.SetDescription("Adds a single landmark to the tour, persists it to the overlay, and focuses it. Requires Bearer token.")
	postLandmark.AddReqStructure(map[string]interface{}{})
	postLandmark.AddRespStructure(nav.State{}, openapi.WithHTTPStatus(http.StatusCreated))
	postLandmark.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postLandmark.AddRespStructure(NavRejection{}, openapi.WithHTTPStatus(http.StatusConflict))
	postLandmark.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLandmark)

	// POST /api/session/tour/upload
	postUpload, _ := r.NewOperationContext(http.MethodPost, "/api/session/tour/upload")
	postUpload.SetSummary("Upload tour")
	postUpload.SetDescription("Replaces every landmark after the intro with the uploaded array. Invalid records are dropped; an upload with no usable records is rejected whole. Requires Bearer token.")
	postUpload.AddReqStructure([]map[string]interface{}{})
	postUpload.AddRespStructure(UploadResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postUpload.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postUpload.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postUpload)

	// POST /api/session/tour/reload
	postReload, _ := r.NewOperationContext(http.MethodPost, "/api/session/tour/reload")
	postReload.SetSummary("Reload tour")
	postReload.SetDescription("Re-runs the source chain and replaces the tour, resetting navigation to the intro. Requires Bearer token.")
	postReload.AddRespStructure(ReloadResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postReload.AddRespStructure(NavRejection{}, openapi.WithHTTPStatus(http.StatusConflict))
	postReload.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postReload)

	// GET /api/session/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/session/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of navigation state changes. Pass the session token as query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminInfo{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.SetDescription("Returns the currently authenticated admin. Requires admin_session cookie.")
	getMe.AddRespStructure(AdminInfo{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/admin/reports
	getReports, _ := r.NewOperationContext(http.MethodGet, "/api/admin/reports")
	getReports.SetSummary("List load reports")
	getReports.SetDescription("Returns recent tour load reports, newest first. Requires admin_session cookie.")
	getReports.AddRespStructure(ReportsResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getReports.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getReports)

	// DELETE /api/admin/overlay
	deleteOverlay, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/overlay")
	deleteOverlay.SetSummary("Clear overlay")
	deleteOverlay.SetDescription("Deletes all persisted overlay landmarks. Requires admin_session cookie.")
	deleteOverlay.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteOverlay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(deleteOverlay)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
