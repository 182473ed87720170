package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/geowander/citytour/internal/database"
	"github.com/geowander/citytour/internal/ingest"
	"github.com/geowander/citytour/internal/migrations"
	"github.com/geowander/citytour/internal/nav"
	"github.com/geowander/citytour/internal/overlay"
)

const builtinTourLen = 6 // intro plus the five built-in landmarks

// sessionRouter builds the full route tree against an in-memory
// database. No remote sources are configured, so every session loads
// the built-in tour; transitions run at a millisecond so tests can
// wait them out instead of faking the clock.
func sessionRouter(t *testing.T) *chi.Mux {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	overlayStore := overlay.NewStore(db)
	reports := NewReportStore(db)
	admin := NewAdminStore(db)
	if _, err := admin.SeedIfEmpty(ctx, "admin@citytour.test", "changeme"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	loader := &ingest.Loader{Overlay: overlayStore, Reports: reports}
	broker := NewBroker()
	sessions := NewRegistry(func(as ingest.ArtifactSession, publish func(nav.Event)) *nav.Machine {
		return nav.New(nav.Config{
			Session:            as,
			Loader:             loader,
			Overlay:            overlayStore,
			Publish:            publish,
			TransitionDuration: time.Millisecond,
		})
	}, broker, logger)

	r := chi.NewRouter()
	addRoutes(r, logger, Deps{
		Sessions: sessions,
		Broker:   broker,
		Admin:    admin,
		Overlay:  overlayStore,
		Reports:  reports,
		DB:       db,
	})
	return r
}

// createSession opens a tour session and returns its creation payload.
func createSession(t *testing.T, r *chi.Mux) SessionResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp SessionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Token == "" {
		t.Fatal("create session: expected a session token")
	}
	return resp
}

func getState(t *testing.T, r *chi.Mux, token string) nav.State {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/session/state", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var state nav.State
	json.NewDecoder(w.Body).Decode(&state)
	return state
}

// waitForViewing polls until the transition timer lands the session
// back in viewing.
func waitForViewing(t *testing.T, r *chi.Mux, token string) nav.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state := getState(t, r, token)
		if state.Phase == nav.PhaseViewing {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("transition did not finish within 2s")
	return nav.State{}
}

func TestSessionLifecycle(t *testing.T) {
	r := sessionRouter(t)

	sess := createSession(t, r)
	if sess.State.Phase != nav.PhaseIntro {
		t.Errorf("expected phase intro, got %q", sess.State.Phase)
	}
	if sess.Tour.Len() != builtinTourLen {
		t.Errorf("expected %d tour entries, got %d", builtinTourLen, sess.Tour.Len())
	}
	if sess.Report.Source != ingest.SourceBuiltin {
		t.Errorf("expected builtin source, got %q", sess.Report.Source)
	}

	state := getState(t, r, sess.Token)
	if state.Index != 0 || state.TourLength != builtinTourLen {
		t.Errorf("unexpected state: %+v", state)
	}

	// Delete the session.
	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// The token is dead now.
	req = httptest.NewRequest(http.MethodGet, "/api/session/state", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("state after delete: expected 401, got %d", w.Code)
	}
}

func TestUnauthorizedAccess(t *testing.T) {
	r := sessionRouter(t)

	// No token.
	req := httptest.NewRequest(http.MethodGet, "/api/session/state", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	// Bad token.
	req = httptest.NewRequest(http.MethodGet, "/api/session/state", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestNavigationFlow(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	// Forward from the intro starts a timed transition.
	req := httptest.NewRequest(http.MethodPost, "/api/session/nav/next", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("next: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var state nav.State
	json.NewDecoder(w.Body).Decode(&state)
	if state.Phase != nav.PhaseTransitioning {
		t.Fatalf("next: expected transitioning, got %q", state.Phase)
	}
	if state.Target == nil || *state.Target != 1 {
		t.Fatalf("next: expected target 1, got %v", state.Target)
	}

	state = waitForViewing(t, r, sess.Token)
	if state.Index != 1 {
		t.Errorf("after transition: expected index 1, got %d", state.Index)
	}

	// Jump lands immediately.
	body, _ := json.Marshal(JumpRequest{ID: 5})
	req = httptest.NewRequest(http.MethodPost, "/api/session/nav/jump", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("jump: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.NewDecoder(w.Body).Decode(&state)
	if state.Phase != nav.PhaseViewing || state.Index != 5 {
		t.Errorf("jump: expected viewing index 5, got %q index %d", state.Phase, state.Index)
	}

	// Backward from the last entry targets the previous index.
	req = httptest.NewRequest(http.MethodPost, "/api/session/nav/previous", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("previous: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.NewDecoder(w.Body).Decode(&state)
	if state.Target == nil || *state.Target != 4 {
		t.Errorf("previous: expected target 4, got %v", state.Target)
	}
	waitForViewing(t, r, sess.Token)

	// Unknown landmark id.
	body, _ = json.Marshal(JumpRequest{ID: 999})
	req = httptest.NewRequest(http.MethodPost, "/api/session/nav/jump", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("jump unknown: expected 404, got %d", w.Code)
	}
}

func TestQuizGateFlow(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	// Focus the gated landmark.
	body, _ := json.Marshal(JumpRequest{ID: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/session/nav/jump", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("jump: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Forward opens the gate instead of moving.
	req = httptest.NewRequest(http.MethodPost, "/api/session/nav/next", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("next: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var state nav.State
	json.NewDecoder(w.Body).Decode(&state)
	if state.Phase != nav.PhaseQuizGate || state.Index != 1 {
		t.Fatalf("next: expected quiz_gate at index 1, got %q index %d", state.Phase, state.Index)
	}
	if state.Gate == nil || len(state.Gate.Questions) != 2 {
		t.Fatalf("next: expected the two gate questions, got %+v", state.Gate)
	}

	// Navigation is refused with the untouched state while gated.
	req = httptest.NewRequest(http.MethodPost, "/api/session/nav/next", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("next while gated: expected 409, got %d", w.Code)
	}
	var rej NavRejection
	json.NewDecoder(w.Body).Decode(&rej)
	if rej.Error == "" || rej.State.Index != 1 {
		t.Errorf("rejection: expected the gated state, got %+v", rej)
	}

	// Completion grades the answers and runs the deferred advance.
	body, _ = json.Marshal(QuizCompleteRequest{Answers: []string{"The Nabataeans", "False"}})
	req = httptest.NewRequest(http.MethodPost, "/api/session/quiz/complete", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp QuizCompleteResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Summary.TotalQuestions != 2 || resp.Summary.CorrectAnswers != 1 {
		t.Errorf("complete: expected 1 of 2 correct, got %+v", resp.Summary)
	}
	if resp.Summary.Score != 50 {
		t.Errorf("complete: expected score 50, got %d", resp.Summary.Score)
	}
	if resp.State.Phase != nav.PhaseTransitioning {
		t.Errorf("complete: expected transitioning, got %q", resp.State.Phase)
	}

	state = waitForViewing(t, r, sess.Token)
	if state.Index != 2 {
		t.Errorf("after gate: expected index 2, got %d", state.Index)
	}

	// No gate open anymore.
	body, _ = json.Marshal(QuizCompleteRequest{})
	req = httptest.NewRequest(http.MethodPost, "/api/session/quiz/complete", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("complete without gate: expected 409, got %d", w.Code)
	}
}

func TestTourUpload(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	records := []map[string]any{
		{"name": "First Stop", "coords": []float64{1, 2}},
		{"city": "Second Stop", "coordinates": map[string]float64{"lat": 3, "lng": 4}},
		{"description": "dropped, no name"},
	}
	body, _ := json.Marshal(records)
	req := httptest.NewRequest(http.MethodPost, "/api/session/tour/upload", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	json.NewDecoder(w.Body).Decode(&resp)

	if resp.Accepted != 2 || resp.Dropped != 1 {
		t.Errorf("expected 2 accepted and 1 dropped, got %d/%d", resp.Accepted, resp.Dropped)
	}
	if resp.Tour.Len() != 3 {
		t.Errorf("expected intro plus two entries, got %d", resp.Tour.Len())
	}
	if resp.State.Phase != nav.PhaseIntro || resp.State.Index != 0 {
		t.Errorf("expected reset to intro, got %+v", resp.State)
	}
	if resp.Tour.Landmarks[1].Name != "First Stop" {
		t.Errorf("expected First Stop at index 1, got %q", resp.Tour.Landmarks[1].Name)
	}
}

func TestTourUploadAllInvalid(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	records := []map[string]any{
		{"description": "no name or coords"},
		{"name": "NoCoords"},
	}
	body, _ := json.Marshal(records)
	req := httptest.NewRequest(http.MethodPost, "/api/session/tour/upload", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("upload: expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "no usable landmark records") {
		t.Errorf("expected an actionable rejection, got %s", w.Body.String())
	}

	// The session's tour is untouched.
	state := getState(t, r, sess.Token)
	if state.TourLength != builtinTourLen {
		t.Errorf("expected tour unchanged at %d, got %d", builtinTourLen, state.TourLength)
	}
}

func TestTourUploadRejectsNonArray(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	req := httptest.NewRequest(http.MethodPost, "/api/session/tour/upload",
		strings.NewReader(`{"not":"an array"}`))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLandmarkCreate(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	body, _ := json.Marshal(map[string]any{"name": "My Cafe", "coords": []float64{31.95, 35.93}})
	req := httptest.NewRequest(http.MethodPost, "/api/session/landmarks", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var state nav.State
	json.NewDecoder(w.Body).Decode(&state)

	if state.Landmark.Name != "My Cafe" {
		t.Errorf("expected My Cafe focused, got %q", state.Landmark.Name)
	}
	if state.TourLength != builtinTourLen+1 || state.Index != state.TourLength-1 {
		t.Errorf("expected focus on the appended entry, got %+v", state)
	}
	if state.Landmark.ID == 0 {
		t.Error("expected a minted landmark id")
	}

	// A fresh session sees the persisted overlay entry.
	sess2 := createSession(t, r)
	if sess2.Tour.Len() != builtinTourLen+1 {
		t.Fatalf("new session: expected %d entries, got %d", builtinTourLen+1, sess2.Tour.Len())
	}
	last := sess2.Tour.Landmarks[sess2.Tour.Len()-1]
	if last.Name != "My Cafe" {
		t.Errorf("new session: expected the overlay entry last, got %q", last.Name)
	}
	if sess2.Report.OverlayCount != 1 {
		t.Errorf("new session: expected overlayCount 1, got %d", sess2.Report.OverlayCount)
	}
}

func TestLandmarkCreateRejectsUnusable(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	body, _ := json.Marshal(map[string]any{"name": "No Coords Here"})
	req := httptest.NewRequest(http.MethodPost, "/api/session/landmarks", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	state := getState(t, r, sess.Token)
	if state.TourLength != builtinTourLen {
		t.Errorf("expected tour unchanged at %d, got %d", builtinTourLen, state.TourLength)
	}
}

func TestTourReload(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	// Shrink the tour with an upload, then reload back from the
	// sources.
	body, _ := json.Marshal([]map[string]any{{"name": "Only Stop", "coords": []float64{1, 2}}})
	req := httptest.NewRequest(http.MethodPost, "/api/session/tour/upload", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/session/tour/reload", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("reload: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ReloadResponse
	json.NewDecoder(w.Body).Decode(&resp)

	if resp.Tour.Len() != builtinTourLen {
		t.Errorf("expected %d entries back, got %d", builtinTourLen, resp.Tour.Len())
	}
	if resp.Report.Source != ingest.SourceBuiltin {
		t.Errorf("expected builtin source, got %q", resp.Report.Source)
	}
	if resp.State.Index != 0 {
		t.Errorf("expected reset to intro, got %+v", resp.State)
	}
}

func TestEventsStream(t *testing.T) {
	r := sessionRouter(t)
	sess := createSession(t, r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/api/session/events?token="+sess.Token, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", got)
	}

	// The stream opens with a state snapshot frame.
	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 || lines[0] != "event: state" {
		t.Fatalf("expected an event/data pair, got %q", lines)
	}

	var ev nav.Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &ev); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if ev.Type != nav.EventState {
		t.Errorf("expected a state event, got %q", ev.Type)
	}
	if ev.State.TourLength != builtinTourLen {
		t.Errorf("expected tour length %d, got %d", builtinTourLen, ev.State.TourLength)
	}
}

func TestEventsStreamRequiresToken(t *testing.T) {
	r := sessionRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session/events", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := sessionRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var checks HealthResponse
	json.NewDecoder(w.Body).Decode(&checks)

	if checks["sqlite"].Status != "ok" {
		t.Errorf("expected sqlite ok, got %+v", checks["sqlite"])
	}
	// No redis configured, so no redis check.
	if _, ok := checks["redis"]; ok {
		t.Errorf("expected no redis entry, got %+v", checks)
	}
}
