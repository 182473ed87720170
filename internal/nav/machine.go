// Package nav implements the per-session navigation state machine: it
// owns the active Tour, sequences timed transitions between landmarks,
// gates forward progress behind mandatory quizzes, and reports quiz
// results upstream.
package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/geowander/citytour/internal/artifact"
	"github.com/geowander/citytour/internal/citytour"
	"github.com/geowander/citytour/internal/ingest"
)

// DefaultTransitionDuration is how long a visual swap between
// landmarks keeps the machine busy.
const DefaultTransitionDuration = 600 * time.Millisecond

// submitTimeout bounds the fire-and-forget quiz result submission.
const submitTimeout = 10 * time.Second

// Intent rejections. The machine's state is unchanged whenever one of
// these is returned.
var (
	// ErrBusy rejects intents issued while a transition is in flight.
	ErrBusy = errors.New("navigation is mid-transition")
	// ErrQuizOpen rejects intents issued while a quiz gate is open.
	ErrQuizOpen = errors.New("a quiz gate is open")
	// ErrNoQuiz rejects quiz completion when no gate is open.
	ErrNoQuiz = errors.New("no quiz gate is open")
	// ErrUnknownLandmark rejects a jump to an ID absent from the tour.
	ErrUnknownLandmark = errors.New("unknown landmark id")
)

// Phase is the machine's observable coarse state.
type Phase string

const (
	PhaseIntro         Phase = "intro"
	PhaseViewing       Phase = "viewing"
	PhaseTransitioning Phase = "transitioning"
	PhaseQuizGate      Phase = "quiz_gate"
)

// GateInfo describes an open quiz gate.
type GateInfo struct {
	LandmarkID int64                   `json:"landmarkId"`
	Questions  []citytour.QuizQuestion `json:"questions"`
}

// State is a snapshot of the machine for API responses and events.
// Target is set only while a transition is in flight.
type State struct {
	Phase       Phase             `json:"phase"`
	Index       int               `json:"index"`
	Landmark    citytour.Landmark `json:"landmark"`
	Target      *int              `json:"target,omitempty"`
	TourVersion int64             `json:"tourVersion"`
	TourLength  int               `json:"tourLength"`
	Gate        *GateInfo         `json:"gate,omitempty"`
}

// Event is one state change published to session subscribers.
type Event struct {
	Type  string `json:"type"`
	State State  `json:"state"`
}

// Event types.
const (
	EventState        = "state"
	EventTransition   = "transition_started"
	EventQuizGate     = "quiz_gate"
	EventTourReplaced = "tour_replaced"
)

// TourLoader rebuilds the tour from its sources.
type TourLoader interface {
	Load(ctx context.Context, session ingest.ArtifactSession) (citytour.Tour, ingest.LoadReport)
}

// OverlayAppender persists one custom landmark record.
type OverlayAppender interface {
	Append(ctx context.Context, record any) error
}

// Reporter posts quiz submission summaries upstream.
type Reporter interface {
	SubmitQuizResult(ctx context.Context, session ingest.ArtifactSession, summary artifact.SubmissionSummary) error
}

// Config wires a Machine's collaborators. Loader is required; the rest
// may be nil (no persistence, no reporting, no events).
type Config struct {
	Session  ingest.ArtifactSession
	Loader   TourLoader
	Overlay  OverlayAppender
	Reporter Reporter
	Logger   *slog.Logger
	Publish  func(Event)

	// TransitionDuration overrides DefaultTransitionDuration when > 0.
	TransitionDuration time.Duration
	// After schedules the end of a transition; tests inject a manual
	// trigger here. Defaults to time.AfterFunc.
	After func(d time.Duration, f func()) *time.Timer
	// Now supplies submission timestamps. Defaults to time.Now.
	Now func() time.Time
}

type quizGate struct {
	landmarkID int64
	questions  []citytour.QuizQuestion
}

// Machine owns one session's navigation state. All intents are
// serialized by an internal lock. Timed transitions fire on a
// scheduled callback that revalidates against a generation counter, so
// a tour replaced mid-flight can never be mutated by a stale timer.
type Machine struct {
	mu sync.Mutex

	session       ingest.ArtifactSession
	tour          citytour.Tour
	index         int
	target        int
	transitioning bool
	gate          *quizGate

	// generation bumps on every tour install; version is the monotonic
	// Tour.Version counter for this session.
	generation uint64
	version    int64

	loader        TourLoader
	overlay       OverlayAppender
	reporter      Reporter
	logger        *slog.Logger
	publish       func(Event)
	transitionDur time.Duration
	after         func(d time.Duration, f func()) *time.Timer
	now           func() time.Time
}

// New builds a Machine holding an intro-only tour. Callers run Reload
// to perform the initial load.
func New(cfg Config) *Machine {
	m := &Machine{
		session:       cfg.Session,
		tour:          citytour.Tour{Landmarks: []citytour.Landmark{ingest.IntroLandmark()}},
		loader:        cfg.Loader,
		overlay:       cfg.Overlay,
		reporter:      cfg.Reporter,
		logger:        cfg.Logger,
		publish:       cfg.Publish,
		transitionDur: cfg.TransitionDuration,
		after:         cfg.After,
		now:           cfg.Now,
	}
	if m.transitionDur <= 0 {
		m.transitionDur = DefaultTransitionDuration
	}
	if m.after == nil {
		m.after = time.AfterFunc
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Session returns the artifact session this machine was created with.
func (m *Machine) Session() ingest.ArtifactSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Tour returns a copy of the active tour.
func (m *Machine) Tour() citytour.Tour {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tour.Clone()
}

// Next advances toward the following landmark, wrapping to the intro
// entry after the last one. When the current landmark is gated, the
// machine opens a quiz gate instead and the advance is deferred until
// CompleteQuiz.
func (m *Machine) Next(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(); err != nil {
		return m.stateLocked(), err
	}

	if cur := m.currentLocked(); cur.Gated() {
		m.gate = &quizGate{landmarkID: cur.ID, questions: cur.Quiz}
		m.publishLocked(EventQuizGate)
		return m.stateLocked(), nil
	}

	m.advanceLocked(+1)
	return m.stateLocked(), nil
}

// Previous moves to the preceding landmark, wrapping from the intro
// entry to the last one. Gating only blocks forward progress, so
// Previous never opens a gate.
func (m *Machine) Previous(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(); err != nil {
		return m.stateLocked(), err
	}

	m.advanceLocked(-1)
	return m.stateLocked(), nil
}

// JumpTo focuses the landmark with the given ID immediately, with no
// transition window and no gating. Jumping to the current landmark is
// a no-op.
func (m *Machine) JumpTo(ctx context.Context, id int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(); err != nil {
		return m.stateLocked(), err
	}

	i := m.tour.IndexOf(id)
	if i < 0 {
		return m.stateLocked(), fmt.Errorf("%w: %d", ErrUnknownLandmark, id)
	}
	if i == m.index {
		return m.stateLocked(), nil
	}

	m.index = i
	m.publishLocked(EventState)
	return m.stateLocked(), nil
}

// InsertAndFocus appends one custom landmark to the tour, persists it
// to the overlay store, and focuses it. A zero ID gets a fresh
// timestamp ID, bumped past any collision with the current tour. The
// tour is untouched when persistence fails.
func (m *Machine) InsertAndFocus(ctx context.Context, lm citytour.Landmark) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(); err != nil {
		return m.stateLocked(), err
	}

	if lm.ID == 0 {
		lm.ID = ingest.MintID()
	}
	for m.tour.IndexOf(lm.ID) >= 0 {
		lm.ID++
	}
	if lm.Title == "" {
		lm.Title = strings.ToUpper(lm.Name)
	}
	if lm.ImageURL == "" {
		lm.ImageURL = citytour.PlaceholderImageURL
	}
	if !lm.IconType.Valid() {
		lm.IconType = citytour.IconMonument
	}

	if m.overlay != nil {
		if err := m.overlay.Append(ctx, lm); err != nil {
			return m.stateLocked(), fmt.Errorf("persisting landmark: %w", err)
		}
	}

	m.tour.Landmarks = append(m.tour.Landmarks, lm)
	m.version++
	m.tour.Version = m.version
	m.index = m.tour.Len() - 1
	m.publishLocked(EventState)
	return m.stateLocked(), nil
}

// CompleteQuiz closes the open gate, grades the answers, kicks off the
// upstream submission, and performs the deferred advance. The advance
// is unconditional: gating enforces completion, not mastery, so the
// score never blocks progress. answers[i] is the selected option text
// for question i; missing entries count as unanswered.
func (m *Machine) CompleteQuiz(ctx context.Context, answers []string) (State, artifact.SubmissionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gate == nil {
		return m.stateLocked(), artifact.SubmissionSummary{}, ErrNoQuiz
	}
	g := m.gate
	m.gate = nil

	summary := buildSummary(g.questions, answers, m.now())
	if m.reporter != nil && m.session.Complete() {
		go m.submit(m.session, summary)
	}

	m.advanceLocked(+1)
	return m.stateLocked(), summary, nil
}

// Reload re-runs the loader against the session's sources and resets
// navigation to the intro entry.
func (m *Machine) Reload(ctx context.Context) (State, ingest.LoadReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(); err != nil {
		return m.stateLocked(), ingest.LoadReport{}, err
	}

	tour, report := m.loader.Load(ctx, m.session)
	m.installLocked(tour)
	return m.stateLocked(), report, nil
}

// ReplaceFromUpload swaps everything after the intro entry for the
// given landmarks. Unlike Reload this is a lifecycle event, not a
// navigation intent: it runs even while a transition or gate is open,
// invalidating the in-flight timer and closing the gate.
func (m *Machine) ReplaceFromUpload(lms []citytour.Landmark) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	landmarks := append([]citytour.Landmark{ingest.IntroLandmark()}, lms...)
	m.installLocked(citytour.Tour{Landmarks: landmarks})
	return m.stateLocked()
}

func (m *Machine) guardLocked() error {
	if m.transitioning {
		return ErrBusy
	}
	if m.gate != nil {
		return ErrQuizOpen
	}
	return nil
}

func (m *Machine) currentLocked() citytour.Landmark {
	if m.index >= 0 && m.index < m.tour.Len() {
		return m.tour.Landmarks[m.index]
	}
	return citytour.Landmark{}
}

// advanceLocked starts a timed transition to the landmark delta steps
// away, wrapping in both directions.
func (m *Machine) advanceLocked(delta int) {
	n := m.tour.Len()
	if n == 0 {
		return
	}
	target := ((m.index+delta)%n + n) % n

	m.target = target
	m.transitioning = true
	m.publishLocked(EventTransition)

	gen := m.generation
	m.after(m.transitionDur, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.generation || !m.transitioning {
			return
		}
		m.index = target
		m.transitioning = false
		m.publishLocked(EventState)
	})
}

// installLocked replaces the tour wholesale. The generation bump
// orphans any in-flight transition timer.
func (m *Machine) installLocked(t citytour.Tour) {
	m.generation++
	m.version++
	t.Version = m.version
	m.tour = t
	m.index = 0
	m.transitioning = false
	m.gate = nil
	m.publishLocked(EventTourReplaced)
}

func (m *Machine) stateLocked() State {
	st := State{
		Phase:       m.phaseLocked(),
		Index:       m.index,
		Landmark:    m.currentLocked(),
		TourVersion: m.tour.Version,
		TourLength:  m.tour.Len(),
	}
	if m.transitioning {
		t := m.target
		st.Target = &t
	}
	if m.gate != nil {
		st.Gate = &GateInfo{LandmarkID: m.gate.landmarkID, Questions: m.gate.questions}
	}
	return st
}

func (m *Machine) phaseLocked() Phase {
	switch {
	case m.gate != nil:
		return PhaseQuizGate
	case m.transitioning:
		return PhaseTransitioning
	case m.index == 0:
		return PhaseIntro
	default:
		return PhaseViewing
	}
}

// publishLocked pushes an event to the subscriber hook. The hook runs
// with the machine lock held, so it must never block; the SSE broker
// drops slow subscribers instead of waiting on them.
func (m *Machine) publishLocked(typ string) {
	if m.publish == nil {
		return
	}
	m.publish(Event{Type: typ, State: m.stateLocked()})
}

func (m *Machine) submit(session ingest.ArtifactSession, summary artifact.SubmissionSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if err := m.reporter.SubmitQuizResult(ctx, session, summary); err != nil {
		if m.logger != nil {
			m.logger.Warn("quiz result submission failed",
				"artifact", session.ArtifactID, "error", err)
		}
		return
	}
	if m.logger != nil {
		m.logger.Info("quiz result submitted",
			"artifact", session.ArtifactID, "score", summary.Score)
	}
}

// buildSummary grades answers against the gate's questions. An
// unanswered or unmatched question is marked incorrect with an empty
// selectedAnswer; the score is the rounded percentage of correct
// answers.
func buildSummary(questions []citytour.QuizQuestion, answers []string, completedAt time.Time) artifact.SubmissionSummary {
	s := artifact.SubmissionSummary{
		TotalQuestions: len(questions),
		Answers:        make([]artifact.SubmissionAnswer, 0, len(questions)),
		CompletedAt:    completedAt.UTC().Format(time.RFC3339),
	}
	for i, q := range questions {
		selected := ""
		if i < len(answers) {
			selected = answers[i]
		}
		correct := correctOption(q)
		isCorrect := selected != "" && selected == correct
		if isCorrect {
			s.CorrectAnswers++
		}
		s.Answers = append(s.Answers, artifact.SubmissionAnswer{
			QuestionIndex:  i,
			QuestionText:   q.Question,
			SelectedAnswer: selected,
			CorrectAnswer:  correct,
			IsCorrect:      isCorrect,
		})
	}
	if s.TotalQuestions > 0 {
		s.Score = int(math.Round(100 * float64(s.CorrectAnswers) / float64(s.TotalQuestions)))
	}
	return s
}

func correctOption(q citytour.QuizQuestion) string {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.Text
		}
	}
	return ""
}
