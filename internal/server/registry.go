package server

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/geowander/citytour/internal/ingest"
	"github.com/geowander/citytour/internal/nav"
)

// MachineFactory builds the navigation machine for a new session. The
// publish hook routes the machine's events to that session's stream
// subscribers.
type MachineFactory func(session ingest.ArtifactSession, publish func(nav.Event)) *nav.Machine

// Registry owns the live tour sessions, keyed by opaque session token.
type Registry struct {
	factory MachineFactory
	broker  *Broker
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	machine  *nav.Machine
	lastSeen time.Time
}

func NewRegistry(factory MachineFactory, broker *Broker, logger *slog.Logger) *Registry {
	return &Registry{
		factory:  factory,
		broker:   broker,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Create mints a session token and builds its machine. The machine
// holds only the intro entry until its first Reload.
func (r *Registry) Create(as ingest.ArtifactSession) (string, *nav.Machine) {
	token := newID()
	m := r.factory(as, func(ev nav.Event) {
		r.broker.Publish(token, ev)
	})

	r.mu.Lock()
	r.sessions[token] = &session{machine: m, lastSeen: time.Now()}
	r.mu.Unlock()
	return token, m
}

// Get returns the machine for token and marks the session live.
func (r *Registry) Get(token string) (*nav.Machine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, false
	}
	s.lastSeen = time.Now()
	return s.machine, true
}

// Remove drops the session. Safe to call for unknown tokens.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Prune drops sessions idle for longer than maxIdle and returns how
// many were removed.
func (r *Registry) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for token, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, token)
			n++
		}
	}
	return n
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
